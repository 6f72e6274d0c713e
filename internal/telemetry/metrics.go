package telemetry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/obsidianstack/assetrisk/internal/ingest"
	"github.com/obsidianstack/assetrisk/pkg/types"
)

// Exported metric names.
const (
	MetricRuns         = "assetrisk_runs_total"
	MetricFailures     = "assetrisk_run_failures_total"
	MetricRecords      = "assetrisk_records_scored_total"
	MetricSkipped      = "assetrisk_rows_skipped_total"
	MetricAssetsStatus = "assetrisk_assets_total"
	MetricFallbacks    = "assetrisk_timestamp_fallbacks_total"
	MetricRunDuration  = "assetrisk_run_duration_seconds"
	MetricDatasetsLive = "assetrisk_datasets_live"
	MetricLastAvgRisk  = "assetrisk_last_average_risk"
)

// Failure reasons used as the "reason" label.
const (
	ReasonMalformed      = "malformed_input"
	ReasonMissingColumns = "missing_columns"
	ReasonNoValidData    = "no_valid_data"
	ReasonOther          = "other"
)

var failureReasons = []string{ReasonMalformed, ReasonMissingColumns, ReasonNoValidData, ReasonOther}

// Metrics holds the process counters. All methods are safe for concurrent use.
type Metrics struct {
	reg gometrics.Registry

	runs      gometrics.Counter
	records   gometrics.Counter
	skipped   gometrics.Counter
	fallbacks gometrics.Counter
	failures  map[string]gometrics.Counter
	statuses  map[types.HealthStatus]gometrics.Counter
	duration  gometrics.Timer
	avgRisk   gometrics.GaugeFloat64

	datasets func() int
}

// New returns a Metrics with every counter registered at zero.
func New() *Metrics {
	m := &Metrics{
		reg:      gometrics.NewRegistry(),
		failures: make(map[string]gometrics.Counter, len(failureReasons)),
		statuses: make(map[types.HealthStatus]gometrics.Counter, len(types.Statuses)),
	}
	m.runs = gometrics.NewRegisteredCounter(MetricRuns, m.reg)
	m.records = gometrics.NewRegisteredCounter(MetricRecords, m.reg)
	m.skipped = gometrics.NewRegisteredCounter(MetricSkipped, m.reg)
	m.fallbacks = gometrics.NewRegisteredCounter(MetricFallbacks, m.reg)
	m.duration = gometrics.NewRegisteredTimer(MetricRunDuration, m.reg)
	m.avgRisk = gometrics.NewRegisteredGaugeFloat64(MetricLastAvgRisk, m.reg)
	for _, r := range failureReasons {
		m.failures[r] = gometrics.NewRegisteredCounter(MetricFailures+"."+r, m.reg)
	}
	for _, s := range types.Statuses {
		m.statuses[s] = gometrics.NewRegisteredCounter(MetricAssetsStatus+"."+s.String(), m.reg)
	}
	return m
}

// ObserveRun records one successful batch.
func (m *Metrics) ObserveRun(ds *types.ProcessedDataset, took time.Duration) {
	m.runs.Inc(1)
	m.records.Inc(int64(len(ds.Assets)))
	m.skipped.Inc(int64(len(ds.Skipped)))
	m.statuses[types.Healthy].Inc(int64(ds.KPIs.HealthyCount))
	m.statuses[types.Degrading].Inc(int64(ds.KPIs.DegradingCount))
	m.statuses[types.Critical].Inc(int64(ds.KPIs.CriticalCount))
	var fb int64
	for _, a := range ds.Assets {
		if a.TimestampFallback {
			fb++
		}
	}
	m.fallbacks.Inc(fb)
	m.duration.Update(took)
	m.avgRisk.Update(ds.KPIs.AverageRisk)
}

// ObserveFailure records one batch that ended in err.
func (m *Metrics) ObserveFailure(err error) {
	m.runs.Inc(1)
	m.failures[FailureReason(err)].Inc(1)
}

// FailureReason classifies err into one of the Reason* labels.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ingest.ErrMalformedInput):
		return ReasonMalformed
	case errors.Is(err, ingest.ErrMissingColumns):
		return ReasonMissingColumns
	case errors.Is(err, ingest.ErrNoValidData):
		return ReasonNoValidData
	default:
		return ReasonOther
	}
}

// TrackDatasets installs a callback reporting how many datasets are held.
// It must be called before the Metrics is shared.
func (m *Metrics) TrackDatasets(f func() int) {
	m.datasets = f
}

// Runs returns the number of batches observed, successful or not.
func (m *Metrics) Runs() int64 { return m.runs.Count() }

// Handler serves the Prometheus text exposition.
func (m *Metrics) Handler() http.Handler {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(format))
		if err := m.WritePrometheus(w); err != nil {
			slog.Warn("telemetry: write exposition", "err", err)
		}
	})
}

// WritePrometheus encodes every metric family to w in text format.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range m.families() {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("telemetry: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func (m *Metrics) families() []*dto.MetricFamily {
	out := []*dto.MetricFamily{
		counterFamily(MetricRuns, "Batches processed, successful or not.", m.runs.Count()),
		counterFamily(MetricRecords, "Records scored across all batches.", m.records.Count()),
		counterFamily(MetricSkipped, "Data rows dropped during validation.", m.skipped.Count()),
		counterFamily(MetricFallbacks, "Records whose timestamp fell back to processing time.", m.fallbacks.Count()),
	}

	failures := &dto.MetricFamily{
		Name: ptr(MetricFailures),
		Help: ptr("Batches that ended in a fatal error, by reason."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, r := range failureReasons {
		failures.Metric = append(failures.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{label("reason", r)},
			Counter: &dto.Counter{Value: ptr(float64(m.failures[r].Count()))},
		})
	}
	out = append(out, failures)

	statuses := &dto.MetricFamily{
		Name: ptr(MetricAssetsStatus),
		Help: ptr("Scored records by health status."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, s := range types.Statuses {
		statuses.Metric = append(statuses.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{label("status", s.String())},
			Counter: &dto.Counter{Value: ptr(float64(m.statuses[s].Count()))},
		})
	}
	out = append(out, statuses)

	snap := m.duration.Snapshot()
	qs := []float64{0.5, 0.9, 0.99}
	ps := snap.Percentiles(qs)
	summary := &dto.Summary{
		SampleCount: ptr(uint64(snap.Count())),
		SampleSum:   ptr(time.Duration(snap.Sum()).Seconds()),
	}
	for i, q := range qs {
		summary.Quantile = append(summary.Quantile, &dto.Quantile{
			Quantile: ptr(q),
			Value:    ptr(time.Duration(ps[i]).Seconds()),
		})
	}
	out = append(out, &dto.MetricFamily{
		Name:   ptr(MetricRunDuration),
		Help:   ptr("Time spent processing one batch."),
		Type:   dto.MetricType_SUMMARY.Enum(),
		Metric: []*dto.Metric{{Summary: summary}},
	})

	out = append(out, gaugeFamily(MetricLastAvgRisk, "Average risk of the most recent batch.", m.avgRisk.Value()))
	if m.datasets != nil {
		out = append(out, gaugeFamily(MetricDatasetsLive, "Datasets currently held in memory.", float64(m.datasets())))
	}
	return out
}

func counterFamily(name, help string, v int64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(name),
		Help:   ptr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: ptr(float64(v))}}},
	}
}

func gaugeFamily(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(name),
		Help:   ptr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(v)}}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
