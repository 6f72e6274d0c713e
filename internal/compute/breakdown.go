package compute

import (
	"fmt"
	"sort"

	"github.com/caio/go-tdigest/v4"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// DefaultLocationLimit is the number of locations ByLocation returns when
// limit is not positive.
const DefaultLocationLimit = 10

// LocationRisk is the aggregate risk of all readings at one location.
type LocationRisk struct {
	Location      string  `json:"location"`
	AverageRisk   float64 `json:"average_risk"` // rounded to 3 decimals
	AssetCount    int     `json:"asset_count"`
	CriticalCount int     `json:"critical_count"`
}

// ByLocation groups records by location and returns the riskiest locations
// first, ties broken by name, truncated to limit entries.
func ByLocation(records []types.ScoredRecord, limit int) []LocationRisk {
	if limit <= 0 {
		limit = DefaultLocationLimit
	}

	type acc struct {
		total    float64
		count    int
		critical int
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		a, ok := groups[r.Location]
		if !ok {
			a = &acc{}
			groups[r.Location] = a
		}
		a.total += r.FailureProbability
		a.count++
		if r.FailureProbability > DegradingMax {
			a.critical++
		}
	}

	out := make([]LocationRisk, 0, len(groups))
	for loc, a := range groups {
		out = append(out, LocationRisk{
			Location:      loc,
			AverageRisk:   Round3(a.total / float64(a.count)),
			AssetCount:    a.count,
			CriticalCount: a.critical,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRisk != out[j].AverageRisk {
			return out[i].AverageRisk > out[j].AverageRisk
		}
		return out[i].Location < out[j].Location
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// histogramBins is the number of equal-width probability bins.
const histogramBins = 10

// RiskBin counts readings whose probability falls in [Low, High).
// The last bin also includes 1.0.
type RiskBin struct {
	Name  string             `json:"name"`
	Low   float64            `json:"low"`
	High  float64            `json:"high"`
	Count int                `json:"count"`
	Tier  types.HealthStatus `json:"tier"` // tier of the bin midpoint
}

// Histogram buckets records into ten 0.1-wide probability bins.
func Histogram(records []types.ScoredRecord) []RiskBin {
	bins := make([]RiskBin, histogramBins)
	for i := range bins {
		lo := float64(i) / histogramBins
		hi := float64(i+1) / histogramBins
		bins[i] = RiskBin{
			Name: binName(i),
			Low:  lo,
			High: hi,
			Tier: Classify((lo + hi) / 2),
		}
	}
	for _, r := range records {
		p := r.FailureProbability
		for i := range bins {
			if p >= bins[i].Low && p < bins[i].High {
				bins[i].Count++
				break
			}
		}
		if p >= 1.0 {
			bins[histogramBins-1].Count++
		}
	}
	return bins
}

func binName(i int) string {
	switch i {
	case 0:
		return "0-0.1"
	case histogramBins - 1:
		return "0.9-1.0"
	default:
		return fmt.Sprintf("%.1f-%.1f", float64(i)/histogramBins, float64(i+1)/histogramBins)
	}
}

// Quantiles summarises the spread of failure probabilities.
type Quantiles struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// RiskQuantiles estimates p50/p90/p99 of the failure probabilities with a
// t-digest. An empty slice yields zero quantiles.
func RiskQuantiles(records []types.ScoredRecord) (Quantiles, error) {
	if len(records) == 0 {
		return Quantiles{}, nil
	}
	td, err := tdigest.New()
	if err != nil {
		return Quantiles{}, fmt.Errorf("compute: new digest: %w", err)
	}
	for _, r := range records {
		if err := td.Add(r.FailureProbability); err != nil {
			return Quantiles{}, fmt.Errorf("compute: add to digest: %w", err)
		}
	}
	return Quantiles{
		P50: Round3(td.Quantile(0.5)),
		P90: Round3(td.Quantile(0.9)),
		P99: Round3(td.Quantile(0.99)),
	}, nil
}
