package api

import (
	"fmt"
	"sort"

	"github.com/obsidianstack/assetrisk/internal/compute"
	"github.com/obsidianstack/assetrisk/pkg/types"
)

// DiagnosticHint is one human-readable insight about a reading. The
// dashboard shows Title on a chip and Detail on hover.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

var featureLabels = map[string]struct{ name, unit string }{
	"temperature":     {"Temperature", " °C"},
	"vibration_level": {"Vibration", ""},
	"pressure":        {"Pressure", " psi"},
	"runtime_hours":   {"Runtime", " h"},
}

// computeDiagnostics explains rec: one hint per triggered feature band,
// a note when the timestamp fell back, and an all-clear when nothing
// triggered. Hints are ordered critical first, then warning, info, ok.
func computeDiagnostics(rec types.ScoredRecord) []DiagnosticHint {
	var hints []DiagnosticHint

	for _, c := range compute.Contributions(rec.RawRecord) {
		hints = append(hints, contributionHint(c))
	}

	if rec.TimestampFallback {
		hints = append(hints, DiagnosticHint{
			Key:   "timestamp_fallback",
			Level: "info",
			Title: "Timestamp not recognised",
			Detail: fmt.Sprintf(
				"The timestamp %q could not be read, so the time of upload was used instead. "+
					"Charts place this reading at the upload time.", rec.Timestamp),
		})
	}

	if len(hints) == 0 || (len(hints) == 1 && rec.TimestampFallback) {
		p := rec.FailureProbability
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All readings normal",
			Detail: fmt.Sprintf(
				"No sensor reading is outside its normal band. The %.0f%% risk is the baseline "+
					"every asset carries.", p*100),
			Value: &p,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

func contributionHint(c compute.Contribution) DiagnosticHint {
	label := featureLabels[c.Feature]
	v := c.Observed
	h := DiagnosticHint{
		Key:   c.Feature + "_" + c.Band,
		Value: &v,
	}

	switch c.Band {
	case "high":
		h.Level = "critical"
		h.Title = "High " + lower(label.name)
		h.Detail = fmt.Sprintf("%s is %s%s, above the %s%s limit. This adds %.0f points to the failure risk.",
			label.name, num(c.Observed), label.unit, num(c.Threshold), label.unit, c.Increment*100)
	case "low":
		h.Level = "warning"
		h.Title = "Low " + lower(label.name)
		h.Detail = fmt.Sprintf("%s is %s%s, below the %s%s minimum. This adds %.0f points to the failure risk.",
			label.name, num(c.Observed), label.unit, num(c.Threshold), label.unit, c.Increment*100)
	default:
		h.Level = "warning"
		h.Title = "Elevated " + lower(label.name)
		h.Detail = fmt.Sprintf("%s is %s%s, above the %s%s watch level. This adds %.0f points to the failure risk.",
			label.name, num(c.Observed), label.unit, num(c.Threshold), label.unit, c.Increment*100)
	}
	return h
}

func lower(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

// num formats v without trailing zeros.
func num(v float64) string {
	return fmt.Sprintf("%g", v)
}
