package compute

import (
	"math"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// Summarize folds records into a KPISummary in a single pass.
// An empty slice yields the zero summary.
func Summarize(records []types.ScoredRecord) types.KPISummary {
	var k types.KPISummary
	var total float64
	for _, r := range records {
		total += r.FailureProbability
		switch r.HealthStatus {
		case types.Critical:
			k.CriticalCount++
		case types.Degrading:
			k.DegradingCount++
		default:
			k.HealthyCount++
		}
	}
	k.TotalAssets = len(records)
	if k.TotalAssets > 0 {
		k.AverageRisk = Round3(total / float64(k.TotalAssets))
	}
	return k
}

// Round3 rounds v to three decimal places, halves away from zero.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
