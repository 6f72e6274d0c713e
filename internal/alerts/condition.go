package alerts

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// Fields a condition may reference.
const (
	FieldTotalAssets    = "total_assets"
	FieldCriticalCount  = "critical_count"
	FieldDegradingCount = "degrading_count"
	FieldHealthyCount   = "healthy_count"
	FieldAverageRisk    = "average_risk"
	FieldMaxRisk        = "max_risk"
	FieldCriticalPct    = "critical_pct"
	FieldDegradingPct   = "degrading_pct"
	FieldHealthyPct     = "healthy_pct"
	FieldSkippedRows    = "skipped_rows"
)

var knownFields = map[string]bool{
	FieldTotalAssets: true, FieldCriticalCount: true, FieldDegradingCount: true,
	FieldHealthyCount: true, FieldAverageRisk: true, FieldMaxRisk: true,
	FieldCriticalPct: true, FieldDegradingPct: true, FieldHealthyPct: true,
	FieldSkippedRows: true,
}

var knownOps = map[string]bool{">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true}

// Condition is a parsed "field operator value" expression, for example
//
//	critical_count > 0
//	average_risk >= 0.5
//	healthy_pct < 50
//	skipped_rows > 10
type Condition struct {
	Field     string
	Op        string
	Threshold float64
}

// ParseCondition parses expr into a Condition.
func ParseCondition(expr string) (Condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return Condition{}, fmt.Errorf("alerts: condition %q: want \"field op value\"", expr)
	}
	field, op, rhs := parts[0], parts[1], parts[2]
	if !knownFields[field] {
		return Condition{}, fmt.Errorf("alerts: condition %q: unknown field %q", expr, field)
	}
	if !knownOps[op] {
		return Condition{}, fmt.Errorf("alerts: condition %q: unknown operator %q", expr, op)
	}
	v, err := strconv.ParseFloat(rhs, 64)
	if err != nil || math.IsNaN(v) {
		return Condition{}, fmt.Errorf("alerts: condition %q: threshold %q is not a number", expr, rhs)
	}
	return Condition{Field: field, Op: op, Threshold: v}, nil
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.FormatFloat(c.Threshold, 'f', -1, 64))
}

// Eval reports whether ds satisfies c and returns the observed value.
func (c Condition) Eval(ds *types.ProcessedDataset) (bool, float64) {
	v := fieldValue(c.Field, ds)
	return compareFloat(v, c.Op, c.Threshold), v
}

// fieldValue maps a field name to its value in ds. Percentages are 0–100.
func fieldValue(field string, ds *types.ProcessedDataset) float64 {
	k := ds.KPIs
	pct := func(n int) float64 {
		if k.TotalAssets == 0 {
			return 0
		}
		return float64(n) / float64(k.TotalAssets) * 100
	}
	switch field {
	case FieldTotalAssets:
		return float64(k.TotalAssets)
	case FieldCriticalCount:
		return float64(k.CriticalCount)
	case FieldDegradingCount:
		return float64(k.DegradingCount)
	case FieldHealthyCount:
		return float64(k.HealthyCount)
	case FieldAverageRisk:
		return k.AverageRisk
	case FieldMaxRisk:
		var hi float64
		for _, a := range ds.Assets {
			if a.FailureProbability > hi {
				hi = a.FailureProbability
			}
		}
		return hi
	case FieldCriticalPct:
		return pct(k.CriticalCount)
	case FieldDegradingPct:
		return pct(k.DegradingCount)
	case FieldHealthyPct:
		return pct(k.HealthyCount)
	case FieldSkippedRows:
		return float64(len(ds.Skipped))
	default:
		return 0
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
