package alerts

import (
	"testing"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

func kpiDataset(total, critical, degrading, healthy int, avg float64, skipped int) *types.ProcessedDataset {
	ds := &types.ProcessedDataset{
		KPIs: types.KPISummary{
			TotalAssets:    total,
			AverageRisk:    avg,
			CriticalCount:  critical,
			DegradingCount: degrading,
			HealthyCount:   healthy,
		},
	}
	for i := 0; i < skipped; i++ {
		ds.Skipped = append(ds.Skipped, types.SkippedRow{Row: i + 2})
	}
	return ds
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition("  average_risk   >=  0.5 ")
	if err != nil {
		t.Fatal(err)
	}
	if c.Field != FieldAverageRisk || c.Op != ">=" || c.Threshold != 0.5 {
		t.Errorf("got %+v", c)
	}
	if c.String() != "average_risk >= 0.5" {
		t.Errorf("String(): got %q", c.String())
	}

	for _, bad := range []string{"", "critical_count >", "drop_pct > 10", "critical_count ~ 1", "critical_count > many", "critical_count > NaN"} {
		if _, err := ParseCondition(bad); err == nil {
			t.Errorf("ParseCondition(%q): expected error", bad)
		}
	}
}

func TestCondition_Eval(t *testing.T) {
	ds := kpiDataset(10, 3, 2, 5, 0.42, 4)
	ds.Assets = []types.ScoredRecord{{FailureProbability: 0.2}, {FailureProbability: 0.93}}

	tests := []struct {
		expr      string
		wantFire  bool
		wantValue float64
	}{
		{"critical_count > 0", true, 3},
		{"critical_count > 3", false, 3},
		{"degrading_count == 2", true, 2},
		{"healthy_count != 5", false, 5},
		{"total_assets >= 10", true, 10},
		{"average_risk >= 0.5", false, 0.42},
		{"critical_pct > 20", true, 30},
		{"degrading_pct <= 20", true, 20},
		{"healthy_pct < 50", false, 50},
		{"skipped_rows > 3", true, 4},
		{"max_risk > 0.9", true, 0.93},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			c, err := ParseCondition(tc.expr)
			if err != nil {
				t.Fatal(err)
			}
			fires, v := c.Eval(ds)
			if fires != tc.wantFire {
				t.Errorf("fires: got %v, want %v", fires, tc.wantFire)
			}
			if v != tc.wantValue {
				t.Errorf("value: got %v, want %v", v, tc.wantValue)
			}
		})
	}
}

func TestCondition_EvalEmptyDataset(t *testing.T) {
	c, _ := ParseCondition("critical_pct > 0")
	if fires, v := c.Eval(&types.ProcessedDataset{}); fires || v != 0 {
		t.Errorf("got fires=%v value=%v on an empty dataset", fires, v)
	}
}
