package compute

import (
	"math"
	"testing"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func rec(temp, vib, pressure float64, runtime int) types.RawRecord {
	return types.RawRecord{
		AssetID:        "A1",
		Timestamp:      "2024-01-01",
		Temperature:    temp,
		VibrationLevel: vib,
		Pressure:       pressure,
		RuntimeHours:   runtime,
		Location:       "PlantA",
	}
}

// --- Score() table-driven tests ---

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		name string
		in   types.RawRecord
		base float64
		want float64
	}{
		{
			name: "nothing triggered — base only",
			in:   rec(60, 0.5, 100, 100),
			base: 0.2,
			want: 0.2,
		},
		{
			name: "all four high bands",
			// 0 + 0.25 + 0.25 + 0.15 + 0.20 = 0.85
			in:   rec(90, 2.0, 160, 8000),
			base: 0,
			want: 0.85,
		},
		{
			name: "all elevated bands, low pressure",
			// 0.05 + 0.10 + 0.10 + 0.10 + 0.10 = 0.45
			in:   rec(80, 1.5, 50, 5000),
			base: 0.05,
			want: 0.45,
		},
		{
			name: "band edges are exclusive",
			// temp 85 is elevated not high; vib 1.2 triggers nothing;
			// pressure 80 triggers nothing; runtime 7000 is aged not high.
			in:   rec(85, 1.2, 80, 7000),
			base: 0,
			want: 0.20,
		},
		{
			name: "zero pressure is not low pressure",
			in:   rec(60, 0.5, 0, 100),
			base: 0.1,
			want: 0.1,
		},
		{
			name: "clamped to lower bound",
			in:   rec(60, 0.5, 100, 100),
			base: 0,
			want: MinProbability,
		},
		{
			name: "clamped to upper bound",
			in:   rec(90, 2.0, 160, 8000),
			base: 0.29,
			want: MaxProbability,
		},
		{
			name: "NaN base clamps low",
			in:   rec(60, 0.5, 100, 100),
			base: math.NaN(),
			want: MinProbability,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.in, tc.base)
			if !almostEqual(got, tc.want, 1e-9) {
				t.Errorf("Score = %.4f, want %.4f", got, tc.want)
			}
		})
	}
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	temps := []float64{-40, 0, 75, 76, 85, 86, 500}
	vibs := []float64{0, 1.2, 1.3, 1.8, 1.9, 10}
	pressures := []float64{-5, 0, 10, 80, 150, 151, 900}
	runtimes := []int{0, 3000, 3001, 7000, 7001, 100000}
	bases := []float64{-1, 0, 0.15, 0.2999, 5}

	for _, tp := range temps {
		for _, v := range vibs {
			for _, p := range pressures {
				for _, rh := range runtimes {
					for _, b := range bases {
						got := Score(rec(tp, v, p, rh), b)
						if got < MinProbability || got > MaxProbability {
							t.Fatalf("Score(%v,%v,%v,%v, base %v) = %v out of bounds", tp, v, p, rh, b, got)
						}
					}
				}
			}
		}
	}
}

func TestContributions_Order(t *testing.T) {
	got := Contributions(rec(90, 1.5, 50, 8000))
	want := []string{"temperature", "vibration_level", "pressure", "runtime_hours"}
	if len(got) != len(want) {
		t.Fatalf("got %d contributions, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.Feature != want[i] {
			t.Errorf("contribution %d: got %s, want %s", i, c.Feature, want[i])
		}
	}
	if got[2].Band != "low" || got[2].Threshold != pressureLow {
		t.Errorf("pressure band: got %+v", got[2])
	}
}

func TestFixedBase(t *testing.T) {
	src := FixedBase(0.12)
	for i := 0; i < 3; i++ {
		if v := src(); v != 0.12 {
			t.Fatalf("FixedBase: got %v", v)
		}
	}
}

func TestSeeded_EachSourceRestarts(t *testing.T) {
	f := Seeded(42)
	first := f()
	want := []float64{first(), first(), first()}

	second := f()
	for i, w := range want {
		if got := second(); got != w {
			t.Fatalf("draw %d: got %v, want %v", i, got, w)
		}
	}
	if v := Fixed(0.2)()(); v != 0.2 {
		t.Errorf("Fixed: got %v, want 0.2", v)
	}
}

func TestRandomBase_SeededAndBounded(t *testing.T) {
	a, b := RandomBase(42), RandomBase(42)
	for i := 0; i < 1000; i++ {
		va, vb := a(), b()
		if va != vb {
			t.Fatalf("draw %d: same seed produced %v and %v", i, va, vb)
		}
		if va < 0 || va >= MaxBaseRisk {
			t.Fatalf("draw %d: %v outside [0, %v)", i, va, MaxBaseRisk)
		}
	}
}
