package compute

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// Probability bounds applied after all increments are summed.
const (
	MinProbability = 0.01
	MaxProbability = 0.99
)

// MaxBaseRisk is the exclusive upper bound of a random base term.
const MaxBaseRisk = 0.3

// DefaultBaseRisk is the fixed base term used when no source is configured.
// It is the midpoint of the random range [0, MaxBaseRisk).
const DefaultBaseRisk = 0.15

// Feature bands. Each feature contributes at most one increment; the
// increments of different features stack.
const (
	tempHigh     = 85.0
	tempElevated = 75.0
	vibHigh      = 1.8
	vibElevated  = 1.2
	pressureHigh = 150.0
	pressureLow  = 80.0
	runtimeHigh  = 7000
	runtimeAged  = 3000

	incTempHigh     = 0.25
	incTempElevated = 0.10
	incVibHigh      = 0.25
	incVibElevated  = 0.10
	incPressureHigh = 0.15
	incPressureLow  = 0.10
	incRuntimeHigh  = 0.20
	incRuntimeAged  = 0.10
)

// BaseRiskSource supplies the base term added before feature increments.
type BaseRiskSource func() float64

// FixedBase returns a source that always yields v.
func FixedBase(v float64) BaseRiskSource {
	return func() float64 { return v }
}

// RandomBase returns a seeded source of values in [0, MaxBaseRisk).
// The returned source is safe for concurrent use.
func RandomBase(seed uint64) BaseRiskSource {
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64() * MaxBaseRisk
	}
}

// BaseFactory builds the BaseRiskSource for one run. A pipeline calls it
// once per batch, so draw state never carries from one batch to the next.
type BaseFactory func() BaseRiskSource

// Fixed returns a factory of FixedBase(v).
func Fixed(v float64) BaseFactory {
	return func() BaseRiskSource { return FixedBase(v) }
}

// Seeded returns a factory of RandomBase(seed). Every batch replays the
// same sequence of draws.
func Seeded(seed uint64) BaseFactory {
	return func() BaseRiskSource { return RandomBase(seed) }
}

// Contribution is one triggered feature band.
type Contribution struct {
	Feature   string  `json:"feature"`
	Band      string  `json:"band"` // "high" | "elevated" | "low"
	Observed  float64 `json:"observed"`
	Threshold float64 `json:"threshold"`
	Increment float64 `json:"increment"`
}

// Contributions returns the feature bands r triggers, in scoring order:
// temperature, vibration, pressure, runtime.
func Contributions(r types.RawRecord) []Contribution {
	var out []Contribution

	switch {
	case r.Temperature > tempHigh:
		out = append(out, Contribution{"temperature", "high", r.Temperature, tempHigh, incTempHigh})
	case r.Temperature > tempElevated:
		out = append(out, Contribution{"temperature", "elevated", r.Temperature, tempElevated, incTempElevated})
	}

	switch {
	case r.VibrationLevel > vibHigh:
		out = append(out, Contribution{"vibration_level", "high", r.VibrationLevel, vibHigh, incVibHigh})
	case r.VibrationLevel > vibElevated:
		out = append(out, Contribution{"vibration_level", "elevated", r.VibrationLevel, vibElevated, incVibElevated})
	}

	switch {
	case r.Pressure > pressureHigh:
		out = append(out, Contribution{"pressure", "high", r.Pressure, pressureHigh, incPressureHigh})
	case r.Pressure > 0 && r.Pressure < pressureLow:
		out = append(out, Contribution{"pressure", "low", r.Pressure, pressureLow, incPressureLow})
	}

	rh := float64(r.RuntimeHours)
	switch {
	case r.RuntimeHours > runtimeHigh:
		out = append(out, Contribution{"runtime_hours", "high", rh, runtimeHigh, incRuntimeHigh})
	case r.RuntimeHours > runtimeAged:
		out = append(out, Contribution{"runtime_hours", "elevated", rh, runtimeAged, incRuntimeAged})
	}

	return out
}

// Score computes the failure probability of r given a base term.
//
//	p = clamp(base + Σ band increments, 0.01, 0.99)
//
// A NaN sum clamps to MinProbability.
func Score(r types.RawRecord, base float64) float64 {
	p := base
	for _, c := range Contributions(r) {
		p += c.Increment
	}
	return clampProbability(p)
}

// clampProbability restricts p to [MinProbability, MaxProbability].
func clampProbability(p float64) float64 {
	if math.IsNaN(p) || p < MinProbability {
		return MinProbability
	}
	if p > MaxProbability {
		return MaxProbability
	}
	return p
}
