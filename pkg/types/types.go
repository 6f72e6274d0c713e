package types

import (
	"fmt"
	"time"
)

// HealthStatus is the discrete health tier of one reading.
// The three tiers are ordered by increasing risk.
type HealthStatus uint8

// Health tiers, ordered Healthy < Degrading < Critical.
const (
	Healthy HealthStatus = iota
	Degrading
	Critical
)

// Statuses lists every tier in ascending order of risk.
var Statuses = [...]HealthStatus{Healthy, Degrading, Critical}

func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "Healthy"
	case Degrading:
		return "Degrading"
	case Critical:
		return "Critical"
	default:
		return fmt.Sprintf("HealthStatus(%d)", uint8(s))
	}
}

// MarshalText encodes the tier by name so JSON output reads "Critical" etc.
func (s HealthStatus) MarshalText() ([]byte, error) {
	if s > Critical {
		return nil, fmt.Errorf("types: invalid health status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts the tier name, case-sensitively.
func (s *HealthStatus) UnmarshalText(b []byte) error {
	v, err := ParseHealthStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseHealthStatus returns the tier named by name.
func ParseHealthStatus(name string) (HealthStatus, error) {
	for _, s := range Statuses {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("types: unknown health status %q", name)
}

// SuggestedAction is the recommended maintenance response for a tier.
type SuggestedAction uint8

const (
	Monitor SuggestedAction = iota
	ScheduleMaintenance
	ImmediateCheck
)

func (a SuggestedAction) String() string {
	switch a {
	case Monitor:
		return "Monitor"
	case ScheduleMaintenance:
		return "Schedule Maintenance"
	case ImmediateCheck:
		return "Immediate Check"
	default:
		return fmt.Sprintf("SuggestedAction(%d)", uint8(a))
	}
}

func (a SuggestedAction) MarshalText() ([]byte, error) {
	if a > ImmediateCheck {
		return nil, fmt.Errorf("types: invalid suggested action %d", uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *SuggestedAction) UnmarshalText(b []byte) error {
	for _, v := range [...]SuggestedAction{Monitor, ScheduleMaintenance, ImmediateCheck} {
		if v.String() == string(b) {
			*a = v
			return nil
		}
	}
	return fmt.Errorf("types: unknown suggested action %q", string(b))
}

// RawRecord is one input row after column mapping and validation.
type RawRecord struct {
	AssetID        string  `json:"asset_id"`
	Timestamp      string  `json:"timestamp"`
	Temperature    float64 `json:"temperature"` // °C
	VibrationLevel float64 `json:"vibration_level"`
	Pressure       float64 `json:"pressure"` // psi
	RuntimeHours   int     `json:"runtime_hours"`

	// FailureEvent is the optional 0/1 flag from the source data.
	// Informational only; scoring never reads it.
	FailureEvent *int `json:"failure_event,omitempty"`

	Location string `json:"location"`
}

// ScoredRecord is a RawRecord plus everything the pipeline derives from it.
// Values are created once by the pipeline and never modified afterwards.
type ScoredRecord struct {
	RawRecord

	ParsedTimestamp time.Time `json:"parsed_timestamp"`
	// TimestampFallback is true when the raw timestamp could not be parsed
	// and ParsedTimestamp holds the processing time instead.
	TimestampFallback bool `json:"timestamp_fallback,omitempty"`

	FailureProbability float64         `json:"failure_probability"`
	HealthStatus       HealthStatus    `json:"health_status"`
	SuggestedAction    SuggestedAction `json:"suggested_action"`
}

// KPISummary holds the fleet-wide statistics for one batch.
// CriticalCount + DegradingCount + HealthyCount always equals TotalAssets.
type KPISummary struct {
	TotalAssets    int     `json:"total_assets"`
	AverageRisk    float64 `json:"average_risk"` // rounded to 3 decimals
	CriticalCount  int     `json:"critical_count"`
	DegradingCount int     `json:"degrading_count"`
	HealthyCount   int     `json:"healthy_count"`
}

// SkippedRow describes an input row that was dropped during validation.
type SkippedRow struct {
	Row    int    `json:"row"` // 1-based line number; the header is row 1
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// ProcessedDataset is the pipeline output: scored records in input order
// plus the summary computed from all of them.
type ProcessedDataset struct {
	Assets  []ScoredRecord `json:"assets"`
	KPIs    KPISummary     `json:"kpis"`
	Skipped []SkippedRow   `json:"skipped,omitempty"`
}
