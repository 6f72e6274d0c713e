package compute

import (
	"sort"
	"strings"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// SortKey names a column an asset table can be ordered by.
type SortKey string

const (
	SortAssetID            SortKey = "asset_id"
	SortLocation           SortKey = "location"
	SortFailureProbability SortKey = "failure_probability"
	SortHealthStatus       SortKey = "health_status"
	SortParsedTimestamp    SortKey = "parsed_timestamp"
	SortTemperature        SortKey = "temperature"
	SortVibrationLevel     SortKey = "vibration_level"
	SortPressure           SortKey = "pressure"
	SortRuntimeHours       SortKey = "runtime_hours"
)

// AssetQuery filters and orders an asset table.
// The zero value returns every record sorted by failure probability, highest first.
type AssetQuery struct {
	// Text matches case-insensitively against asset_id or location.
	Text string

	// Status restricts results to one tier; nil means all tiers.
	Status *types.HealthStatus

	// Sort defaults to SortFailureProbability.
	Sort SortKey

	// Ascending reverses the default descending order.
	Ascending bool
}

// FilterSort returns a new slice holding the records that match q, ordered
// by q. Records with equal keys keep their input order.
func FilterSort(records []types.ScoredRecord, q AssetQuery) []types.ScoredRecord {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]types.ScoredRecord, 0, len(records))
	for _, r := range records {
		if q.Status != nil && r.HealthStatus != *q.Status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.AssetID), needle) &&
			!strings.Contains(strings.ToLower(r.Location), needle) {
			continue
		}
		out = append(out, r)
	}

	less := lessFunc(q.Sort)
	sort.SliceStable(out, func(i, j int) bool {
		if q.Ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

func lessFunc(key SortKey) func(a, b types.ScoredRecord) bool {
	switch key {
	case SortAssetID:
		return func(a, b types.ScoredRecord) bool { return a.AssetID < b.AssetID }
	case SortLocation:
		return func(a, b types.ScoredRecord) bool { return a.Location < b.Location }
	case SortHealthStatus:
		return func(a, b types.ScoredRecord) bool { return a.HealthStatus < b.HealthStatus }
	case SortParsedTimestamp:
		return func(a, b types.ScoredRecord) bool { return a.ParsedTimestamp.Before(b.ParsedTimestamp) }
	case SortTemperature:
		return func(a, b types.ScoredRecord) bool { return a.Temperature < b.Temperature }
	case SortVibrationLevel:
		return func(a, b types.ScoredRecord) bool { return a.VibrationLevel < b.VibrationLevel }
	case SortPressure:
		return func(a, b types.ScoredRecord) bool { return a.Pressure < b.Pressure }
	case SortRuntimeHours:
		return func(a, b types.ScoredRecord) bool { return a.RuntimeHours < b.RuntimeHours }
	default:
		return func(a, b types.ScoredRecord) bool { return a.FailureProbability < b.FailureProbability }
	}
}
