package api

import (
	"time"

	"github.com/obsidianstack/assetrisk/internal/compute"
	"github.com/obsidianstack/assetrisk/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string    `json:"status"`
	DatasetCount int       `json:"dataset_count"`
	AlertCount   int       `json:"alert_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// DatasetResponse is the payload for POST /api/v1/datasets and
// GET /api/v1/datasets/{id}.
type DatasetResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"expires_at"`
	KPIs      types.KPISummary     `json:"kpis"`
	Assets    []types.ScoredRecord `json:"assets"`
	Skipped   []types.SkippedRow   `json:"skipped"`
}

// AssetsResponse is the payload for GET /api/v1/datasets/{id}/assets.
type AssetsResponse struct {
	Total  int                  `json:"total"` // matches before paging
	Offset int                  `json:"offset"`
	Limit  int                  `json:"limit"`
	Items  []types.ScoredRecord `json:"items"`
}

// ReadingResponse is one scored reading with its explanation.
type ReadingResponse struct {
	types.ScoredRecord
	Contributions []compute.Contribution `json:"contributions"`
	Diagnostics   []DiagnosticHint       `json:"diagnostics"`
}

// AssetResponse is the payload for GET /api/v1/datasets/{id}/assets/{assetID}.
type AssetResponse struct {
	AssetID  string            `json:"asset_id"`
	Readings []ReadingResponse `json:"readings"` // oldest first
}

// KPIResponse is the payload for GET /api/v1/datasets/{id}/kpis.
type KPIResponse struct {
	types.KPISummary
	CriticalPct  float64           `json:"critical_pct"`
	DegradingPct float64           `json:"degrading_pct"`
	HealthyPct   float64           `json:"healthy_pct"`
	SkippedRows  int               `json:"skipped_rows"`
	Quantiles    compute.Quantiles `json:"quantiles"`
}

// TierInfo describes one health tier for legends and colour scales.
type TierInfo struct {
	Status types.HealthStatus    `json:"status"`
	Action types.SuggestedAction `json:"action"`
	Color  string                `json:"color"`
	Min    float64               `json:"min"`
	Max    float64               `json:"max"`
	Count  int                   `json:"count"`
}

// DistributionResponse is the payload for GET /api/v1/datasets/{id}/distribution.
type DistributionResponse struct {
	Bins      []compute.RiskBin `json:"bins"`
	Quantiles compute.Quantiles `json:"quantiles"`
	Tiers     []TierInfo        `json:"tiers"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
