package compute

import "github.com/obsidianstack/assetrisk/pkg/types"

// Tier thresholds. A probability equal to either bound is Degrading.
const (
	HealthyMax   = 0.3
	DegradingMax = 0.7
)

// Classify maps a failure probability to its health tier.
func Classify(p float64) types.HealthStatus {
	switch {
	case p < HealthyMax:
		return types.Healthy
	case p <= DegradingMax:
		return types.Degrading
	default:
		return types.Critical
	}
}

// ActionFor returns the built-in suggested action for a tier.
func ActionFor(s types.HealthStatus) types.SuggestedAction {
	switch s {
	case types.Critical:
		return types.ImmediateCheck
	case types.Degrading:
		return types.ScheduleMaintenance
	default:
		return types.Monitor
	}
}

// StatusProfile holds the action and display attributes of one tier.
type StatusProfile struct {
	Action types.SuggestedAction `json:"action"`
	Color  string                `json:"color"`
}

// DefaultProfiles returns a new copy of the standard tier profiles.
func DefaultProfiles() map[types.HealthStatus]StatusProfile {
	return map[types.HealthStatus]StatusProfile{
		types.Healthy:   {Action: ActionFor(types.Healthy), Color: "#22C55E"},
		types.Degrading: {Action: ActionFor(types.Degrading), Color: "#EAB308"},
		types.Critical:  {Action: ActionFor(types.Critical), Color: "#EF4444"},
	}
}

// Classifier resolves tiers and actions using an explicit profile table.
// Tiers missing from Profiles fall back to ActionFor.
type Classifier struct {
	Profiles map[types.HealthStatus]StatusProfile
}

// NewClassifier returns a Classifier with DefaultProfiles.
func NewClassifier() *Classifier {
	return &Classifier{Profiles: DefaultProfiles()}
}

// Classify returns the tier of p and that tier's suggested action.
func (c *Classifier) Classify(p float64) (types.HealthStatus, types.SuggestedAction) {
	s := Classify(p)
	return s, c.Action(s)
}

// Action returns the suggested action configured for s.
func (c *Classifier) Action(s types.HealthStatus) types.SuggestedAction {
	if c != nil {
		if prof, ok := c.Profiles[s]; ok {
			return prof.Action
		}
	}
	return ActionFor(s)
}
