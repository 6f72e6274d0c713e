package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/obsidianstack/assetrisk/internal/config"
	"github.com/obsidianstack/assetrisk/pkg/types"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID          string     `json:"id"`
	RuleName    string     `json:"rule_name"`
	DatasetID   string     `json:"dataset_id"`
	DatasetName string     `json:"dataset_name"`
	Severity    string     `json:"severity"`
	Message     string     `json:"message"`
	Value       float64    `json:"value"`
	FiredAt     time.Time  `json:"fired_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	State       string     `json:"state"`
}

type rule struct {
	config.AlertRule
	cond Condition
}

// Engine evaluates alert rules against processed datasets and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []rule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:datasetName"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client   *http.Client
	now      func() time.Time
	inflight sync.WaitGroup
}

// New creates an Engine from the alert configuration. Every rule condition
// must parse; all failures are reported together.
// An Engine with no rules is valid and Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	if err := e.SetRules(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// SetRules replaces the rules and webhooks, keeping alert state. On error
// the previous rules stay in effect.
func (e *Engine) SetRules(cfg config.AlertsConfig) error {
	var errs *multierror.Error
	rules := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := ParseCondition(r.Condition)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rule %q: %w", r.Name, err))
			continue
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	e.mu.Lock()
	e.rules = rules
	e.webhooks = cfg.Webhooks
	e.mu.Unlock()
	return nil
}

// Evaluate tests all configured rules against the dataset stored as id
// under name. Alerts that fire are stored and webhook delivery starts in
// the background. Firing alerts whose condition no longer holds resolve.
func (e *Engine) Evaluate(id, name string, ds *types.ProcessedDataset) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()

	now := e.now()
	for _, r := range rules {
		key := r.Name + ":" + name
		fires, value := r.cond.Eval(ds)

		e.mu.Lock()
		if fires {
			cooldown := r.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if now.Sub(e.lastFire[key]) <= cooldown {
				e.mu.Unlock()
				continue
			}
			sev := r.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:          uuid.NewString(),
				RuleName:    r.Name,
				DatasetID:   id,
				DatasetName: name,
				Severity:    sev,
				Value:       value,
				Message: fmt.Sprintf("[%s] %s fired on %s: %s (observed %.3f)",
					sev, r.Name, name, r.cond, value),
				FiredAt: now,
				State:   StateFiring,
			}
			e.active[key] = a
			e.lastFire[key] = now
			alertCopy := *a
			e.mu.Unlock()

			slog.Warn("alerts: fired",
				"rule", r.Name,
				"dataset", name,
				"value", value,
				"severity", sev,
			)
			e.dispatch(&alertCopy)
			continue
		}

		a, ok := e.active[key]
		if !ok {
			e.mu.Unlock()
			continue
		}
		resolved := now
		a.State = StateResolved
		a.ResolvedAt = &resolved
		a.DatasetID = id
		delete(e.active, key)

		e.history = append(e.history, a)
		if len(e.history) > maxHistoryLen {
			e.history = e.history[len(e.history)-maxHistoryLen:]
		}
		alertCopy := *a
		e.mu.Unlock()

		slog.Info("alerts: resolved", "rule", r.Name, "dataset", name)
		e.dispatch(&alertCopy)
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Wait blocks until every webhook delivery started so far has finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) dispatch(a *Alert) {
	e.mu.Lock()
	hooks := e.webhooks
	e.mu.Unlock()
	if len(hooks) == 0 {
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		e.deliver(hooks, a)
	}()
}
