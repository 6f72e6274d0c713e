package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/obsidianstack/assetrisk/internal/compute"
	"github.com/obsidianstack/assetrisk/pkg/types"
)

// DatasetEvent is the payload published for every processed dataset.
type DatasetEvent struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	ProcessedAt time.Time              `json:"processed_at"`
	KPIs        types.KPISummary       `json:"kpis"`
	SkippedRows int                    `json:"skipped_rows"`
	Locations   []compute.LocationRisk `json:"top_locations"`
	Critical    []string               `json:"critical_assets"`
}

// NewDatasetEvent builds the event for ds stored as id under name.
func NewDatasetEvent(id, name string, ds *types.ProcessedDataset, at time.Time) DatasetEvent {
	ev := DatasetEvent{
		ID:          id,
		Name:        name,
		ProcessedAt: at.UTC(),
		KPIs:        ds.KPIs,
		SkippedRows: len(ds.Skipped),
		Locations:   compute.ByLocation(ds.Assets, 5),
		Critical:    []string{},
	}
	seen := make(map[string]bool)
	for _, a := range ds.Assets {
		if a.HealthStatus == types.Critical && !seen[a.AssetID] {
			seen[a.AssetID] = true
			ev.Critical = append(ev.Critical, a.AssetID)
		}
	}
	return ev
}

// Publisher sends JSON events to one NATS subject.
type Publisher struct {
	Conn    *nats.Conn
	Subject string
}

// NewPublisher connects to url. Events go to subject.
func NewPublisher(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("assetrisk-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("bus: disconnected from nats", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("bus: reconnected to nats", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: connect %q: %w", url, err)
	}
	return &Publisher{Conn: conn, Subject: subject}, nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.Conn == nil {
		return
	}
	if err := p.Conn.Drain(); err != nil {
		p.Conn.Close()
	}
}

// Publish marshals payload as JSON and sends it to the configured subject.
func (p *Publisher) Publish(payload any) error {
	if p == nil || p.Conn == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: encode: %w", err)
	}
	if err := p.Conn.Publish(p.Subject, data); err != nil {
		return fmt.Errorf("bus: publish %s: %w", p.Subject, err)
	}
	return nil
}
