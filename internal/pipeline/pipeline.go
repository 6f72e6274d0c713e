package pipeline

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/assetrisk/internal/compute"
	"github.com/obsidianstack/assetrisk/internal/ingest"
	"github.com/obsidianstack/assetrisk/internal/timestamp"
	"github.com/obsidianstack/assetrisk/pkg/types"
)

// Options configures a Pipeline. Zero fields take defaults.
type Options struct {
	// Base builds the base risk source, once per Process call.
	// Default: compute.Fixed(compute.DefaultBaseRisk).
	Base compute.BaseFactory

	// Classifier maps probabilities to tiers and actions. Default: compute.NewClassifier().
	Classifier *compute.Classifier

	// Normalizer resolves timestamps. Default: UTC with time.Now fallback.
	Normalizer *timestamp.Normalizer

	// Workers is the number of goroutines scoring rows. Values below 2 score serially.
	Workers int

	Logger *slog.Logger
}

// Pipeline turns raw CSV text into a ProcessedDataset.
type Pipeline struct {
	base       compute.BaseFactory
	classifier *compute.Classifier
	normalizer *timestamp.Normalizer
	workers    int
	log        *slog.Logger
}

// New returns a Pipeline built from opts.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		base:       opts.Base,
		classifier: opts.Classifier,
		normalizer: opts.Normalizer,
		workers:    opts.Workers,
		log:        opts.Logger,
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.base == nil {
		p.base = compute.Fixed(compute.DefaultBaseRisk)
	}
	if p.classifier == nil {
		p.classifier = compute.NewClassifier()
	}
	if p.normalizer == nil {
		p.normalizer = &timestamp.Normalizer{Logger: p.log}
	}
	return p
}

// Process parses text and returns the scored dataset, or the first fatal
// error. Rows that fail validation are reported in ProcessedDataset.Skipped.
func (p *Pipeline) Process(text string) (*types.ProcessedDataset, error) {
	parsed, err := ingest.Parse(text, p.log)
	if err != nil {
		return nil, err
	}

	// Each call gets its own source, drawn in input order, so a seeded
	// factory gives the same result for every run and any worker count.
	base := p.base()
	bases := make([]float64, len(parsed.Records))
	for i := range bases {
		bases[i] = base()
	}

	scored := make([]types.ScoredRecord, len(parsed.Records))
	if p.workers < 2 {
		for i, r := range parsed.Records {
			scored[i] = p.scoreOne(r, bases[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.workers)
		for i, r := range parsed.Records {
			g.Go(func() error {
				scored[i] = p.scoreOne(r, bases[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("pipeline: score rows: %w", err)
		}
	}

	ds := &types.ProcessedDataset{
		Assets:  scored,
		KPIs:    compute.Summarize(scored),
		Skipped: parsed.Skipped,
	}
	p.log.Debug("pipeline: batch processed",
		"records", len(scored),
		"skipped", len(parsed.Skipped),
		"critical", ds.KPIs.CriticalCount,
		"average_risk", ds.KPIs.AverageRisk,
	)
	return ds, nil
}

func (p *Pipeline) scoreOne(r types.RawRecord, base float64) types.ScoredRecord {
	ts, fallback := p.normalizer.Normalize(r.AssetID, r.Timestamp)
	prob := compute.Score(r, base)
	status, action := p.classifier.Classify(prob)
	return types.ScoredRecord{
		RawRecord:          r,
		ParsedTimestamp:    ts,
		TimestampFallback:  fallback,
		FailureProbability: prob,
		HealthStatus:       status,
		SuggestedAction:    action,
	}
}
