// Package pipeline runs ingestion, aggregation and ranking over one store.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/ingest"
	"example.com/ltvpipeline/internal/ltv"
	"example.com/ltvpipeline/internal/metrics"
	"example.com/ltvpipeline/internal/storage"
)

// Result summarises one run.
type Result struct {
	RunID   string        `json:"run_id"`
	Ingest  ingest.Stats  `json:"ingest"`
	Records int           `json:"ltv_records"`
	Counts  domain.Counts `json:"counts"`
	Top     []ltv.Ranked  `json:"top"`
}

type Pipeline struct {
	store   storage.Store
	log     *zap.Logger
	metrics *metrics.Pipeline
	now     func() time.Time
}

// New builds a Pipeline over s. m may be nil when only Top is called.
func New(s storage.Store, log *zap.Logger, m *metrics.Pipeline) *Pipeline {
	return &Pipeline{store: s, log: log, metrics: m, now: time.Now}
}

// Run dispatches every event, then aggregates once over the final state,
// then selects the top n customers. Rejected events do not fail the run.
func (p *Pipeline) Run(ctx context.Context, events []json.RawMessage, n int) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := p.log.With(zap.String("run_id", res.RunID))

	log.Info("ingestion started", zap.Int("events", len(events)))
	start := p.now()
	stats, err := ingest.NewDispatcher(p.store, log, p.metrics).Run(ctx, events)
	res.Ingest = stats
	p.observeStage("ingest", start)
	if err != nil {
		return res, fmt.Errorf("ingest: %w", err)
	}
	log.Info("ingestion finished",
		zap.Int("accepted", stats.Accepted),
		zap.Int("rejected", stats.Rejected),
		zap.Int("noop", stats.Noop),
		zap.Int("skipped", stats.Skipped),
	)

	start = p.now()
	records, err := ltv.NewAggregator(p.store, log, p.metrics).Run(ctx)
	p.observeStage("aggregate", start)
	if err != nil {
		return res, fmt.Errorf("aggregate: %w", err)
	}
	res.Records = len(records)
	res.Top = ltv.TopN(records, n)

	if res.Counts, err = p.store.Counts(ctx); err != nil {
		return res, fmt.Errorf("counts: %w", err)
	}
	log.Info("run complete",
		zap.Int64("customers", res.Counts.Customers),
		zap.Int64("site_visits", res.Counts.SiteVisits),
		zap.Int64("images", res.Counts.Images),
		zap.Int64("orders", res.Counts.Orders),
		zap.Int("ltv_records", res.Records),
		zap.Int("top", len(res.Top)),
	)
	return res, nil
}

// Top ranks the LTV records already in the store without re-ingesting.
func (p *Pipeline) Top(ctx context.Context, n int) ([]ltv.Ranked, error) {
	records, err := p.store.ListLTV(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ltv: %w", err)
	}
	return ltv.TopN(records, n), nil
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.StageDurationSeconds.WithLabelValues(stage).Set(p.now().Sub(start).Seconds())
}
