package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/metrics"
	"example.com/ltvpipeline/internal/storage"
)

// Stats counts dispatch outcomes for one run.
type Stats struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Noop     int `json:"noop"`
	Skipped  int `json:"skipped"`
}

func (s *Stats) add(o Outcome) {
	switch o {
	case Accepted:
		s.Accepted++
	case Rejected:
		s.Rejected++
	case Noop:
		s.Noop++
	case Skipped:
		s.Skipped++
	}
}

// Total is the number of events seen.
func (s Stats) Total() int { return s.Accepted + s.Rejected + s.Noop + s.Skipped }

// Dispatcher routes events to their ingester, one at a time, in input order.
// Per-event failures are logged and counted; they never stop the run.
type Dispatcher struct {
	customers *CustomerIngester
	visits    *SiteVisitIngester
	images    *ImageIngester
	orders    *OrderIngester

	log     *zap.Logger
	metrics *metrics.Pipeline
}

func NewDispatcher(s storage.Store, log *zap.Logger, m *metrics.Pipeline) *Dispatcher {
	g := NewGuard(s)
	return &Dispatcher{
		customers: NewCustomerIngester(s),
		visits:    NewSiteVisitIngester(s, g),
		images:    NewImageIngester(s, g),
		orders:    NewOrderIngester(s, g),
		log:       log.Named("dispatcher"),
		metrics:   m,
	}
}

// Run decodes and dispatches every raw event in order. It only returns an
// error when ctx is done; events after that point are not dispatched.
func (d *Dispatcher) Run(ctx context.Context, events []json.RawMessage) (Stats, error) {
	var stats Stats
	for i, raw := range events {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ev, err := domain.DecodeEvent(raw)
		if err != nil {
			var verr *domain.ValidationError
			typ, key := domain.EventType(""), ""
			if errors.As(err, &verr) {
				typ, key = verr.Type, verr.Key
			}
			d.reject(i, typ, key, err)
			stats.add(Rejected)
			continue
		}
		stats.add(d.dispatch(ctx, i, ev))
	}
	return stats, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, index int, ev domain.Event) Outcome {
	var (
		outcome Outcome
		err     error
	)
	switch e := ev.(type) {
	case *domain.CustomerEvent:
		outcome, err = d.customers.Ingest(ctx, e)
	case *domain.SiteVisitEvent:
		outcome, err = d.visits.Ingest(ctx, e)
	case *domain.ImageEvent:
		outcome, err = d.images.Ingest(ctx, e)
	case *domain.OrderEvent:
		outcome, err = d.orders.Ingest(ctx, e)
	default:
		outcome = Skipped
	}

	if err != nil {
		d.reject(index, ev.Type(), ev.EventKey(), err)
		return Rejected
	}

	d.metrics.EventsTotal.WithLabelValues(typeLabel(ev.Type()), string(outcome)).Inc()
	switch outcome {
	case Noop:
		d.log.Debug("update matched no record",
			zap.String("type", string(ev.Type())), zap.String("key", ev.EventKey()))
	case Skipped:
		d.log.Debug("event skipped",
			zap.Int("index", index), zap.String("type", string(ev.Type())), zap.String("key", ev.EventKey()))
	}
	return outcome
}

func (d *Dispatcher) reject(index int, typ domain.EventType, key string, err error) {
	reason := reasonCode(err)
	d.metrics.EventsTotal.WithLabelValues(typeLabel(typ), string(Rejected)).Inc()
	d.metrics.RejectionsTotal.WithLabelValues(typeLabel(typ), reason).Inc()
	d.log.Warn("event rejected",
		zap.Int("index", index),
		zap.String("type", string(typ)),
		zap.String("key", key),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

// typeLabel keeps the metric label set bounded: any type the pipeline does
// not handle is counted as UNKNOWN. Logs still carry the raw type.
func typeLabel(t domain.EventType) string {
	switch t {
	case domain.TypeCustomer, domain.TypeSiteVisit, domain.TypeImage, domain.TypeOrder:
		return string(t)
	}
	return unknownTypeLabel
}

const unknownTypeLabel = "UNKNOWN"

func reasonCode(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "STORE_ERROR"
}
