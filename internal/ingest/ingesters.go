package ingest

import (
	"context"
	"fmt"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/storage"
)

// Outcome is what happened to one event. A rejected event is reported as an
// error instead.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Noop     Outcome = "noop"
	Skipped  Outcome = "skipped"
	Rejected Outcome = "rejected"
)

// CustomerIngester applies CUSTOMER events.
type CustomerIngester struct {
	store storage.Store
}

func NewCustomerIngester(s storage.Store) *CustomerIngester {
	return &CustomerIngester{store: s}
}

// Ingest inserts on NEW (a duplicate key is rejected) and patches on UPDATE.
// An UPDATE of a missing customer, or one with nothing to change, is a no-op.
func (i *CustomerIngester) Ingest(ctx context.Context, ev *domain.CustomerEvent) (Outcome, error) {
	switch ev.Verb {
	case domain.VerbNew:
		if err := i.store.InsertCustomer(ctx, ev.Customer()); err != nil {
			return Rejected, fmt.Errorf("insert customer: %w", err)
		}
		return Accepted, nil
	case domain.VerbUpdate:
		n, err := i.store.UpdateCustomer(ctx, ev.Key, ev.Patch())
		if err != nil {
			return Rejected, fmt.Errorf("update customer: %w", err)
		}
		if n == 0 {
			return Noop, nil
		}
		return Accepted, nil
	default:
		return Skipped, nil
	}
}

// SiteVisitIngester applies SITE_VISIT events. Insert only.
type SiteVisitIngester struct {
	store storage.Store
	guard *Guard
}

func NewSiteVisitIngester(s storage.Store, g *Guard) *SiteVisitIngester {
	return &SiteVisitIngester{store: s, guard: g}
}

func (i *SiteVisitIngester) Ingest(ctx context.Context, ev *domain.SiteVisitEvent) (Outcome, error) {
	if err := i.guard.Check(ctx, ev.CustomerID); err != nil {
		return Rejected, err
	}
	if err := i.store.InsertSiteVisit(ctx, ev.SiteVisit()); err != nil {
		return Rejected, fmt.Errorf("insert site visit: %w", err)
	}
	return Accepted, nil
}

// ImageIngester applies IMAGE events. Insert only.
type ImageIngester struct {
	store storage.Store
	guard *Guard
}

func NewImageIngester(s storage.Store, g *Guard) *ImageIngester {
	return &ImageIngester{store: s, guard: g}
}

func (i *ImageIngester) Ingest(ctx context.Context, ev *domain.ImageEvent) (Outcome, error) {
	if err := i.guard.Check(ctx, ev.CustomerID); err != nil {
		return Rejected, err
	}
	if err := i.store.InsertImage(ctx, ev.Image()); err != nil {
		return Rejected, fmt.Errorf("insert image: %w", err)
	}
	return Accepted, nil
}

// OrderIngester applies ORDER events. NEW is guarded; UPDATE never touches
// customer_id.
type OrderIngester struct {
	store storage.Store
	guard *Guard
}

func NewOrderIngester(s storage.Store, g *Guard) *OrderIngester {
	return &OrderIngester{store: s, guard: g}
}

func (i *OrderIngester) Ingest(ctx context.Context, ev *domain.OrderEvent) (Outcome, error) {
	switch ev.Verb {
	case domain.VerbNew:
		if err := i.guard.Check(ctx, ev.CustomerID); err != nil {
			return Rejected, err
		}
		if err := i.store.InsertOrder(ctx, ev.Order()); err != nil {
			return Rejected, fmt.Errorf("insert order: %w", err)
		}
		return Accepted, nil
	case domain.VerbUpdate:
		n, err := i.store.UpdateOrder(ctx, ev.Key, ev.Patch())
		if err != nil {
			return Rejected, fmt.Errorf("update order: %w", err)
		}
		if n == 0 {
			return Noop, nil
		}
		return Accepted, nil
	default:
		return Skipped, nil
	}
}
