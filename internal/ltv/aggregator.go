// Package ltv derives customer lifetime value from ingested activity and
// ranks customers by it.
package ltv

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/metrics"
	"example.com/ltvpipeline/internal/storage"
)

const (
	WeeksPerYear = 52
	// AverageCustomerLifespanYears is the projection horizon of CLV.
	AverageCustomerLifespanYears = 10
)

// Reasons a customer gets no LTV record.
const (
	ReasonNoVisits      = "no_visits"
	ReasonNoActiveWeeks = "no_active_weeks"
	ReasonNoOrders      = "no_orders"
	ReasonError         = "error"
)

// Aggregator rebuilds the LTV table from the current store state.
type Aggregator struct {
	store   storage.Store
	log     *zap.Logger
	metrics *metrics.Pipeline
}

func NewAggregator(s storage.Store, log *zap.Logger, m *metrics.Pipeline) *Aggregator {
	return &Aggregator{store: s, log: log.Named("aggregator"), metrics: m}
}

// Run computes one record per eligible customer, in ascending customer_id
// order, and replaces every stored LTV record with them. A failure for one
// customer is logged and that customer is skipped.
func (a *Aggregator) Run(ctx context.Context) ([]domain.LTVRecord, error) {
	ids, err := a.store.ListCustomerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	records := make([]domain.LTVRecord, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		act, err := a.store.Activity(ctx, id)
		if err != nil {
			a.skipError(id, err)
			continue
		}
		rec, reason, err := Compute(act)
		if err != nil {
			a.skipError(id, err)
			continue
		}
		if reason != "" {
			a.metrics.CustomersSkipped.WithLabelValues(reason).Inc()
			a.log.Debug("customer not eligible for ltv", zap.String("customer_id", id), zap.String("reason", reason))
			continue
		}
		records = append(records, rec)
	}

	if err := a.store.ReplaceLTV(ctx, records); err != nil {
		return nil, fmt.Errorf("store ltv: %w", err)
	}
	a.metrics.LTVRecords.Set(float64(len(records)))
	a.log.Info("ltv aggregation complete",
		zap.Int("customers", len(ids)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (a *Aggregator) skipError(customerID string, err error) {
	a.metrics.CustomersSkipped.WithLabelValues(ReasonError).Inc()
	a.log.Warn("ltv computation failed",
		zap.String("customer_id", customerID),
		zap.Error(err),
	)
}

// WeeksActive is the span between the first and last visit in weeks.
func WeeksActive(first, last time.Time) float64 {
	if !last.After(first) {
		return 0
	}
	return last.Sub(first).Hours() / 24 / 7
}

// Compute derives the LTV record for one customer. When the customer is not
// eligible it returns a non-empty reason and no error.
//
// expenditure_per_visit is truncated toward zero before it enters the CLV
// product; the stored ExpenditurePerVisit keeps the untruncated value.
func Compute(act domain.Activity) (domain.LTVRecord, string, error) {
	if act.VisitCount <= 0 {
		return domain.LTVRecord{}, ReasonNoVisits, nil
	}
	weeks := WeeksActive(act.FirstVisit, act.LastVisit)
	if weeks <= 0 {
		return domain.LTVRecord{}, ReasonNoActiveWeeks, nil
	}
	if act.OrderCount <= 0 {
		return domain.LTVRecord{}, ReasonNoOrders, nil
	}

	perVisit := act.OrderTotal.Div(decimal.NewFromInt(act.VisitCount))
	truncated := perVisit.Truncate(0).IntPart()
	visitsPerWeek := float64(act.VisitCount) / weeks
	clv := float64(WeeksPerYear*truncated) * visitsPerWeek * AverageCustomerLifespanYears

	for _, v := range []float64{visitsPerWeek, clv} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.LTVRecord{}, "", fmt.Errorf("%w: customer %s", domain.ErrNonNumeric, act.CustomerID)
		}
	}

	return domain.LTVRecord{
		CustomerID:          act.CustomerID,
		VisitCount:          act.VisitCount,
		TotalExpenditure:    act.OrderTotal,
		ExpenditurePerVisit: perVisit.InexactFloat64(),
		VisitsPerWeek:       visitsPerWeek,
		WeeksActive:         weeks,
		CLV:                 clv,
	}, "", nil
}
