package ltv

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/metrics"
	"example.com/ltvpipeline/internal/storage/memory"
)

var (
	base = time.Date(2017, 1, 6, 12, 0, 0, 0, time.UTC)
	day  = 24 * time.Hour
)

func activity(visits int64, span time.Duration, orders int64, total string) domain.Activity {
	return domain.Activity{
		CustomerID: "c1",
		VisitCount: visits,
		FirstVisit: base,
		LastVisit:  base.Add(span),
		OrderCount: orders,
		OrderTotal: decimal.RequireFromString(total),
	}
}

func TestWeeksActive(t *testing.T) {
	assert.Equal(t, 3.0, WeeksActive(base, base.Add(21*day)))
	assert.InDelta(t, 0.5, WeeksActive(base, base.Add(84*time.Hour)), 1e-12)
	assert.Zero(t, WeeksActive(base, base))
	assert.Zero(t, WeeksActive(base.Add(day), base))
}

func TestCompute(t *testing.T) {
	t.Run("four visits over three weeks", func(t *testing.T) {
		rec, reason, err := Compute(activity(4, 21*day, 2, "300"))
		require.NoError(t, err)
		assert.Empty(t, reason)

		assert.Equal(t, "c1", rec.CustomerID)
		assert.EqualValues(t, 4, rec.VisitCount)
		assert.True(t, decimal.NewFromInt(300).Equal(rec.TotalExpenditure))
		assert.Equal(t, 75.0, rec.ExpenditurePerVisit)
		assert.Equal(t, 3.0, rec.WeeksActive)
		assert.InDelta(t, 4.0/3.0, rec.VisitsPerWeek, 1e-12)
		assert.InDelta(t, 52*75*(4.0/3.0)*10, rec.CLV, 1e-6)
	})

	t.Run("expenditure per visit is truncated in clv", func(t *testing.T) {
		rec, reason, err := Compute(activity(3, 7*day, 1, "100"))
		require.NoError(t, err)
		assert.Empty(t, reason)

		assert.InDelta(t, 33.3333, rec.ExpenditurePerVisit, 1e-4)
		assert.Equal(t, 3.0, rec.VisitsPerWeek)
		assert.Equal(t, float64(52*33*3*10), rec.CLV)
	})

	t.Run("truncation is toward zero", func(t *testing.T) {
		rec, _, err := Compute(activity(3, 7*day, 1, "-10"))
		require.NoError(t, err)
		assert.Equal(t, float64(52*-3*3*10), rec.CLV)
	})

	t.Run("spend below one per visit gives zero clv", func(t *testing.T) {
		rec, reason, err := Compute(activity(4, 7*day, 1, "3.99"))
		require.NoError(t, err)
		assert.Empty(t, reason)
		assert.Zero(t, rec.CLV)
	})

	tests := []struct {
		name   string
		act    domain.Activity
		reason string
	}{
		{"no visits", activity(0, 0, 1, "10"), ReasonNoVisits},
		{"single visit", activity(1, 0, 1, "10"), ReasonNoActiveWeeks},
		{"visits at one instant", activity(3, 0, 1, "10"), ReasonNoActiveWeeks},
		{"no orders", activity(2, 7*day, 0, "0"), ReasonNoOrders},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reason, err := Compute(tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, domain.LTVRecord{}, rec)
		})
	}
}

func seed(t *testing.T, s *memory.Store) {
	t.Helper()
	ctx := context.Background()

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		require.NoError(t, s.InsertCustomer(ctx, domain.Customer{CustomerID: id, EventTime: base}))
	}
	visit := func(page, customer string, at time.Duration) {
		require.NoError(t, s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: page, EventTime: base.Add(at), CustomerID: customer, Tags: []string{}}))
	}
	order := func(id, customer, amount string) {
		require.NoError(t, s.InsertOrder(ctx, domain.Order{OrderID: id, EventTime: base, CustomerID: customer, TotalAmount: decimal.RequireFromString(amount)}))
	}

	// c1: eligible
	visit("p1", "c1", 0)
	visit("p2", "c1", 7*day)
	visit("p3", "c1", 14*day)
	visit("p4", "c1", 21*day)
	order("o1", "c1", "100")
	order("o2", "c1", "200")
	// c2: visits but no orders
	visit("p5", "c2", 0)
	visit("p6", "c2", 7*day)
	// c3: a single visit
	visit("p7", "c3", 0)
	order("o3", "c3", "50")
	// c4: nothing
}

func TestAggregator_Run(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s)

	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New()

	require.NoError(t, s.ReplaceLTV(ctx, []domain.LTVRecord{{CustomerID: "stale", TotalExpenditure: decimal.Zero}}))

	records, err := NewAggregator(s, zap.New(core), m).Run(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c1", records[0].CustomerID)
	assert.InDelta(t, 52000, records[0].CLV, 1e-6)

	stored, err := s.ListLTV(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, stored)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CustomersSkipped.WithLabelValues(ReasonNoOrders)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CustomersSkipped.WithLabelValues(ReasonNoActiveWeeks)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CustomersSkipped.WithLabelValues(ReasonNoVisits)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LTVRecords))

	assert.Equal(t, 3, logs.FilterMessage("customer not eligible for ltv").Len())
	assert.Equal(t, 1, logs.FilterMessage("ltv aggregation complete").Len())
}

func TestAggregator_RunIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seed(t, s)

	agg := NewAggregator(s, zap.NewNop(), metrics.New())
	first, err := agg.Run(ctx)
	require.NoError(t, err)
	second, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregator_RunStopsOnCancel(t *testing.T) {
	s := memory.New()
	seed(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAggregator(s, zap.NewNop(), metrics.New()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
