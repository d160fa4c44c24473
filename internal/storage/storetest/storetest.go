// Package storetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/storage"
)

// Base is the reference instant used by the suite's fixtures.
var Base = time.Date(2017, 1, 6, 12, 0, 0, 0, time.UTC)

// Run executes the suite. open must return an empty, migrated store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("customers", func(t *testing.T) { testCustomers(t, open(t)) })
	t.Run("customer updates", func(t *testing.T) { testCustomerUpdates(t, open(t)) })
	t.Run("referential integrity", func(t *testing.T) { testReferences(t, open(t)) })
	t.Run("dependent records", func(t *testing.T) { testDependents(t, open(t)) })
	t.Run("order updates", func(t *testing.T) { testOrderUpdates(t, open(t)) })
	t.Run("activity", func(t *testing.T) { testActivity(t, open(t)) })
	t.Run("ltv", func(t *testing.T) { testLTV(t, open(t)) })
	t.Run("reset", func(t *testing.T) { testReset(t, open(t)) })
}

func customer(id string) domain.Customer {
	return domain.Customer{CustomerID: id, EventTime: Base, LastName: "Smith", City: "Middletown", State: "AK"}
}

func testCustomers(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for _, id := range []string{"b1", "B1", "a1"} {
		require.NoError(t, s.InsertCustomer(ctx, customer(id)))
	}

	err := s.InsertCustomer(ctx, domain.Customer{CustomerID: "a1", EventTime: Base, LastName: "Other"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := s.GetCustomer(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.CustomerID)
	assert.Equal(t, "Smith", got.LastName)
	assert.Equal(t, "Middletown", got.City)
	assert.Equal(t, "AK", got.State)
	assert.True(t, Base.Equal(got.EventTime))

	_, err = s.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := s.CustomerExists(ctx, "B1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.CustomerExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := s.ListCustomerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "a1", "b1"}, ids)
}

func testCustomerUpdates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, customer("c1")))

	city := "Boston"
	n, err := s.UpdateCustomer(ctx, "c1", domain.CustomerPatch{City: &city})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Boston", got.City)
	assert.Equal(t, "Smith", got.LastName)
	assert.Equal(t, "AK", got.State)

	later := Base.Add(time.Hour)
	name := "Jones"
	n, err = s.UpdateCustomer(ctx, "c1", domain.CustomerPatch{EventTime: &later, LastName: &name})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err = s.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Jones", got.LastName)
	assert.Equal(t, "Boston", got.City)
	assert.True(t, later.Equal(got.EventTime))

	n, err = s.UpdateCustomer(ctx, "missing", domain.CustomerPatch{City: &city})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.UpdateCustomer(ctx, "c1", domain.CustomerPatch{})
	require.NoError(t, err)
	assert.Zero(t, n)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Customers)
}

func testReferences(t *testing.T, s storage.Store) {
	ctx := context.Background()

	err := s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: "p1", EventTime: Base, CustomerID: "ghost", Tags: []string{}})
	assert.ErrorIs(t, err, domain.ErrUnknownCustomer)

	err = s.InsertImage(ctx, domain.Image{ImageID: "i1", EventTime: Base, CustomerID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrUnknownCustomer)

	err = s.InsertOrder(ctx, domain.Order{OrderID: "o1", EventTime: Base, CustomerID: "ghost", TotalAmount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrUnknownCustomer)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, counts)
}

func testDependents(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, customer("c1")))

	tags := []string{"some key", "other"}
	require.NoError(t, s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: "p1", EventTime: Base, CustomerID: "c1", Tags: tags}))
	tags[0] = "mutated"

	visit, err := s.GetSiteVisit(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "c1", visit.CustomerID)
	assert.Equal(t, []string{"some key", "other"}, visit.Tags)
	assert.True(t, Base.Equal(visit.EventTime))

	require.NoError(t, s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: "p2", EventTime: Base, CustomerID: "c1", Tags: []string{}}))
	visit, err = s.GetSiteVisit(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, visit.Tags)

	err = s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: "p1", EventTime: Base, CustomerID: "c1", Tags: []string{}})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	require.NoError(t, s.InsertImage(ctx, domain.Image{ImageID: "i1", EventTime: Base, CustomerID: "c1", CameraMake: "Canon", CameraModel: "EOS 80D"}))
	img, err := s.GetImage(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Canon", img.CameraMake)
	assert.Equal(t, "EOS 80D", img.CameraModel)

	err = s.InsertImage(ctx, domain.Image{ImageID: "i1", EventTime: Base, CustomerID: "c1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	amount := decimal.RequireFromString("12.34")
	require.NoError(t, s.InsertOrder(ctx, domain.Order{OrderID: "o1", EventTime: Base, CustomerID: "c1", TotalAmount: amount}))
	order, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "c1", order.CustomerID)
	assert.True(t, amount.Equal(order.TotalAmount))

	err = s.InsertOrder(ctx, domain.Order{OrderID: "o1", EventTime: Base, CustomerID: "c1", TotalAmount: amount})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = s.GetSiteVisit(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetImage(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Customers: 1, SiteVisits: 2, Images: 1, Orders: 1}, counts)
}

func testOrderUpdates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, customer("c1")))
	require.NoError(t, s.InsertOrder(ctx, domain.Order{OrderID: "o1", EventTime: Base, CustomerID: "c1", TotalAmount: decimal.NewFromInt(10)}))

	amount := decimal.RequireFromString("45.50")
	n, err := s.UpdateOrder(ctx, "o1", domain.OrderPatch{TotalAmount: &amount})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	order, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, amount.Equal(order.TotalAmount))
	assert.Equal(t, "c1", order.CustomerID)
	assert.True(t, Base.Equal(order.EventTime))

	n, err = s.UpdateOrder(ctx, "missing", domain.OrderPatch{TotalAmount: &amount})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.UpdateOrder(ctx, "o1", domain.OrderPatch{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testActivity(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, customer("c1")))
	require.NoError(t, s.InsertCustomer(ctx, customer("c2")))
	require.NoError(t, s.InsertCustomer(ctx, customer("idle")))

	day := 24 * time.Hour
	for i, offset := range []time.Duration{7 * day, 0, 21 * day, 14 * day} {
		id := "p" + string(rune('a'+i))
		require.NoError(t, s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: id, EventTime: Base.Add(offset), CustomerID: "c1", Tags: []string{}}))
	}
	require.NoError(t, s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: "other", EventTime: Base.Add(100 * day), CustomerID: "c2", Tags: []string{}}))
	require.NoError(t, s.InsertOrder(ctx, domain.Order{OrderID: "o1", EventTime: Base, CustomerID: "c1", TotalAmount: decimal.RequireFromString("100.10")}))
	require.NoError(t, s.InsertOrder(ctx, domain.Order{OrderID: "o2", EventTime: Base, CustomerID: "c1", TotalAmount: decimal.RequireFromString("199.90")}))
	require.NoError(t, s.InsertOrder(ctx, domain.Order{OrderID: "o3", EventTime: Base, CustomerID: "c2", TotalAmount: decimal.NewFromInt(5)}))

	a, err := s.Activity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", a.CustomerID)
	assert.EqualValues(t, 4, a.VisitCount)
	assert.True(t, Base.Equal(a.FirstVisit))
	assert.True(t, Base.Add(21*day).Equal(a.LastVisit))
	assert.EqualValues(t, 2, a.OrderCount)
	assert.True(t, decimal.NewFromInt(300).Equal(a.OrderTotal), "total %s", a.OrderTotal)

	a, err = s.Activity(ctx, "idle")
	require.NoError(t, err)
	assert.Zero(t, a.VisitCount)
	assert.Zero(t, a.OrderCount)
	assert.True(t, a.FirstVisit.IsZero())
	assert.True(t, a.OrderTotal.IsZero())
}

func testLTV(t *testing.T, s storage.Store) {
	ctx := context.Background()

	records := []domain.LTVRecord{
		{CustomerID: "c2", VisitCount: 1, TotalExpenditure: decimal.NewFromInt(5), ExpenditurePerVisit: 5, VisitsPerWeek: 1, WeeksActive: 1, CLV: 2600},
		{CustomerID: "c1", VisitCount: 4, TotalExpenditure: decimal.RequireFromString("300.00"), ExpenditurePerVisit: 75, VisitsPerWeek: 4.0 / 3.0, WeeksActive: 3, CLV: 52000},
	}
	require.NoError(t, s.ReplaceLTV(ctx, records))

	got, err := s.ListLTV(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].CustomerID)
	assert.Equal(t, "c2", got[1].CustomerID)
	assert.EqualValues(t, 4, got[0].VisitCount)
	assert.True(t, decimal.NewFromInt(300).Equal(got[0].TotalExpenditure))
	assert.InDelta(t, 4.0/3.0, got[0].VisitsPerWeek, 1e-12)
	assert.InDelta(t, 52000, got[0].CLV, 1e-9)

	require.NoError(t, s.ReplaceLTV(ctx, records[:1]))
	got, err = s.ListLTV(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].CustomerID)

	err = s.ReplaceLTV(ctx, []domain.LTVRecord{records[0], records[0]})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	got, err = s.ListLTV(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed replace keeps the previous records")

	require.NoError(t, s.ReplaceLTV(ctx, nil))
	got, err = s.ListLTV(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testReset(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertCustomer(ctx, customer("c1")))
	require.NoError(t, s.InsertSiteVisit(ctx, domain.SiteVisit{PageID: "p1", EventTime: Base, CustomerID: "c1", Tags: []string{}}))
	require.NoError(t, s.InsertOrder(ctx, domain.Order{OrderID: "o1", EventTime: Base, CustomerID: "c1", TotalAmount: decimal.NewFromInt(1)}))
	require.NoError(t, s.ReplaceLTV(ctx, []domain.LTVRecord{{CustomerID: "c1", TotalExpenditure: decimal.NewFromInt(1)}}))

	require.NoError(t, s.Reset(ctx))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, counts)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
}
