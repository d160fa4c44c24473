package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	gormlogger "gorm.io/gorm/logger"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/storage"
	"example.com/ltvpipeline/internal/storage/storetest"
)

func setupTestStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(path, zaptest.NewLogger(t), gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return setupTestStore(t, ":memory:")
	})
}

func TestStore_FileDatabaseSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ltv.db")

	s, err := Open(path, zaptest.NewLogger(t), gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.InsertCustomer(ctx, domain.Customer{CustomerID: "c1", EventTime: storetest.Base}))
	require.NoError(t, s.InsertOrder(ctx, domain.Order{
		OrderID:     "o1",
		EventTime:   storetest.Base,
		CustomerID:  "c1",
		TotalAmount: decimal.RequireFromString("0.10"),
	}))
	require.NoError(t, s.Close())

	s = setupTestStore(t, path)
	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Customers: 1, Orders: 1}, counts)

	order, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "0.1", order.TotalAmount.String())
}

func TestStore_AmountsKeepPrecision(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, ":memory:")

	require.NoError(t, s.InsertCustomer(ctx, domain.Customer{CustomerID: "c1", EventTime: storetest.Base}))
	for i, amt := range []string{"0.1", "0.2", "0.0000000001"} {
		require.NoError(t, s.InsertOrder(ctx, domain.Order{
			OrderID:     string(rune('a' + i)),
			EventTime:   storetest.Base,
			CustomerID:  "c1",
			TotalAmount: decimal.RequireFromString(amt),
		}))
	}

	a, err := s.Activity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "0.3000000001", a.OrderTotal.String())
}
