package ingest

import (
	"context"
	"fmt"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/storage"
)

// Guard confirms a referenced customer exists before a dependent record is
// accepted. Events are never deferred: a customer created later does not
// rescue an earlier rejection.
type Guard struct {
	store storage.Store
}

func NewGuard(s storage.Store) *Guard { return &Guard{store: s} }

// Check returns nil when customerID exists, an error matching
// domain.ErrUnknownCustomer when it does not, or the store error.
func (g *Guard) Check(ctx context.Context, customerID string) error {
	ok, err := g.store.CustomerExists(ctx, customerID)
	if err != nil {
		return fmt.Errorf("check customer %q: %w", customerID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCustomer, customerID)
	}
	return nil
}
