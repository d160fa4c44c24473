// Package storage defines the entity store the pipeline reads and writes.
// Backends live in the memory, sqlite and postgres subpackages.
package storage

import (
	"context"

	"example.com/ltvpipeline/internal/domain"
)

// Store owns every entity collection. Getters return copies; callers never
// hold references into the store.
//
// Insert methods return domain.ErrAlreadyExists on a duplicate key. Update
// methods return the number of rows changed, which is 0 when the key does
// not exist. Get methods return domain.ErrNotFound.
type Store interface {
	// Customer methods
	InsertCustomer(ctx context.Context, c domain.Customer) error
	UpdateCustomer(ctx context.Context, customerID string, p domain.CustomerPatch) (int64, error)
	GetCustomer(ctx context.Context, customerID string) (domain.Customer, error)
	CustomerExists(ctx context.Context, customerID string) (bool, error)
	// ListCustomerIDs returns every customer_id in ascending order.
	ListCustomerIDs(ctx context.Context) ([]string, error)

	// Dependent entity methods
	InsertSiteVisit(ctx context.Context, v domain.SiteVisit) error
	GetSiteVisit(ctx context.Context, pageID string) (domain.SiteVisit, error)
	InsertImage(ctx context.Context, img domain.Image) error
	GetImage(ctx context.Context, imageID string) (domain.Image, error)
	InsertOrder(ctx context.Context, o domain.Order) error
	UpdateOrder(ctx context.Context, orderID string, p domain.OrderPatch) (int64, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)

	// Activity aggregates the site visits and orders of one customer.
	Activity(ctx context.Context, customerID string) (domain.Activity, error)

	// LTV methods
	// ReplaceLTV atomically discards all LTV records and stores records.
	ReplaceLTV(ctx context.Context, records []domain.LTVRecord) error
	// ListLTV returns all LTV records ordered by customer_id.
	ListLTV(ctx context.Context) ([]domain.LTVRecord, error)

	// Core methods
	Counts(ctx context.Context) (domain.Counts, error)
	// Migrate creates the base schema if it does not exist.
	Migrate(ctx context.Context) error
	// Reset deletes every row from every collection.
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
