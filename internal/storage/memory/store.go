// Package memory is a map-backed storage.Store for tests and one-shot runs.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	customers  map[string]domain.Customer
	siteVisits map[string]domain.SiteVisit
	images     map[string]domain.Image
	orders     map[string]domain.Order
	ltv        map[string]domain.LTVRecord
}

func New() *Store {
	s := &Store{}
	s.init()
	return s
}

func (s *Store) init() {
	s.customers = make(map[string]domain.Customer)
	s.siteVisits = make(map[string]domain.SiteVisit)
	s.images = make(map[string]domain.Image)
	s.orders = make(map[string]domain.Order)
	s.ltv = make(map[string]domain.LTVRecord)
}

// Customer Store implementation
func (s *Store) InsertCustomer(_ context.Context, c domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.CustomerID]; exists {
		return domain.ErrAlreadyExists
	}
	s.customers[c.CustomerID] = c
	return nil
}

func (s *Store) UpdateCustomer(_ context.Context, customerID string, p domain.CustomerPatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok || p.Empty() {
		return 0, nil
	}
	p.Apply(&c)
	s.customers[customerID] = c
	return 1, nil
}

func (s *Store) GetCustomer(_ context.Context, customerID string) (domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.customers[customerID]; ok {
		return c, nil
	}
	return domain.Customer{}, domain.ErrNotFound
}

func (s *Store) CustomerExists(_ context.Context, customerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.customers[customerID]
	return ok, nil
}

func (s *Store) ListCustomerIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.customers))
	for id := range s.customers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Dependent entity Store implementation
func (s *Store) InsertSiteVisit(_ context.Context, v domain.SiteVisit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[v.CustomerID]; !ok {
		return domain.ErrUnknownCustomer
	}
	if _, exists := s.siteVisits[v.PageID]; exists {
		return domain.ErrAlreadyExists
	}
	v.Tags = slices.Clone(v.Tags)
	s.siteVisits[v.PageID] = v
	return nil
}

func (s *Store) GetSiteVisit(_ context.Context, pageID string) (domain.SiteVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.siteVisits[pageID]
	if !ok {
		return domain.SiteVisit{}, domain.ErrNotFound
	}
	v.Tags = slices.Clone(v.Tags)
	return v, nil
}

func (s *Store) InsertImage(_ context.Context, img domain.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[img.CustomerID]; !ok {
		return domain.ErrUnknownCustomer
	}
	if _, exists := s.images[img.ImageID]; exists {
		return domain.ErrAlreadyExists
	}
	s.images[img.ImageID] = img
	return nil
}

func (s *Store) GetImage(_ context.Context, imageID string) (domain.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if img, ok := s.images[imageID]; ok {
		return img, nil
	}
	return domain.Image{}, domain.ErrNotFound
}

func (s *Store) InsertOrder(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[o.CustomerID]; !ok {
		return domain.ErrUnknownCustomer
	}
	if _, exists := s.orders[o.OrderID]; exists {
		return domain.ErrAlreadyExists
	}
	s.orders[o.OrderID] = o
	return nil
}

func (s *Store) UpdateOrder(_ context.Context, orderID string, p domain.OrderPatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || p.Empty() {
		return 0, nil
	}
	p.Apply(&o)
	s.orders[orderID] = o
	return 1, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID]; ok {
		return o, nil
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *Store) Activity(_ context.Context, customerID string) (domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := domain.Activity{CustomerID: customerID, OrderTotal: decimal.Zero}
	for _, v := range s.siteVisits {
		if v.CustomerID != customerID {
			continue
		}
		if a.VisitCount == 0 || v.EventTime.Before(a.FirstVisit) {
			a.FirstVisit = v.EventTime
		}
		if a.VisitCount == 0 || v.EventTime.After(a.LastVisit) {
			a.LastVisit = v.EventTime
		}
		a.VisitCount++
	}
	for _, o := range s.orders {
		if o.CustomerID != customerID {
			continue
		}
		a.OrderTotal = a.OrderTotal.Add(o.TotalAmount)
		a.OrderCount++
	}
	return a, nil
}

// LTV Store implementation
func (s *Store) ReplaceLTV(_ context.Context, records []domain.LTVRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]domain.LTVRecord, len(records))
	for _, r := range records {
		if _, dup := next[r.CustomerID]; dup {
			return domain.ErrAlreadyExists
		}
		next[r.CustomerID] = r
	}
	s.ltv = next
	return nil
}

func (s *Store) ListLTV(_ context.Context) ([]domain.LTVRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LTVRecord, 0, len(s.ltv))
	for _, r := range s.ltv {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.LTVRecord) int {
		return strings.Compare(a.CustomerID, b.CustomerID)
	})
	return out, nil
}

// Core methods
func (s *Store) Counts(_ context.Context) (domain.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Counts{
		Customers:  int64(len(s.customers)),
		SiteVisits: int64(len(s.siteVisits)),
		Images:     int64(len(s.images)),
		Orders:     int64(len(s.orders)),
		LTV:        int64(len(s.ltv)),
	}, nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
