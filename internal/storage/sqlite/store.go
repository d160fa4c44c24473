// Package sqlite is the SQLite storage.Store, built on gorm. The default
// path ":memory:" gives a private in-process database for a single run.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"example.com/ltvpipeline/internal/domain"
	"example.com/ltvpipeline/internal/logger"
	"example.com/ltvpipeline/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path with foreign keys enforced.
// The pool is pinned to one connection so ":memory:" stays a single database.
func Open(path string, zl *zap.Logger, level gormlogger.LogLevel) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 logger.NewGormLogger(zl, level),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// mapError translates gorm's normalised constraint errors into domain errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.ErrUnknownCustomer
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAlreadyExists
	}
	return err
}

func (s *Store) create(ctx context.Context, model any) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(model)
	if res.Error != nil {
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (s *Store) update(ctx context.Context, model any, keyCol, key string, cols map[string]any) (int64, error) {
	if len(cols) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(model).Where(keyCol+" = ?", key).Updates(cols)
	if res.Error != nil {
		return 0, mapError(res.Error)
	}
	return res.RowsAffected, nil
}

// Customer methods

func (s *Store) InsertCustomer(ctx context.Context, c domain.Customer) error {
	return s.create(ctx, &customerModel{
		CustomerID: c.CustomerID,
		EventTime:  c.EventTime.UTC(),
		LastName:   c.LastName,
		City:       c.City,
		State:      c.State,
	})
}

func (s *Store) UpdateCustomer(ctx context.Context, customerID string, p domain.CustomerPatch) (int64, error) {
	cols := make(map[string]any, 4)
	if p.EventTime != nil {
		cols["event_time"] = p.EventTime.UTC()
	}
	if p.LastName != nil {
		cols["last_name"] = *p.LastName
	}
	if p.City != nil {
		cols["adr_city"] = *p.City
	}
	if p.State != nil {
		cols["adr_state"] = *p.State
	}
	return s.update(ctx, &customerModel{}, "customer_id", customerID, cols)
}

func (s *Store) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	var m customerModel
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&m).Error; err != nil {
		return domain.Customer{}, mapError(err)
	}
	return m.toDomain(), nil
}

func (s *Store) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&customerModel{}).Where("customer_id = ?", customerID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("customer exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListCustomerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&customerModel{}).Order("customer_id").Pluck("customer_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return ids, nil
}

// Dependent entity methods

func (s *Store) InsertSiteVisit(ctx context.Context, v domain.SiteVisit) error {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return s.create(ctx, &siteVisitModel{
		PageID:     v.PageID,
		EventTime:  v.EventTime.UTC(),
		CustomerID: v.CustomerID,
		Tags:       tags,
	})
}

func (s *Store) GetSiteVisit(ctx context.Context, pageID string) (domain.SiteVisit, error) {
	var m siteVisitModel
	if err := s.db.WithContext(ctx).Where("page_id = ?", pageID).First(&m).Error; err != nil {
		return domain.SiteVisit{}, mapError(err)
	}
	return m.toDomain(), nil
}

func (s *Store) InsertImage(ctx context.Context, img domain.Image) error {
	return s.create(ctx, &imageModel{
		ImageID:     img.ImageID,
		EventTime:   img.EventTime.UTC(),
		CustomerID:  img.CustomerID,
		CameraMake:  img.CameraMake,
		CameraModel: img.CameraModel,
	})
}

func (s *Store) GetImage(ctx context.Context, imageID string) (domain.Image, error) {
	var m imageModel
	if err := s.db.WithContext(ctx).Where("image_id = ?", imageID).First(&m).Error; err != nil {
		return domain.Image{}, mapError(err)
	}
	return m.toDomain(), nil
}

func (s *Store) InsertOrder(ctx context.Context, o domain.Order) error {
	return s.create(ctx, &orderModel{
		OrderID:     o.OrderID,
		EventTime:   o.EventTime.UTC(),
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount.String(),
	})
}

func (s *Store) UpdateOrder(ctx context.Context, orderID string, p domain.OrderPatch) (int64, error) {
	cols := make(map[string]any, 2)
	if p.EventTime != nil {
		cols["event_time"] = p.EventTime.UTC()
	}
	if p.TotalAmount != nil {
		cols["total_amount"] = p.TotalAmount.String()
	}
	return s.update(ctx, &orderModel{}, "order_id", orderID, cols)
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var m orderModel
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		return domain.Order{}, mapError(err)
	}
	return m.toDomain()
}

// Activity sums amounts in Go: SQLite's SUM would go through REAL.
func (s *Store) Activity(ctx context.Context, customerID string) (domain.Activity, error) {
	a := domain.Activity{CustomerID: customerID, OrderTotal: decimal.Zero}

	var visits []siteVisitModel
	if err := s.db.WithContext(ctx).Select("page_id", "event_time").
		Where("customer_id = ?", customerID).Find(&visits).Error; err != nil {
		return a, fmt.Errorf("load visits: %w", err)
	}
	for i, v := range visits {
		t := v.EventTime.UTC()
		if i == 0 || t.Before(a.FirstVisit) {
			a.FirstVisit = t
		}
		if i == 0 || t.After(a.LastVisit) {
			a.LastVisit = t
		}
	}
	a.VisitCount = int64(len(visits))

	var amounts []string
	if err := s.db.WithContext(ctx).Model(&orderModel{}).
		Where("customer_id = ?", customerID).Pluck("total_amount", &amounts).Error; err != nil {
		return a, fmt.Errorf("load orders: %w", err)
	}
	for _, raw := range amounts {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return a, fmt.Errorf("%w: order amount %q", domain.ErrNonNumeric, raw)
		}
		a.OrderTotal = a.OrderTotal.Add(d)
	}
	a.OrderCount = int64(len(amounts))
	return a, nil
}

// LTV methods

func (s *Store) ReplaceLTV(ctx context.Context, records []domain.LTVRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM customer_ltv").Error; err != nil {
			return fmt.Errorf("clear ltv: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		models := make([]ltvModel, len(records))
		for i, r := range records {
			models[i] = ltvFromDomain(r)
		}
		if err := tx.CreateInBatches(models, 200).Error; err != nil {
			return fmt.Errorf("insert ltv: %w", mapError(err))
		}
		return nil
	})
}

func (s *Store) ListLTV(ctx context.Context) ([]domain.LTVRecord, error) {
	var models []ltvModel
	if err := s.db.WithContext(ctx).Order("customer_id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list ltv: %w", err)
	}
	out := make([]domain.LTVRecord, 0, len(models))
	for i := range models {
		r, err := models[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("ltv %s: %w", models[i].CustomerID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Core methods

func (s *Store) Counts(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	targets := []struct {
		model any
		dst   *int64
	}{
		{&customerModel{}, &c.Customers},
		{&siteVisitModel{}, &c.SiteVisits},
		{&imageModel{}, &c.Images},
		{&orderModel{}, &c.Orders},
		{&ltvModel{}, &c.LTV},
	}
	for _, t := range targets {
		if err := s.db.WithContext(ctx).Model(t.model).Count(t.dst).Error; err != nil {
			return c, fmt.Errorf("count: %w", err)
		}
	}
	return c, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"customer_ltv", "orders", "image_uploaded", "site_visit", "customer"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
