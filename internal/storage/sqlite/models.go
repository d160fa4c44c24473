package sqlite

import (
	"time"

	"github.com/shopspring/decimal"

	"example.com/ltvpipeline/internal/domain"
)

// Amounts are stored as TEXT so SQLite never coerces them to REAL.

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customer (
		customer_id TEXT PRIMARY KEY,
		event_time  DATETIME NOT NULL,
		last_name   TEXT NOT NULL DEFAULT '',
		adr_city    TEXT NOT NULL DEFAULT '',
		adr_state   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS site_visit (
		page_id     TEXT PRIMARY KEY,
		event_time  DATETIME NOT NULL,
		customer_id TEXT NOT NULL REFERENCES customer (customer_id),
		tags        TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS site_visit_customer_idx ON site_visit (customer_id)`,
	`CREATE TABLE IF NOT EXISTS image_uploaded (
		image_id     TEXT PRIMARY KEY,
		event_time   DATETIME NOT NULL,
		customer_id  TEXT NOT NULL REFERENCES customer (customer_id),
		camera_make  TEXT NOT NULL DEFAULT '',
		camera_model TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id     TEXT PRIMARY KEY,
		event_time   DATETIME NOT NULL,
		customer_id  TEXT NOT NULL REFERENCES customer (customer_id),
		total_amount TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders (customer_id)`,
	`CREATE TABLE IF NOT EXISTS customer_ltv (
		customer_id           TEXT PRIMARY KEY,
		visit_count           INTEGER NOT NULL,
		total_expenditure     TEXT NOT NULL,
		expenditure_per_visit REAL NOT NULL,
		visits_per_week       REAL NOT NULL,
		weeks_active          REAL NOT NULL,
		clv                   REAL NOT NULL
	)`,
}

type customerModel struct {
	CustomerID string    `gorm:"column:customer_id;primaryKey"`
	EventTime  time.Time `gorm:"column:event_time"`
	LastName   string    `gorm:"column:last_name"`
	City       string    `gorm:"column:adr_city"`
	State      string    `gorm:"column:adr_state"`
}

func (customerModel) TableName() string { return "customer" }

func (m *customerModel) toDomain() domain.Customer {
	return domain.Customer{
		CustomerID: m.CustomerID,
		EventTime:  m.EventTime.UTC(),
		LastName:   m.LastName,
		City:       m.City,
		State:      m.State,
	}
}

type siteVisitModel struct {
	PageID     string    `gorm:"column:page_id;primaryKey"`
	EventTime  time.Time `gorm:"column:event_time"`
	CustomerID string    `gorm:"column:customer_id"`
	Tags       []string  `gorm:"column:tags;serializer:json"`
}

func (siteVisitModel) TableName() string { return "site_visit" }

func (m *siteVisitModel) toDomain() domain.SiteVisit {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.SiteVisit{
		PageID:     m.PageID,
		EventTime:  m.EventTime.UTC(),
		CustomerID: m.CustomerID,
		Tags:       tags,
	}
}

type imageModel struct {
	ImageID     string    `gorm:"column:image_id;primaryKey"`
	EventTime   time.Time `gorm:"column:event_time"`
	CustomerID  string    `gorm:"column:customer_id"`
	CameraMake  string    `gorm:"column:camera_make"`
	CameraModel string    `gorm:"column:camera_model"`
}

func (imageModel) TableName() string { return "image_uploaded" }

func (m *imageModel) toDomain() domain.Image {
	return domain.Image{
		ImageID:     m.ImageID,
		EventTime:   m.EventTime.UTC(),
		CustomerID:  m.CustomerID,
		CameraMake:  m.CameraMake,
		CameraModel: m.CameraModel,
	}
}

type orderModel struct {
	OrderID     string    `gorm:"column:order_id;primaryKey"`
	EventTime   time.Time `gorm:"column:event_time"`
	CustomerID  string    `gorm:"column:customer_id"`
	TotalAmount string    `gorm:"column:total_amount"`
}

func (orderModel) TableName() string { return "orders" }

func (m *orderModel) toDomain() (domain.Order, error) {
	amt, err := decimal.NewFromString(m.TotalAmount)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		OrderID:     m.OrderID,
		EventTime:   m.EventTime.UTC(),
		CustomerID:  m.CustomerID,
		TotalAmount: amt,
	}, nil
}

type ltvModel struct {
	CustomerID          string  `gorm:"column:customer_id;primaryKey"`
	VisitCount          int64   `gorm:"column:visit_count"`
	TotalExpenditure    string  `gorm:"column:total_expenditure"`
	ExpenditurePerVisit float64 `gorm:"column:expenditure_per_visit"`
	VisitsPerWeek       float64 `gorm:"column:visits_per_week"`
	WeeksActive         float64 `gorm:"column:weeks_active"`
	CLV                 float64 `gorm:"column:clv"`
}

func (ltvModel) TableName() string { return "customer_ltv" }

func ltvFromDomain(r domain.LTVRecord) ltvModel {
	return ltvModel{
		CustomerID:          r.CustomerID,
		VisitCount:          r.VisitCount,
		TotalExpenditure:    r.TotalExpenditure.String(),
		ExpenditurePerVisit: r.ExpenditurePerVisit,
		VisitsPerWeek:       r.VisitsPerWeek,
		WeeksActive:         r.WeeksActive,
		CLV:                 r.CLV,
	}
}

func (m *ltvModel) toDomain() (domain.LTVRecord, error) {
	total, err := decimal.NewFromString(m.TotalExpenditure)
	if err != nil {
		return domain.LTVRecord{}, err
	}
	return domain.LTVRecord{
		CustomerID:          m.CustomerID,
		VisitCount:          m.VisitCount,
		TotalExpenditure:    total,
		ExpenditurePerVisit: m.ExpenditurePerVisit,
		VisitsPerWeek:       m.VisitsPerWeek,
		WeeksActive:         m.WeeksActive,
		CLV:                 m.CLV,
	}, nil
}
