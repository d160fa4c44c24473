package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the canonical identity every dependent entity references.
type Customer struct {
	CustomerID string    `json:"customer_id"`
	EventTime  time.Time `json:"event_time"`
	LastName   string    `json:"last_name"`
	City       string    `json:"adr_city"`
	State      string    `json:"adr_state"`
}

// CustomerPatch enumerates the updatable Customer fields. Nil means keep.
type CustomerPatch struct {
	EventTime *time.Time
	LastName  *string
	City      *string
	State     *string
}

// Empty reports whether the patch changes nothing.
func (p CustomerPatch) Empty() bool {
	return p.EventTime == nil && p.LastName == nil && p.City == nil && p.State == nil
}

// Apply writes the present fields onto c.
func (p CustomerPatch) Apply(c *Customer) {
	if p.EventTime != nil {
		c.EventTime = *p.EventTime
	}
	if p.LastName != nil {
		c.LastName = *p.LastName
	}
	if p.City != nil {
		c.City = *p.City
	}
	if p.State != nil {
		c.State = *p.State
	}
}

type SiteVisit struct {
	PageID     string    `json:"page_id"`
	EventTime  time.Time `json:"event_time"`
	CustomerID string    `json:"customer_id"`
	Tags       []string  `json:"tags"`
}

type Image struct {
	ImageID     string    `json:"image_id"`
	EventTime   time.Time `json:"event_time"`
	CustomerID  string    `json:"customer_id"`
	CameraMake  string    `json:"camera_make"`
	CameraModel string    `json:"camera_model"`
}

type Order struct {
	OrderID     string          `json:"order_id"`
	EventTime   time.Time       `json:"event_time"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderPatch enumerates the updatable Order fields. customer_id is immutable.
type OrderPatch struct {
	EventTime   *time.Time
	TotalAmount *decimal.Decimal
}

func (p OrderPatch) Empty() bool {
	return p.EventTime == nil && p.TotalAmount == nil
}

func (p OrderPatch) Apply(o *Order) {
	if p.EventTime != nil {
		o.EventTime = *p.EventTime
	}
	if p.TotalAmount != nil {
		o.TotalAmount = *p.TotalAmount
	}
}

// Activity is the per-customer aggregate the LTV computation starts from.
// FirstVisit and LastVisit are zero when VisitCount is 0; OrderTotal is only
// meaningful when OrderCount > 0.
type Activity struct {
	CustomerID string
	VisitCount int64
	FirstVisit time.Time
	LastVisit  time.Time
	OrderCount int64
	OrderTotal decimal.Decimal
}

// LTVRecord is the derived lifetime-value row for one customer.
type LTVRecord struct {
	CustomerID          string          `json:"customer_id"`
	VisitCount          int64           `json:"visit_count"`
	TotalExpenditure    decimal.Decimal `json:"total_expenditure"`
	ExpenditurePerVisit float64         `json:"expenditure_per_visit"`
	VisitsPerWeek       float64         `json:"visits_per_week"`
	WeeksActive         float64         `json:"weeks_active"`
	CLV                 float64         `json:"clv"`
}

// Counts holds the row count of every collection.
type Counts struct {
	Customers  int64 `json:"customers"`
	SiteVisits int64 `json:"site_visits"`
	Images     int64 `json:"images"`
	Orders     int64 `json:"orders"`
	LTV        int64 `json:"ltv"`
}
