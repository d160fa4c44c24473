package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the `type` discriminator carried by every input event.
type EventType string

const (
	TypeCustomer  EventType = "CUSTOMER"
	TypeSiteVisit EventType = "SITE_VISIT"
	TypeImage     EventType = "IMAGE"
	TypeOrder     EventType = "ORDER"
)

// Verb is the `verb` discriminator of CUSTOMER and ORDER events.
type Verb string

const (
	VerbNew    Verb = "NEW"
	VerbUpdate Verb = "UPDATE"
)

// Event is one decoded input event. The concrete type is one of
// *CustomerEvent, *SiteVisitEvent, *ImageEvent, *OrderEvent or *UnknownEvent.
type Event interface {
	Type() EventType
	EventKey() string
}

// CustomerEvent creates or patches a Customer. Empty strings and a zero
// EventTime mean the field was absent or empty in the payload.
type CustomerEvent struct {
	Verb      Verb      `json:"verb" validate:"required"`
	Key       string    `json:"key" validate:"required"`
	EventTime time.Time `json:"event_time"`
	LastName  string    `json:"last_name"`
	City      string    `json:"adr_city"`
	State     string    `json:"adr_state"`
}

func (e *CustomerEvent) Type() EventType  { return TypeCustomer }
func (e *CustomerEvent) EventKey() string { return e.Key }

// Customer returns the row a NEW event inserts.
func (e *CustomerEvent) Customer() Customer {
	return Customer{
		CustomerID: e.Key,
		EventTime:  e.EventTime,
		LastName:   e.LastName,
		City:       e.City,
		State:      e.State,
	}
}

// Patch returns the fields an UPDATE event applies: only those that were
// present and non-empty.
func (e *CustomerEvent) Patch() CustomerPatch {
	var p CustomerPatch
	if !e.EventTime.IsZero() {
		t := e.EventTime
		p.EventTime = &t
	}
	p.LastName = nonEmpty(e.LastName)
	p.City = nonEmpty(e.City)
	p.State = nonEmpty(e.State)
	return p
}

// SiteVisitEvent records one page view by a customer.
type SiteVisitEvent struct {
	Key        string    `json:"key" validate:"required"`
	EventTime  time.Time `json:"event_time"`
	CustomerID string    `json:"customer_id" validate:"required"`
	Tags       []string  `json:"tags"`
}

func (e *SiteVisitEvent) Type() EventType  { return TypeSiteVisit }
func (e *SiteVisitEvent) EventKey() string { return e.Key }

func (e *SiteVisitEvent) SiteVisit() SiteVisit {
	return SiteVisit{
		PageID:     e.Key,
		EventTime:  e.EventTime,
		CustomerID: e.CustomerID,
		Tags:       cloneTags(e.Tags),
	}
}

// ImageEvent records one image upload by a customer.
type ImageEvent struct {
	Key         string    `json:"key" validate:"required"`
	EventTime   time.Time `json:"event_time"`
	CustomerID  string    `json:"customer_id" validate:"required"`
	CameraMake  string    `json:"camera_make"`
	CameraModel string    `json:"camera_model"`
}

func (e *ImageEvent) Type() EventType  { return TypeImage }
func (e *ImageEvent) EventKey() string { return e.Key }

func (e *ImageEvent) Image() Image {
	return Image{
		ImageID:     e.Key,
		EventTime:   e.EventTime,
		CustomerID:  e.CustomerID,
		CameraMake:  e.CameraMake,
		CameraModel: e.CameraModel,
	}
}

// OrderEvent creates or patches an Order. CustomerID is only used by NEW.
type OrderEvent struct {
	Verb        Verb                `json:"verb" validate:"required"`
	Key         string              `json:"key" validate:"required"`
	EventTime   time.Time           `json:"event_time"`
	CustomerID  string              `json:"customer_id"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
}

func (e *OrderEvent) Type() EventType  { return TypeOrder }
func (e *OrderEvent) EventKey() string { return e.Key }

func (e *OrderEvent) Order() Order {
	return Order{
		OrderID:     e.Key,
		EventTime:   e.EventTime,
		CustomerID:  e.CustomerID,
		TotalAmount: e.TotalAmount.Decimal,
	}
}

// Patch returns the fields an UPDATE event applies. customer_id is never
// part of it.
func (e *OrderEvent) Patch() OrderPatch {
	var p OrderPatch
	if !e.EventTime.IsZero() {
		t := e.EventTime
		p.EventTime = &t
	}
	if e.TotalAmount.Valid {
		amt := e.TotalAmount.Decimal
		p.TotalAmount = &amt
	}
	return p
}

// UnknownEvent is any event whose type is not handled. It is skipped.
type UnknownEvent struct {
	RawType string
	Key     string
}

func (e *UnknownEvent) Type() EventType  { return EventType(e.RawType) }
func (e *UnknownEvent) EventKey() string { return e.Key }

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
