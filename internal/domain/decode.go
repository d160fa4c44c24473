package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Accepted event_time layouts, tried in order. Zone-less layouts are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02:15:04:05.999999999Z07:00",
}

type header struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type customerWire struct {
	Verb      string `json:"verb"`
	Key       string `json:"key"`
	EventTime string `json:"event_time"`
	LastName  string `json:"last_name"`
	AdrCity   string `json:"adr_city"`
	AdrState  string `json:"adr_state"`
}

type siteVisitWire struct {
	Key        string            `json:"key"`
	EventTime  string            `json:"event_time"`
	CustomerID string            `json:"customer_id"`
	Tags       []json.RawMessage `json:"tags"`
}

type imageWire struct {
	Key         string `json:"key"`
	EventTime   string `json:"event_time"`
	CustomerID  string `json:"customer_id"`
	CameraMake  string `json:"camera_make"`
	CameraModel string `json:"camera_model"`
}

type orderWire struct {
	Verb        string          `json:"verb"`
	Key         string          `json:"key"`
	EventTime   string          `json:"event_time"`
	CustomerID  string          `json:"customer_id"`
	TotalAmount json.RawMessage `json:"total_amount"`
}

// DecodeEvent turns one raw JSON object into a typed, validated Event.
// Unknown types decode to *UnknownEvent without error. Any other failure is
// a *ValidationError.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{"event", err.Error()}}}
	}

	var (
		ev   Event
		errs []FieldError
	)
	switch EventType(h.Type) {
	case TypeCustomer:
		var w customerWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, invalid(h, FieldError{"event", err.Error()})
		}
		e := &CustomerEvent{Verb: Verb(w.Verb), Key: w.Key, LastName: w.LastName, City: w.AdrCity, State: w.AdrState}
		e.EventTime, errs = parseTime(w.EventTime, errs)
		ev = e
	case TypeSiteVisit:
		var w siteVisitWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, invalid(h, FieldError{"event", err.Error()})
		}
		e := &SiteVisitEvent{Key: w.Key, CustomerID: w.CustomerID}
		e.EventTime, errs = parseTime(w.EventTime, errs)
		e.Tags, errs = parseTags(w.Tags, errs)
		ev = e
	case TypeImage:
		var w imageWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, invalid(h, FieldError{"event", err.Error()})
		}
		e := &ImageEvent{Key: w.Key, CustomerID: w.CustomerID, CameraMake: w.CameraMake, CameraModel: w.CameraModel}
		e.EventTime, errs = parseTime(w.EventTime, errs)
		ev = e
	case TypeOrder:
		var w orderWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, invalid(h, FieldError{"event", err.Error()})
		}
		e := &OrderEvent{Verb: Verb(w.Verb), Key: w.Key, CustomerID: w.CustomerID}
		e.EventTime, errs = parseTime(w.EventTime, errs)
		amt, err := ParseAmount(w.TotalAmount)
		if err != nil {
			errs = append(errs, FieldError{"total_amount", err.Error()})
		}
		e.TotalAmount = amt
		ev = e
	default:
		return &UnknownEvent{RawType: h.Type, Key: h.Key}, nil
	}

	errs = appendUnreported(errs, ValidateEvent(ev))
	if len(errs) > 0 {
		return nil, invalid(h, errs...)
	}
	return ev, nil
}

// appendUnreported adds the field errors whose field has no error yet, so a
// value that failed to parse is not also reported as missing.
func appendUnreported(errs, more []FieldError) []FieldError {
	for _, fe := range more {
		if !slices.ContainsFunc(errs, func(e FieldError) bool { return e.Field == fe.Field }) {
			errs = append(errs, fe)
		}
	}
	return errs
}

func invalid(h header, fields ...FieldError) *ValidationError {
	return &ValidationError{Type: EventType(h.Type), Key: h.Key, Fields: fields}
}

func parseTime(s string, errs []FieldError) (time.Time, []FieldError) {
	t, err := ParseEventTime(s)
	if err != nil {
		errs = append(errs, FieldError{"event_time", err.Error()})
	}
	return t, errs
}

func parseTags(raw []json.RawMessage, errs []FieldError) ([]string, []FieldError) {
	if raw == nil {
		return nil, errs
	}
	tags := make([]string, 0, len(raw))
	for i, r := range raw {
		tag, err := ParseTag(r)
		if err != nil {
			errs = append(errs, FieldError{fmt.Sprintf("tags[%d]", i), err.Error()})
			continue
		}
		tags = append(tags, tag)
	}
	return tags, errs
}

// ParseTag reads one tags element. Strings, including "", are kept as they
// are; null is an error; any other JSON value is kept as its compact JSON
// text, so {"k": "v"} becomes `{"k":"v"}`.
func ParseTag(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("must not be null")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParseEventTime parses an event_time value. The empty string yields the
// zero time.
func ParseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ParseAmount reads total_amount from a JSON number or a string such as
// "12.34 USD". Absent, null and empty values are not Valid.
func ParseAmount(raw json.RawMessage) (decimal.NullDecimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.NullDecimal{}, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.NullDecimal{}, err
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			return decimal.NullDecimal{}, nil
		}
		text = fields[0]
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("not a decimal amount: %q", text)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
