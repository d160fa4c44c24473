package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("customer new", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"CUSTOMER","verb":"NEW","key":"96f55c7d8f42",
			"event_time":"2017-01-06T12:46:46.384Z","last_name":"Smith","adr_city":"Middletown","adr_state":"AK"}`))
		require.NoError(t, err)

		c, ok := ev.(*CustomerEvent)
		require.True(t, ok)
		assert.Equal(t, TypeCustomer, c.Type())
		assert.Equal(t, VerbNew, c.Verb)
		assert.Equal(t, "96f55c7d8f42", c.EventKey())
		assert.Equal(t, time.Date(2017, 1, 6, 12, 46, 46, 384_000_000, time.UTC), c.EventTime)
		assert.Equal(t, Customer{
			CustomerID: "96f55c7d8f42",
			EventTime:  c.EventTime,
			LastName:   "Smith",
			City:       "Middletown",
			State:      "AK",
		}, c.Customer())
	})

	t.Run("site visit keeps tags", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"SITE_VISIT","verb":"NEW","key":"ac05e815502f",
			"event_time":"2017-01-06T12:45:52.041Z","customer_id":"96f55c7d8f42","tags":["some key","other"]}`))
		require.NoError(t, err)

		sv := ev.(*SiteVisitEvent)
		visit := sv.SiteVisit()
		assert.Equal(t, "ac05e815502f", visit.PageID)
		assert.Equal(t, "96f55c7d8f42", visit.CustomerID)
		assert.Equal(t, []string{"some key", "other"}, visit.Tags)

		visit.Tags[0] = "changed"
		assert.Equal(t, "some key", sv.Tags[0])
	})

	t.Run("site visit with object tags", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"SITE_VISIT","key":"p1","event_time":"2017-01-06T12:45:52Z",
			"customer_id":"c1","tags":[{"some key": "some value"}, "plain", 7]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{`{"some key":"some value"}`, "plain", "7"}, ev.(*SiteVisitEvent).Tags)
	})

	t.Run("site visit with null tag", func(t *testing.T) {
		_, err := DecodeEvent(json.RawMessage(`{"type":"SITE_VISIT","key":"p1","event_time":"2017-01-06T12:45:52Z",
			"customer_id":"c1","tags":["a", null]}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"tags[1]"}, fieldNames(verr.Fields))
	})

	t.Run("site visit without tags gets empty list", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"SITE_VISIT","key":"p1",
			"event_time":"2017-01-06T12:45:52Z","customer_id":"c1"}`))
		require.NoError(t, err)
		assert.Equal(t, []string{}, ev.(*SiteVisitEvent).SiteVisit().Tags)
	})

	t.Run("image", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"IMAGE","verb":"UPLOAD","key":"d8ede43b1d9f",
			"event_time":"2017-01-06T12:47:12.344Z","customer_id":"96f55c7d8f42","camera_make":"Canon","camera_model":"EOS 80D"}`))
		require.NoError(t, err)

		img := ev.(*ImageEvent).Image()
		assert.Equal(t, "d8ede43b1d9f", img.ImageID)
		assert.Equal(t, "Canon", img.CameraMake)
		assert.Equal(t, "EOS 80D", img.CameraModel)
	})

	t.Run("order with currency suffix", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"ORDER","verb":"NEW","key":"68d84e5d1a43",
			"event_time":"2017-01-06T12:55:55.555Z","customer_id":"96f55c7d8f42","total_amount":"12.34 USD"}`))
		require.NoError(t, err)

		o := ev.(*OrderEvent).Order()
		assert.Equal(t, "68d84e5d1a43", o.OrderID)
		assert.Equal(t, "96f55c7d8f42", o.CustomerID)
		assert.True(t, decimal.RequireFromString("12.34").Equal(o.TotalAmount))
	})

	t.Run("order with numeric amount", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"ORDER","verb":"NEW","key":"o1",
			"event_time":"2017-01-06T12:55:55Z","customer_id":"c1","total_amount":300}`))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(300).Equal(ev.(*OrderEvent).TotalAmount.Decimal))
	})

	t.Run("unknown type is not an error", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"PROMOTION","key":"x1"}`))
		require.NoError(t, err)

		u, ok := ev.(*UnknownEvent)
		require.True(t, ok)
		assert.Equal(t, EventType("PROMOTION"), u.Type())
		assert.Equal(t, "x1", u.EventKey())
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeEvent(json.RawMessage(`{"type":`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidEvent))
	})

	t.Run("wrong field type", func(t *testing.T) {
		_, err := DecodeEvent(json.RawMessage(`{"type":"SITE_VISIT","key":"p1","event_time":"2017-01-06T12:45:52Z",
			"customer_id":"c1","tags":"not-a-list"}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, TypeSiteVisit, verr.Type)
		assert.Equal(t, "p1", verr.Key)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		_, err := DecodeEvent(json.RawMessage(`{"type":"CUSTOMER","verb":"NEW","key":"c1","event_time":"yesterday"}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "event_time", verr.Fields[0].Field)
	})

	t.Run("unparsable timestamp is reported once", func(t *testing.T) {
		_, err := DecodeEvent(json.RawMessage(`{"type":"SITE_VISIT","key":"p1","event_time":"soon","customer_id":"c1"}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"event_time"}, fieldNames(verr.Fields))
		assert.NotContains(t, verr.Error(), "required")
	})

	t.Run("colon separated timestamp", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"CUSTOMER","verb":"NEW","key":"c1","event_time":"2017-01-06:12:46:46.384Z"}`))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2017, 1, 6, 12, 46, 46, 384_000_000, time.UTC), ev.(*CustomerEvent).EventTime)
	})

	t.Run("site visit keeps blank tags in order", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"SITE_VISIT","key":"p1","event_time":"2017-01-06T12:45:52Z",
			"customer_id":"c1","tags":["home",""]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"home", ""}, ev.(*SiteVisitEvent).Tags)
	})

	t.Run("bad amount", func(t *testing.T) {
		_, err := DecodeEvent(json.RawMessage(`{"type":"ORDER","verb":"NEW","key":"o1",
			"event_time":"2017-01-06T12:55:55Z","customer_id":"c1","total_amount":"lots"}`))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, fieldNames(verr.Fields), "total_amount")
	})
}

func TestDecodeEvent_Patches(t *testing.T) {
	t.Run("customer update carries only non-empty fields", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"CUSTOMER","verb":"UPDATE","key":"c1","adr_city":"Boston","last_name":""}`))
		require.NoError(t, err)

		p := ev.(*CustomerEvent).Patch()
		assert.False(t, p.Empty())
		assert.Nil(t, p.EventTime)
		assert.Nil(t, p.LastName)
		assert.Nil(t, p.State)
		require.NotNil(t, p.City)
		assert.Equal(t, "Boston", *p.City)

		c := Customer{CustomerID: "c1", LastName: "Smith", City: "Middletown", State: "AK"}
		p.Apply(&c)
		assert.Equal(t, Customer{CustomerID: "c1", LastName: "Smith", City: "Boston", State: "AK"}, c)
	})

	t.Run("customer update with nothing to change", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"CUSTOMER","verb":"UPDATE","key":"c1"}`))
		require.NoError(t, err)
		assert.True(t, ev.(*CustomerEvent).Patch().Empty())
	})

	t.Run("order update ignores customer_id", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"ORDER","verb":"UPDATE","key":"o1","customer_id":"other","total_amount":"45.5 USD"}`))
		require.NoError(t, err)

		p := ev.(*OrderEvent).Patch()
		assert.Nil(t, p.EventTime)
		require.NotNil(t, p.TotalAmount)

		o := Order{OrderID: "o1", CustomerID: "c1", TotalAmount: decimal.NewFromInt(10)}
		p.Apply(&o)
		assert.Equal(t, "c1", o.CustomerID)
		assert.True(t, decimal.RequireFromString("45.5").Equal(o.TotalAmount))
	})

	t.Run("order update with null amount is empty", func(t *testing.T) {
		ev, err := DecodeEvent(json.RawMessage(`{"type":"ORDER","verb":"UPDATE","key":"o1","total_amount":null}`))
		require.NoError(t, err)
		assert.True(t, ev.(*OrderEvent).Patch().Empty())
	})
}

func TestParseEventTime(t *testing.T) {
	want := time.Date(2017, 1, 6, 12, 46, 46, 0, time.UTC)

	tests := []struct {
		name string
		in   string
	}{
		{"rfc3339 utc", "2017-01-06T12:46:46Z"},
		{"rfc3339 offset", "2017-01-06T14:46:46+02:00"},
		{"no zone", "2017-01-06T12:46:46"},
		{"space separated", "2017-01-06 12:46:46"},
		{"colon separated", "2017-01-06:12:46:46Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventTime(tt.in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	got, err := ParseEventTime("  ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseEventTime("06/01/2017")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"number", `12.34`, "12.34", true},
		{"string", `"12.34"`, "12.34", true},
		{"currency suffix", `"  7 EUR"`, "7", true},
		{"null", `null`, "0", false},
		{"absent", ``, "0", false},
		{"blank string", `"   "`, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, got.Valid)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal))
		})
	}

	_, err := ParseAmount(json.RawMessage(`"USD 12"`))
	assert.Error(t, err)
	_, err = ParseAmount(json.RawMessage(`true`))
	assert.Error(t, err)
}

func fieldNames(fields []FieldError) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Field
	}
	return names
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"home"`, "home"},
		{`""`, ""},
		{`{"some key": "some value"}`, `{"some key":"some value"}`},
		{`7`, "7"},
	}
	for _, tt := range tests {
		got, err := ParseTag(json.RawMessage(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseTag(json.RawMessage(`null`))
	assert.Error(t, err)
}
