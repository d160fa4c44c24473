package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// ValidationError is returned for an event that cannot be ingested as given.
// It matches ErrInvalidEvent under errors.Is.
type ValidationError struct {
	Type   EventType
	Key    string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, fe := range e.Fields {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("invalid %s event %q: %s", e.Type, e.Key, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEvent }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidateEvent checks the fields an event needs before it can touch the
// store. UnknownEvent is never invalid.
func ValidateEvent(ev Event) []FieldError {
	var errs []FieldError

	switch e := ev.(type) {
	case *CustomerEvent:
		errs = validateTags(e)
		if e.Verb == VerbNew && e.EventTime.IsZero() {
			errs = append(errs, FieldError{"event_time", "required"})
		}
	case *SiteVisitEvent:
		errs = validateTags(e)
		if e.EventTime.IsZero() {
			errs = append(errs, FieldError{"event_time", "required"})
		}
	case *ImageEvent:
		errs = validateTags(e)
		if e.EventTime.IsZero() {
			errs = append(errs, FieldError{"event_time", "required"})
		}
	case *OrderEvent:
		errs = validateTags(e)
		if e.Verb == VerbNew {
			if e.EventTime.IsZero() {
				errs = append(errs, FieldError{"event_time", "required"})
			}
			if e.CustomerID == "" {
				errs = append(errs, FieldError{"customer_id", "required"})
			}
			if !e.TotalAmount.Valid {
				errs = append(errs, FieldError{"total_amount", "required"})
			}
		}
	}

	return errs
}

func validateTags(v any) []FieldError {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{"event", err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, FieldError{fe.Field(), msg})
	}
	return out
}
