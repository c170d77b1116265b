package models

import (
	"fmt"
	"strings"
)

// FieldError describes a single invalid field in a request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when client input is missing, malformed or
// logically inconsistent. Maps to HTTP 400 with a user-displayable message.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// NewValidationError builds a ValidationError from field errors.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// NotFoundError is returned when a referenced package, category, booking or
// merchant transaction does not exist (or the package is inactive).
// Maps to HTTP 404.
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " not found"
}

// ConsistencyError is returned when two referenced entities do not agree,
// e.g. the category's parent package differs from the requested package.
// Maps to HTTP 400.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string { return e.Message }

// PricingError is a server-side data integrity fault: the catalog price could
// not be interpreted as a number. Logged in full, surfaced as a generic 500.
type PricingError struct {
	CategoryID int64
	RawPrice   string
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("unparseable price %q for category %d", e.RawPrice, e.CategoryID)
}

// PersistenceError is returned when a write did not take effect (e.g. the
// insert affected zero rows). Logged in full, surfaced as a generic 500.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// GatewayError is returned when the payment gateway is unreachable or its
// response cannot be interpreted. Distinct from a gateway-reported payment
// failure: it must never be treated as a failed payment.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
	}
	return "payment gateway " + e.Op
}

func (e *GatewayError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned when a status change is not listed in
// the transition table. The previous state is always retained.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}
