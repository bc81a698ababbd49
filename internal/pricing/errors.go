package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError reports a missing resource. Resource "pricing" is the
// "no pricing available" case: the product has no valid vendor submission.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "pricing" {
		return fmt.Sprintf("No pricing available for product %s", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NoPricing is the NotFoundError raised when a product has no candidates.
func NoPricing(productID string) *NotFoundError {
	return &NotFoundError{Resource: "pricing", ID: productID}
}

// RateUnavailableError means no exchange rate links From and To in the
// snapshot taken at Epoch.
type RateUnavailableError struct {
	From  string
	To    string
	Epoch time.Time
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("no exchange rate available for %s/%s", e.From, e.To)
}

// FieldError is one violated input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects one message per violated field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violation for field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// OrNil returns e when at least one field failed, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// TransientError wraps a timeout or connectivity failure of a backing store.
// Callers may retry with backoff; the engine itself never does.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ConflictError means concurrent writers kept racing on the same record.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently, retry the request", e.Resource, e.ID)
}

// Error codes used in bulk outcomes and logs.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeRateUnavailable = "RATE_UNAVAILABLE"
	CodeValidation      = "VALIDATION_ERROR"
	CodeTransient       = "TRANSIENT"
	CodeConflict        = "CONFLICT"
	CodeCancelled       = "CANCELLED"
	CodeInternal        = "INTERNAL"
)

// ErrorCode classifies err into one of the Code* constants.
func ErrorCode(err error) string {
	var (
		nf *NotFoundError
		ru *RateUnavailableError
		ve *ValidationError
		te *TransientError
		ce *ConflictError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &nf):
		return CodeNotFound
	case errors.As(err, &ru):
		return CodeRateUnavailable
	case errors.As(err, &ve):
		return CodeValidation
	case errors.As(err, &te):
		return CodeTransient
	case errors.As(err, &ce):
		return CodeConflict
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	default:
		return CodeInternal
	}
}
