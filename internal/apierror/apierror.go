// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithCode attaches a machine-readable error code.
func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError wraps one message per rejected field. Errors is never empty.
type ValidationError struct {
	Detail string       `json:"detail"`
	Code   string       `json:"code"`
	Errors []FieldError `json:"errors"`
}

func NewValidation(errors []FieldError) *ValidationError {
	return &ValidationError{Detail: "Validation failed", Code: "VALIDATION_ERROR", Errors: errors}
}
