// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// Machine-readable codes for the closing workflow errors clients branch on.
const (
	CodeAlreadyClosed        = "ALREADY_CLOSED"
	CodeRegisterLocked       = "REGISTER_LOCKED"
	CodeInvalidCount         = "INVALID_COUNT"
	CodeClosingInProgress    = "CLOSING_IN_PROGRESS"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeTransactionLocked    = "TRANSACTION_LOCKED"
	CodePersistence          = "PERSISTENCE_ERROR"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string                 `json:"detail"`
	Code   string                 `json:"code,omitempty"`
	Meta   map[string]interface{} `json:"meta,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithCode builds an error carrying one of the codes above.
func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// With attaches a metadata field, e.g. the reopen time of a locked register.
func (e *APIError) With(key string, v interface{}) *APIError {
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	e.Meta[key] = v
	return e
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Validation error", Fields: fields}
}
