package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context. The workflow-specific codes are
// returned to callers verbatim so clients can branch on them.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeForbiddenActor        = "FORBIDDEN_ACTOR"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeConflictingTransition = "CONFLICTING_TRANSITION"
	CodeRevisionLimitExceeded = "REVISION_LIMIT_EXCEEDED"
	CodeIncompleteMapping     = "INCOMPLETE_MAPPING"
	CodeDuplicateInvoice      = "DUPLICATE_INVOICE"
	CodeDispatchDegraded      = "DISPATCH_DEGRADED"
	CodeLedgerLocked          = "LEDGER_LOCKED"
	CodeInvoicingDisabled     = "INVOICING_DISABLED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so callers can use errors.Is against the
// sentinel values below regardless of the attached details.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail returns a copy of the error carrying an extra detail entry
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorf creates a new domain error with a formatted message
func NewDomainErrorf(code, format string, args ...any) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// AsDomainError unwraps err into a *DomainError when possible
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Common domain errors
var (
	ErrNotFound              = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists         = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput          = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrForbiddenActor        = NewDomainError(CodeForbiddenActor, "Actor is not allowed to perform this action")
	ErrInvalidTransition     = NewDomainError(CodeInvalidTransition, "Action is not allowed in the current state")
	ErrConflictingTransition = NewDomainError(CodeConflictingTransition, "Order was modified concurrently, refetch and retry")
	ErrRevisionLimitExceeded = NewDomainError(CodeRevisionLimitExceeded, "Revision limit reached")
	ErrIncompleteMapping     = NewDomainError(CodeIncompleteMapping, "Accounting mapping is incomplete")
	ErrDuplicateInvoice      = NewDomainError(CodeDuplicateInvoice, "Invoice already raised for this order")
	ErrDispatchDegraded      = NewDomainError(CodeDispatchDegraded, "Activity dispatch degraded, delivery will be retried")
	ErrLedgerLocked          = NewDomainError(CodeLedgerLocked, "Ledger is read-only after the invoice was raised")
	ErrInvoicingDisabled     = NewDomainError(CodeInvoicingDisabled, "Invoicing is disabled for this partner")
)
