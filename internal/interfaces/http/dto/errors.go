package dto

import (
	"net/http"

	"github.com/editdesk/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Caller error codes
const (
	// ErrCodeUnauthorized is used when the gateway identity headers are
	// missing or malformed
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the actor may not perform the action
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
)

// Workflow error codes
const (
	// ErrCodeInvalidTransition is used when the action is not allowed in the
	// order's current state
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeConflictingTransition is used when another actor changed the
	// order first
	ErrCodeConflictingTransition = "ERR_CONFLICTING_TRANSITION"
	ErrCodeRevisionLimit         = "ERR_REVISION_LIMIT_EXCEEDED"
	ErrCodeDispatchDegraded      = "ERR_DISPATCH_DEGRADED"
)

// Billing error codes
const (
	ErrCodeIncompleteMapping  = "ERR_INCOMPLETE_MAPPING"
	ErrCodeDuplicateInvoice   = "ERR_DUPLICATE_INVOICE"
	ErrCodeLedgerLocked       = "ERR_LEDGER_LOCKED"
	ErrCodeInvoicingDisabled  = "ERR_INVOICING_DISABLED"
	ErrCodeLedgerUnavailable  = "ERR_LEDGER_UNAVAILABLE"
	ErrCodeStorageUnavailable = "ERR_STORAGE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,

	// Rule violations -> 422 Unprocessable Entity
	ErrCodeInvalidTransition: http.StatusUnprocessableEntity,
	ErrCodeRevisionLimit:     http.StatusUnprocessableEntity,
	ErrCodeIncompleteMapping: http.StatusUnprocessableEntity,
	ErrCodeInvoicingDisabled: http.StatusUnprocessableEntity,

	// Lost races and one-shot operations -> 409 Conflict
	ErrCodeConflictingTransition: http.StatusConflict,
	ErrCodeDuplicateInvoice:      http.StatusConflict,
	ErrCodeLedgerLocked:          http.StatusConflict,

	// The change is committed, only realtime delivery lags
	ErrCodeDispatchDegraded: http.StatusAccepted,

	ErrCodeLedgerUnavailable:  http.StatusBadGateway,
	ErrCodeStorageUnavailable: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeNotFound:              ErrCodeNotFound,
	shared.CodeAlreadyExists:         ErrCodeAlreadyExists,
	shared.CodeInvalidInput:          ErrCodeInvalidInput,
	shared.CodeForbiddenActor:        ErrCodeForbidden,
	shared.CodeInvalidTransition:     ErrCodeInvalidTransition,
	shared.CodeConflictingTransition: ErrCodeConflictingTransition,
	shared.CodeRevisionLimitExceeded: ErrCodeRevisionLimit,
	shared.CodeIncompleteMapping:     ErrCodeIncompleteMapping,
	shared.CodeDuplicateInvoice:      ErrCodeDuplicateInvoice,
	shared.CodeDispatchDegraded:      ErrCodeDispatchDegraded,
	shared.CodeLedgerLocked:          ErrCodeLedgerLocked,
	shared.CodeInvoicingDisabled:     ErrCodeInvoicingDisabled,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
