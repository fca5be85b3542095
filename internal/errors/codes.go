// Package errors provides structured error handling for unisearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Query validation errors
//   - 3XX: Network errors
//   - 4XX: Backend errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryQuery indicates query validation errors.
	CategoryQuery Category = "QUERY"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryBackend indicates errors reported by a search backend.
	CategoryBackend Category = "BACKEND"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Query errors (200-299)
	ErrCodeQueryEmpty   = "ERR_201_QUERY_EMPTY"
	ErrCodeInvalidScope = "ERR_202_INVALID_SCOPE"
	ErrCodeInvalidLimit = "ERR_203_INVALID_LIMIT"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"

	// Backend errors (400-499)
	ErrCodeAuthDenied         = "ERR_401_AUTH_DENIED"
	ErrCodeIndexNotFound      = "ERR_402_INDEX_NOT_FOUND"
	ErrCodeBackendUnavailable = "ERR_403_BACKEND_UNAVAILABLE"
	ErrCodeGraphQLErrors      = "ERR_404_GRAPHQL_ERRORS"
	ErrCodeSearchFailed       = "ERR_405_SEARCH_FAILED"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract leading digit of the numeric portion (e.g., "4" from "ERR_401_AUTH_DENIED")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryQuery
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryBackend
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	if code == ErrCodeConfigInvalid {
		return SeverityFatal
	}

	// Retryable network errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable:
		return true
	default:
		return false
	}
}
