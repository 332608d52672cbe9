// Package errors provides structured error handling for resumatch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage and index file errors
//   - 3XX: Embedding model and network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates catalog and index file errors.
	CategoryStorage Category = "STORAGE"
	// CategoryModel indicates embedding model and network errors.
	CategoryModel Category = "MODEL"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error; the process must stop.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates a degraded result the caller may recover from.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStorage        = "ERR_201_STORAGE"
	ErrCodeRecordNotFound = "ERR_202_RECORD_NOT_FOUND"
	ErrCodeIndexNotFound  = "ERR_203_INDEX_NOT_FOUND"
	ErrCodeIndexNotReady  = "ERR_204_INDEX_NOT_READY"
	ErrCodeIndexLocked    = "ERR_205_INDEX_LOCKED"

	// Model errors (300-399)
	ErrCodeModelUnavailable = "ERR_301_MODEL_UNAVAILABLE"
	ErrCodeNetworkTimeout   = "ERR_302_NETWORK_TIMEOUT"
	ErrCodeEmbeddingFailed  = "ERR_303_EMBEDDING_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeEmptyInput        = "ERR_403_EMPTY_INPUT"
	ErrCodeInvalidRecord     = "ERR_404_INVALID_RECORD"
	ErrCodeUnsupportedFormat = "ERR_405_UNSUPPORTED_FORMAT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
	ErrCodeTimeout  = "ERR_502_TIMEOUT"
)

// Sentinels for errors.Is. Matching is by code, so any error built with
// New or Wrap for the same code satisfies errors.Is against these.
var (
	ErrModelUnavailable  = &MatchError{Code: ErrCodeModelUnavailable}
	ErrDimensionMismatch = &MatchError{Code: ErrCodeDimensionMismatch}
	ErrEmptyInput        = &MatchError{Code: ErrCodeEmptyInput}
	ErrIndexNotFound     = &MatchError{Code: ErrCodeIndexNotFound}
	ErrIndexNotReady     = &MatchError{Code: ErrCodeIndexNotReady}
	ErrRecordNotFound    = &MatchError{Code: ErrCodeRecordNotFound}
	ErrInvalidRecord     = &MatchError{Code: ErrCodeInvalidRecord}
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "ERR_301_..." -> '3'
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryModel
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeModelUnavailable:
		return SeverityFatal
	case ErrCodeEmptyInput, ErrCodeIndexNotFound, ErrCodeIndexNotReady:
		// Non-fatal: the caller rebuilds or returns no results.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
