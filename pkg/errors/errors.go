// Package errors defines the error taxonomy used across the statement
// ingestion pipeline. Every error carries a category, a machine-readable
// code, an optional suggestion for the operator, and contextual fields,
// on top of a wrapped cause with a stack trace.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory groups errors by the subsystem that produced them.
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryMatch          ErrorCategory = "match"
	CategoryClassification ErrorCategory = "classification"
	CategoryConfirmation   ErrorCategory = "confirmation"
	CategoryPersistence    ErrorCategory = "persistence"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound ErrorCode = "file_not_found"
	CodeFileTooLarge ErrorCode = "file_too_large"
	CodeFileEmpty    ErrorCode = "file_empty"

	// Parse errors
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeEmptyStatement    ErrorCode = "empty_statement"
	CodeInvalidFormat     ErrorCode = "invalid_format"
	CodeMissingColumn     ErrorCode = "missing_column"
	CodeEncodingError     ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeOutOfRange    ErrorCode = "out_of_range"

	// Match errors
	CodeMatchAmbiguous ErrorCode = "match_ambiguous"
	CodeNoAccounts     ErrorCode = "no_accounts"

	// Classification errors
	CodeClassificationUnavailable ErrorCode = "classification_unavailable"
	CodeMalformedResponse         ErrorCode = "malformed_response"
	CodeProviderTimeout           ErrorCode = "provider_timeout"

	// Confirmation errors
	CodeInvalidConfirmation ErrorCode = "invalid_confirmation"
	CodeJobNotFound         ErrorCode = "job_not_found"
	CodeStageConflict       ErrorCode = "stage_conflict"

	// Persistence errors
	CodeConnectionFailed ErrorCode = "connection_failed"
	CodeQueryFailed      ErrorCode = "query_failed"
	CodeNotFound         ErrorCode = "not_found"
	CodeConflict         ErrorCode = "conflict"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ImportError is the base error type for the ingestion pipeline.
type ImportError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context carries additional key/value information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *ImportError) Unwrap() error {
	return e.Cause
}

// GetExitCode maps the error category to a process exit code for the CLI.
func (e *ImportError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryMatch, CategoryConfirmation, CategoryInternal:
		return 5
	case CategoryClassification:
		return 6
	case CategoryPersistence:
		return 7
	default:
		return 1
	}
}

// WithContext attaches a contextual field to the error.
func (e *ImportError) WithContext(key string, value interface{}) *ImportError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches an operator-facing suggestion to the error.
func (e *ImportError) WithSuggestion(suggestion string) *ImportError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ImportError.
func New(category ErrorCategory, code ErrorCode, message string) *ImportError {
	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ImportError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}

	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// FileError creates a file-related error.
func FileError(code ErrorCode, name string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", name)
		suggestion = "check that the file path is correct"
	case CodeFileTooLarge:
		message = fmt.Sprintf("file exceeds the upload size limit: %s", name)
		suggestion = "split the statement into smaller files or export a shorter period"
	case CodeFileEmpty:
		message = fmt.Sprintf("file is empty: %s", name)
		suggestion = "re-export the statement and upload it again"
	default:
		message = fmt.Sprintf("file error: %s", name)
		suggestion = "check the file and try again"
	}

	return build(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_name", name)
}

// ParseError creates a statement-parsing error.
func ParseError(code ErrorCode, fileName string, detail string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported statement format in %s: %s", fileName, detail)
		suggestion = "upload a CSV with date and amount columns, or a PDF with a text layer"
	case CodeEmptyStatement:
		message = fmt.Sprintf("no transactions found in %s", fileName)
		suggestion = "verify the file covers a period with activity"
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in %s: %s", fileName, detail)
		suggestion = "check that the data matches the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column in %s: %s", fileName, detail)
		suggestion = "ensure the CSV has date and amount columns"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in %s: %s", fileName, detail)
		suggestion = "save the file in UTF-8 encoding"
	default:
		message = fmt.Sprintf("parse error in %s: %s", fileName, detail)
		suggestion = "check the file format and data integrity"
	}

	return build(err, CategoryParse, code, message).
		WithSuggestion(suggestion).
		WithContext("file_name", fileName).
		WithContext("detail", detail)
}

// ValidationError creates a field-validation error.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be decimal numbers such as '12.34' or '(1,200.00)'"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use a recognizable date format such as YYYY-MM-DD or MM/DD/YYYY"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ClassificationError creates an error for the external classification capability.
func ClassificationError(code ErrorCode, detail string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeClassificationUnavailable:
		message = fmt.Sprintf("classification capability unavailable: %s", detail)
		suggestion = "affected transactions stay uncategorized and are retried on the next pass"
	case CodeMalformedResponse:
		message = fmt.Sprintf("classification response is malformed: %s", detail)
		suggestion = "the response must map one-to-one onto the submitted transaction ids"
	case CodeProviderTimeout:
		message = fmt.Sprintf("classification request timed out: %s", detail)
		suggestion = "check provider availability and rate limits"
	default:
		message = fmt.Sprintf("classification error: %s", detail)
		suggestion = "check the classification provider configuration"
	}

	return build(err, CategoryClassification, code, message).
		WithSuggestion(suggestion).
		WithContext("detail", detail)
}

// ConfirmationError creates an error for the confirmation entry point.
func ConfirmationError(code ErrorCode, jobID string, detail string) *ImportError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfirmation:
		message = fmt.Sprintf("invalid confirmation for job %s: %s", jobID, detail)
		suggestion = "supply exactly one of an existing account id or a new-account request"
	case CodeJobNotFound:
		message = fmt.Sprintf("import job not found: %s", jobID)
		suggestion = "check the job id"
	case CodeStageConflict:
		message = fmt.Sprintf("job %s cannot be confirmed: %s", jobID, detail)
		suggestion = "only jobs awaiting confirmation accept a confirmation"
	default:
		message = fmt.Sprintf("confirmation error for job %s: %s", jobID, detail)
		suggestion = "check the job state and the confirmation payload"
	}

	return New(CategoryConfirmation, code, message).
		WithSuggestion(suggestion).
		WithContext("job_id", jobID)
}

// PersistenceError creates a storage-related error.
func PersistenceError(code ErrorCode, operation string, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("database connection failed during %s", operation)
		suggestion = "check database availability and connection settings"
	case CodeQueryFailed:
		message = fmt.Sprintf("database operation failed during %s", operation)
		suggestion = "check the database logs for details"
	case CodeNotFound:
		message = fmt.Sprintf("record not found during %s", operation)
		suggestion = "verify the referenced record exists"
	case CodeConflict:
		message = fmt.Sprintf("conflicting write detected during %s", operation)
		suggestion = "retry the operation"
	default:
		message = fmt.Sprintf("persistence error during %s", operation)
		suggestion = "check storage health and try again"
	}

	return build(err, CategoryPersistence, code, message).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ImportError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flag, environment, or config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check the configuration and try again"
	}

	return build(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error.
func InternalError(operation string, err error) *ImportError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	return build(err, CategoryInternal, CodeUnexpectedError, message).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

func build(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// IsImportError checks whether an error is an ImportError.
func IsImportError(err error) bool {
	_, ok := err.(*ImportError)
	return ok
}

// AsImportError extracts an ImportError from an error chain.
func AsImportError(err error) (*ImportError, bool) {
	var importErr *ImportError
	if errors.As(err, &importErr) {
		return importErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if importErr, ok := AsImportError(err); ok {
		return importErr.Code == code
	}
	return false
}

// WrapIfNeeded wraps an error unless it already is an ImportError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}

	if importErr, ok := AsImportError(err); ok {
		return importErr
	}

	return Wrap(err, category, code, message)
}

// Summarize renders a short multi-error summary for logs.
func Summarize(errs []*ImportError) string {
	if len(errs) == 0 {
		return "no errors"
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}

	byCategory := make(map[ErrorCategory]int)
	for _, err := range errs {
		byCategory[err.Category]++
	}

	var parts []string
	for category, count := range byCategory {
		parts = append(parts, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", len(errs), strings.Join(parts, ", "))
}
