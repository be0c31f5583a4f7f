package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RowContext pinpoints a parse failure inside a statement file.
type RowContext struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   string `json:"column"`
	Value    string `json:"value"`
	Expected string `json:"expected,omitempty"`
}

// RowError is a per-row parse error. Row errors are recoverable by
// default: the parser drops the offending row and keeps going.
type RowError struct {
	*ImportError
	Row         *RowContext `json:"row"`
	Recoverable bool        `json:"recoverable"`
}

// Error implements the error interface with location information.
func (e *RowError) Error() string {
	msg := e.ImportError.Error()
	if e.Row == nil {
		return msg
	}

	location := fmt.Sprintf("at %s", filepath.Base(e.Row.File))
	if e.Row.Line > 0 {
		location += fmt.Sprintf(":%d", e.Row.Line)
	}
	if e.Row.Column != "" {
		location += fmt.Sprintf(" column '%s'", e.Row.Column)
	}
	return msg + " " + location
}

// NewRowError creates a per-row parse error.
func NewRowError(code ErrorCode, row *RowContext, message string, cause error) *RowError {
	base := build(cause, CategoryParse, code, message)
	if row != nil {
		base.WithContext("file", row.File).
			WithContext("line", row.Line).
			WithContext("column", row.Column).
			WithContext("value", row.Value)
	}

	return &RowError{
		ImportError: base,
		Row:         row,
		Recoverable: true,
	}
}

// BadAmountError reports an unparseable amount cell.
func BadAmountError(file string, line int, column, value string) *RowError {
	row := &RowContext{File: file, Line: line, Column: column, Value: value, Expected: "decimal number"}
	return NewRowError(CodeInvalidAmount, row, "invalid amount format", nil)
}

// BadDateError reports an unparseable date cell.
func BadDateError(file string, line int, column, value string) *RowError {
	row := &RowContext{File: file, Line: line, Column: column, Value: value, Expected: "calendar date"}
	return NewRowError(CodeInvalidDate, row, "invalid date format", nil)
}

// MissingColumnError reports required columns absent from a CSV header.
// Header errors are not recoverable: no row can parse without them.
func MissingColumnError(file string, expected, actual []string) *RowError {
	missing := missingColumns(expected, actual)
	row := &RowContext{
		File:     file,
		Line:     1,
		Expected: fmt.Sprintf("columns: %s", strings.Join(expected, ", ")),
	}

	err := NewRowError(CodeMissingColumn, row,
		fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
	err.Recoverable = false
	return err
}

// RowErrorCollector accumulates per-row errors during a parse. Parsing
// continues past recoverable errors up to maxErrors, then aborts.
type RowErrorCollector struct {
	errors    []*RowError
	maxErrors int
}

// NewRowErrorCollector creates a collector with the given error limit.
// A limit of zero means unlimited.
func NewRowErrorCollector(maxErrors int) *RowErrorCollector {
	return &RowErrorCollector{maxErrors: maxErrors}
}

// Add records an error and reports whether parsing should continue.
func (c *RowErrorCollector) Add(err *RowError) bool {
	if err == nil {
		return true
	}

	c.errors = append(c.errors, err)

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}
	return err.Recoverable
}

// HasErrors reports whether any errors were collected.
func (c *RowErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all collected errors.
func (c *RowErrorCollector) Errors() []*RowError {
	return c.errors
}

// ImportErrors converts the collected errors to the base type.
func (c *RowErrorCollector) ImportErrors() []*ImportError {
	result := make([]*ImportError, len(c.errors))
	for i, err := range c.errors {
		result[i] = err.ImportError
	}
	return result
}

func missingColumns(expected, actual []string) []string {
	actualSet := make(map[string]bool)
	for _, col := range actual {
		actualSet[strings.ToLower(strings.TrimSpace(col))] = true
	}

	var missing []string
	for _, col := range expected {
		if !actualSet[strings.ToLower(strings.TrimSpace(col))] {
			missing = append(missing, col)
		}
	}
	return missing
}
