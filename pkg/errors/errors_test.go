package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestImportError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeUnsupportedFormat,
			message:    "unsupported format",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "classification error",
			category:   CategoryClassification,
			code:       CodeClassificationUnavailable,
			message:    "provider down",
			cause:      errors.New("connection refused"),
			expectCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ImportError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
		})
	}
}

func TestImportErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/file").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/file" {
		t.Errorf("expected file context '/path/to/file', got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}
	if err.Suggestion != "check file path" {
		t.Errorf("expected suggestion 'check file path', got %s", err.Suggestion)
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		err := FileError(CodeFileTooLarge, "statement.csv", nil)

		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Code != CodeFileTooLarge {
			t.Errorf("expected file_too_large code, got %s", err.Code)
		}
		if err.Context["file_name"] != "statement.csv" {
			t.Errorf("expected file_name context, got %v", err.Context["file_name"])
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeEmptyStatement, "statement.pdf", "0 rows", nil)

		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["file_name"] != "statement.pdf" {
			t.Errorf("expected file_name context, got %v", err.Context["file_name"])
		}
		if !strings.Contains(err.Message, "no transactions found") {
			t.Errorf("unexpected message: %s", err.Message)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeInvalidAmount, "amount", "12.3.4", nil)

		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if err.Context["field"] != "amount" {
			t.Errorf("expected field context, got %v", err.Context["field"])
		}
		if err.Context["value"] != "12.3.4" {
			t.Errorf("expected value context, got %v", err.Context["value"])
		}
	})

	t.Run("ConfirmationError", func(t *testing.T) {
		err := ConfirmationError(CodeStageConflict, "job-1", "stage is completed")

		if err.Category != CategoryConfirmation {
			t.Errorf("expected confirmation category, got %s", err.Category)
		}
		if err.Context["job_id"] != "job-1" {
			t.Errorf("expected job_id context, got %v", err.Context["job_id"])
		}
	})

	t.Run("ClassificationError", func(t *testing.T) {
		cause := errors.New("429 too many requests")
		err := ClassificationError(CodeClassificationUnavailable, "3 attempts exhausted", cause)

		if err.Category != CategoryClassification {
			t.Errorf("expected classification category, got %s", err.Category)
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be preserved")
		}
	})
}

func TestHasCode(t *testing.T) {
	err := ClassificationError(CodeClassificationUnavailable, "down", nil)

	if !HasCode(err, CodeClassificationUnavailable) {
		t.Error("expected HasCode to match the error's code")
	}
	if HasCode(err, CodeMalformedResponse) {
		t.Error("expected HasCode to reject a different code")
	}
	if HasCode(errors.New("plain"), CodeClassificationUnavailable) {
		t.Error("expected HasCode to reject a plain error")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	importErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	result1 := WrapIfNeeded(importErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if result1 != importErr {
		t.Error("expected WrapIfNeeded to return original ImportError")
	}

	result2 := WrapIfNeeded(genericErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if result2.Cause != genericErr {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}
	if result2.Category != CategoryParse {
		t.Error("expected wrapped error to have correct category")
	}

	if WrapIfNeeded(nil, CategoryParse, CodeInvalidFormat, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != "no errors" {
		t.Errorf("expected 'no errors', got %q", got)
	}

	single := []*ImportError{New(CategoryFile, CodeFileNotFound, "only one")}
	if got := Summarize(single); got != "only one" {
		t.Errorf("expected single message, got %q", got)
	}

	many := []*ImportError{
		New(CategoryParse, CodeInvalidFormat, "error 1"),
		New(CategoryParse, CodeInvalidDate, "error 2"),
		New(CategoryValidation, CodeInvalidAmount, "error 3"),
	}
	got := Summarize(many)
	if !strings.Contains(got, "3 errors occurred") {
		t.Errorf("expected count in summary, got %q", got)
	}
	if !strings.Contains(got, "parse: 2") {
		t.Errorf("expected per-category count in summary, got %q", got)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryMatch, 5},
		{CategoryConfirmation, 5},
		{CategoryInternal, 5},
		{CategoryClassification, 6},
		{CategoryPersistence, 7},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}

func TestRowErrorCollector(t *testing.T) {
	c := NewRowErrorCollector(3)

	if c.HasErrors() {
		t.Error("expected no errors initially")
	}
	if !c.Add(nil) {
		t.Error("expected nil add to allow continuation")
	}

	if !c.Add(BadAmountError("s.csv", 2, "amount", "abc")) {
		t.Error("expected recoverable error to allow continuation")
	}
	if !c.Add(BadDateError("s.csv", 3, "date", "not-a-date")) {
		t.Error("expected recoverable error to allow continuation")
	}
	if c.Add(BadAmountError("s.csv", 4, "amount", "xyz")) {
		t.Error("expected collector to stop at error limit")
	}

	if len(c.Errors()) != 3 {
		t.Errorf("expected 3 collected errors, got %d", len(c.Errors()))
	}
	if len(c.ImportErrors()) != 3 {
		t.Errorf("expected 3 converted errors, got %d", len(c.ImportErrors()))
	}
}

func TestMissingColumnError(t *testing.T) {
	err := MissingColumnError("s.csv", []string{"date", "amount", "description"}, []string{"Date", "Description"})

	if err.Recoverable {
		t.Error("expected missing-column error to be unrecoverable")
	}
	if !strings.Contains(err.Message, "amount") {
		t.Errorf("expected missing column named in message, got %q", err.Message)
	}
	if strings.Contains(err.Message, "date,") {
		t.Errorf("case-insensitive header match failed: %q", err.Message)
	}
	if !strings.Contains(err.Error(), "s.csv:1") {
		t.Errorf("expected location in error string, got %q", err.Error())
	}
}
