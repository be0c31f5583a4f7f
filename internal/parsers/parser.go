// Package parsers extracts structured transactions and account metadata
// from uploaded bank statements.
//
// Two formats are supported: CSV exports (delimiter-sniffed, header row
// located by column-name heuristics) and PDF statements (text-layer
// extraction with line-level pattern matching). Parsing is a pure
// transform: the same input bytes always produce the same ordered
// transaction sequence.
//
// Rows whose amount or date cannot be parsed are dropped with a warning
// rather than failing the statement, unless no row survives at all.
package parsers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// ParseStats summarizes one parse run.
type ParseStats struct {
	RowsSeen    int
	RowsParsed  int
	RowsDropped int
	Warnings    []string
}

// AddWarning records a dropped-row warning.
func (s *ParseStats) AddWarning(warning string) {
	s.Warnings = append(s.Warnings, warning)
	s.RowsDropped++
}

// String returns a human-readable summary of the parse.
func (s *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d of %d rows (%d dropped)",
		s.RowsParsed, s.RowsSeen, s.RowsDropped)
}

// Parser turns uploaded statement files into transaction sequences.
type Parser struct {
	config *Config
	logger logger.Logger
}

// NewParser creates a Parser with the given configuration.
func NewParser(config *Config) (*Parser, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parser", nil, err)
	}

	return &Parser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("parser"),
	}, nil
}

// Parse extracts statement metadata and the ordered transaction
// sequence from the uploaded file. The format is chosen from the MIME
// type, the file extension, and the file's magic bytes, in that order.
func (p *Parser) Parse(fileName string, data []byte, mimeType string) (*models.StatementMetadata, []models.RawTransaction, *ParseStats, error) {
	if len(data) == 0 {
		return nil, nil, nil, errors.FileError(errors.CodeFileEmpty, fileName, nil)
	}

	format := detectFormat(fileName, data, mimeType)
	p.logger.WithFields(logger.Fields{
		"file_name": fileName,
		"file_size": len(data),
		"format":    format,
	}).Info("Parsing statement")

	switch format {
	case formatCSV:
		return p.parseCSV(fileName, data)
	case formatPDF:
		return p.parsePDF(fileName, data)
	default:
		return nil, nil, nil, errors.ParseError(errors.CodeUnsupportedFormat, fileName,
			fmt.Sprintf("mime type %q", mimeType), nil)
	}
}

type fileFormat string

const (
	formatCSV     fileFormat = "csv"
	formatPDF     fileFormat = "pdf"
	formatUnknown fileFormat = "unknown"
)

func detectFormat(fileName string, data []byte, mimeType string) fileFormat {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "text/csv", "application/csv", "application/vnd.ms-excel":
		return formatCSV
	case "application/pdf":
		return formatPDF
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return formatCSV
	case ".pdf":
		return formatPDF
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return formatPDF
	}

	// Plain text with at least one delimiter is worth a CSV attempt.
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if !bytes.ContainsRune(head, 0) && bytes.ContainsAny(head, ",;\t|") {
		return formatCSV
	}

	return formatUnknown
}

// inferCurrency maps a currency symbol seen in amount cells onto an
// ISO code, falling back to the configured default.
func (p *Parser) inferCurrency(sample string) string {
	switch {
	case strings.Contains(sample, "€"):
		return "EUR"
	case strings.Contains(sample, "£"):
		return "GBP"
	case strings.Contains(sample, "$"):
		return "USD"
	default:
		return p.config.DefaultCurrency
	}
}

// statementPeriod returns the min and max transaction dates.
func statementPeriod(transactions []models.RawTransaction) (start, end *time.Time) {
	for i := range transactions {
		d := transactions[i].Date
		if start == nil || d.Before(*start) {
			copied := d
			start = &copied
		}
		if end == nil || d.After(*end) {
			copied := d
			end = &copied
		}
	}
	return start, end
}
