package parsers

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

var (
	// A transaction line starts with a date and ends with an amount;
	// the description is everything in between.
	pdfLineRe = regexp.MustCompile(
		`^(\d{1,2}/\d{1,2}(?:/\d{2,4})?|\d{4}-\d{2}-\d{2}|[A-Z][a-z]{2}\s+\d{1,2},?\s+\d{4})\s+(.+?)\s+(-?\(?\$?[\d,]+\.\d{2}\)?(?:\s?[CD]R)?)$`)

	pdfPeriodRe = regexp.MustCompile(
		`(?i)(?:statement\s+period|period)[:\s]+(\d{1,2}/\d{1,2}/\d{2,4})\s*(?:-|to|through)\s*(\d{1,2}/\d{1,2}/\d{2,4})`)

	pdfLast4Re = regexp.MustCompile(
		`(?i)account(?:\s+(?:number|no\.?|#))?[:\s#]*(?:[*xX•]+[\s-]*)?(\d{4})\b`)
)

func (p *Parser) parsePDF(fileName string, data []byte) (*models.StatementMetadata, []models.RawTransaction, *ParseStats, error) {
	text, err := extractPDFText(data)
	if err != nil {
		return nil, nil, nil, errors.ParseError(errors.CodeUnsupportedFormat, fileName,
			fmt.Sprintf("pdf text extraction failed: %v", err), err)
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return nil, nil, nil, errors.ParseError(errors.CodeUnsupportedFormat, fileName,
			"pdf has no extractable text layer", nil)
	}

	metadata := p.scanPDFHeader(lines)
	defaultYear := periodYear(metadata)

	stats := &ParseStats{}
	var transactions []models.RawTransaction
	var currencySample string

	for lineNo, line := range lines {
		m := pdfLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		stats.RowsSeen++

		date, err := parsePDFDate(m[1], defaultYear)
		if err != nil {
			stats.AddWarning(errors.BadDateError(fileName, lineNo+1, "date", m[1]).Error())
			continue
		}

		amount, err := models.ParseAmount(m[3])
		if err != nil {
			stats.AddWarning(errors.BadAmountError(fileName, lineNo+1, "amount", m[3]).Error())
			continue
		}

		description := strings.TrimSpace(m[2])
		if currencySample == "" {
			currencySample = m[3]
		}

		transactions = append(transactions, models.RawTransaction{
			Date:        date,
			Amount:      amount,
			Description: description,
			Merchant:    models.CleanMerchant(description),
		})
		stats.RowsParsed++
	}

	if len(transactions) == 0 {
		if stats.RowsSeen > 0 {
			return nil, nil, nil, errors.ParseError(errors.CodeInvalidFormat, fileName,
				"every transaction line failed to parse", nil)
		}
		return nil, nil, nil, errors.ParseError(errors.CodeEmptyStatement, fileName,
			"no transaction lines found in pdf text", nil)
	}

	if metadata.Currency == "" {
		metadata.Currency = p.inferCurrency(currencySample)
	}
	if metadata.PeriodStart == nil || metadata.PeriodEnd == nil {
		metadata.PeriodStart, metadata.PeriodEnd = statementPeriod(transactions)
	}

	for i := range transactions {
		transactions[i].Currency = metadata.Currency
	}

	p.logger.WithFields(logger.Fields{
		"file_name": fileName,
		"parsed":    stats.RowsParsed,
		"dropped":   stats.RowsDropped,
	}).Info("PDF statement parsed")

	return metadata, transactions, stats, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// scanPDFHeader reads account hints from the top of the statement.
func (p *Parser) scanPDFHeader(lines []string) *models.StatementMetadata {
	metadata := &models.StatementMetadata{AccountType: models.AccountTypeOther}

	limit := len(lines)
	if limit > 40 {
		limit = 40
	}

	for i := 0; i < limit; i++ {
		line := lines[i]

		if metadata.LastFour == "" {
			if m := pdfLast4Re.FindStringSubmatch(line); m != nil {
				metadata.LastFour = m[1]
			}
		}

		if metadata.AccountType == models.AccountTypeOther {
			if t := models.NormalizeAccountType(line); t != models.AccountTypeOther {
				metadata.AccountType = t
			}
		}

		if metadata.Institution == "" {
			if name := institutionFromLine(line); name != "" {
				metadata.Institution = name
			}
		}

		if metadata.PeriodStart == nil {
			if m := pdfPeriodRe.FindStringSubmatch(line); m != nil {
				if start, err := models.ParseDate(m[1]); err == nil {
					if end, err := models.ParseDate(m[2]); err == nil {
						metadata.PeriodStart = &start
						metadata.PeriodEnd = &end
					}
				}
			}
		}
	}

	// Fall back to the first line as the institution name; bank
	// statements near-universally lead with it.
	if metadata.Institution == "" && len(lines) > 0 && len(lines[0]) <= 60 {
		metadata.Institution = lines[0]
	}

	return metadata
}

func periodYear(metadata *models.StatementMetadata) int {
	if metadata.PeriodStart != nil {
		return metadata.PeriodStart.Year()
	}
	return time.Now().Year()
}

// parsePDFDate handles dates both with and without a year component.
// Yearless dates (common in statement tables) borrow the statement
// period's year.
func parsePDFDate(s string, defaultYear int) (time.Time, error) {
	if t, err := models.ParseDate(s); err == nil {
		return t, nil
	}

	for _, format := range []string{"01/02", "1/2"} {
		if t, err := time.Parse(format, s); err == nil {
			return time.Date(defaultYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
