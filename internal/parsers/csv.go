package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cathal-killeen/fins/internal/models"
	"github.com/cathal-killeen/fins/pkg/errors"
	"github.com/cathal-killeen/fins/pkg/logger"
)

// columnLayout maps the semantic columns onto header indices. An index
// of -1 means the column is absent.
type columnLayout struct {
	date        int
	amount      int
	description int
	merchant    int
	debit       int
	credit      int
}

func (l columnLayout) usable() bool {
	return l.date >= 0 && (l.amount >= 0 || l.debit >= 0 || l.credit >= 0)
}

var last4Re = regexp.MustCompile(`(?i)(?:account|acct)[^0-9]*(?:[*xX•]\s*)*(\d{4})\b`)

func (p *Parser) parseCSV(fileName string, data []byte) (*models.StatementMetadata, []models.RawTransaction, *ParseStats, error) {
	if !utf8.Valid(data) {
		return nil, nil, nil, errors.ParseError(errors.CodeEncodingError, fileName,
			"file is not valid UTF-8", nil)
	}

	delimiter := sniffDelimiter(data)
	rows, err := readAllRows(data, delimiter)
	if err != nil {
		return nil, nil, nil, errors.ParseError(errors.CodeInvalidFormat, fileName, err.Error(), err)
	}
	if len(rows) == 0 {
		return nil, nil, nil, errors.ParseError(errors.CodeEmptyStatement, fileName, "no rows", nil)
	}

	headerIdx, layout := p.locateHeader(rows)
	if headerIdx < 0 {
		return nil, nil, nil, errors.ParseError(errors.CodeUnsupportedFormat, fileName,
			"no recognizable header row with date and amount columns", nil)
	}

	// Rows above the header sometimes carry account information.
	metadata := p.scanPreamble(rows[:headerIdx])

	stats := &ParseStats{}
	collector := errors.NewRowErrorCollector(p.config.MaxRowErrors)
	var transactions []models.RawTransaction
	var currencySample string

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}
		stats.RowsSeen++

		lineNo := i + 1
		tx, rowErr := p.parseRow(fileName, lineNo, row, layout)
		if rowErr != nil {
			stats.AddWarning(rowErr.Error())
			p.logger.WithFields(logger.Fields{
				"file_name": fileName,
				"line":      lineNo,
			}).Warn(rowErr.Error())
			if !collector.Add(rowErr) {
				return nil, nil, nil, errors.ParseError(errors.CodeInvalidFormat, fileName,
					fmt.Sprintf("too many unparseable rows (%d)", len(collector.Errors())), nil)
			}
			continue
		}

		if currencySample == "" && layout.amount >= 0 && layout.amount < len(row) {
			currencySample = row[layout.amount]
		}
		transactions = append(transactions, *tx)
		stats.RowsParsed++
	}

	if len(transactions) == 0 {
		if stats.RowsDropped > 0 {
			return nil, nil, nil, errors.ParseError(errors.CodeInvalidFormat, fileName,
				"every row failed to parse", nil)
		}
		return nil, nil, nil, errors.ParseError(errors.CodeEmptyStatement, fileName,
			"header found but no data rows", nil)
	}

	if metadata.Currency == "" {
		metadata.Currency = p.inferCurrency(currencySample)
	}
	metadata.PeriodStart, metadata.PeriodEnd = statementPeriod(transactions)

	for i := range transactions {
		if transactions[i].Currency == "" {
			transactions[i].Currency = metadata.Currency
		}
	}

	p.logger.WithFields(logger.Fields{
		"file_name": fileName,
		"parsed":    stats.RowsParsed,
		"dropped":   stats.RowsDropped,
	}).Info("CSV statement parsed")

	return metadata, transactions, stats, nil
}

// sniffDelimiter picks the delimiter that appears most consistently in
// the first few lines.
func sniffDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	lines := bytes.Split(data, []byte("\n"))
	limit := len(lines)
	if limit > 10 {
		limit = 10
	}

	best := ','
	bestCount := 0
	for _, candidate := range candidates {
		count := 0
		for i := 0; i < limit; i++ {
			count += bytes.Count(lines[i], []byte(string(candidate)))
		}
		if count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}

func readAllRows(data []byte, delimiter rune) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// locateHeader scans the first HeaderScanRows rows for one that names a
// date column plus either an amount column or a debit/credit pair.
func (p *Parser) locateHeader(rows [][]string) (int, columnLayout) {
	limit := len(rows)
	if limit > p.config.HeaderScanRows {
		limit = p.config.HeaderScanRows
	}

	for i := 0; i < limit; i++ {
		layout := p.matchColumns(rows[i])
		if layout.usable() {
			return i, layout
		}
	}
	return -1, columnLayout{}
}

func (p *Parser) matchColumns(row []string) columnLayout {
	layout := columnLayout{date: -1, amount: -1, description: -1, merchant: -1, debit: -1, credit: -1}

	for i, cell := range row {
		name := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case layout.date < 0 && matchesAlias(name, p.config.DateAliases):
			layout.date = i
		case layout.amount < 0 && matchesAlias(name, p.config.AmountAliases):
			layout.amount = i
		case layout.debit < 0 && matchesAlias(name, p.config.DebitAliases):
			layout.debit = i
		case layout.credit < 0 && matchesAlias(name, p.config.CreditAliases):
			layout.credit = i
		case layout.merchant < 0 && matchesAlias(name, p.config.MerchantAliases):
			layout.merchant = i
		case layout.description < 0 && matchesAlias(name, p.config.DescriptionAliases):
			layout.description = i
		}
	}
	return layout
}

func matchesAlias(name string, aliases []string) bool {
	for _, alias := range aliases {
		if name == alias {
			return true
		}
	}
	return false
}

// scanPreamble extracts account hints from rows preceding the header.
func (p *Parser) scanPreamble(rows [][]string) *models.StatementMetadata {
	metadata := &models.StatementMetadata{}

	for _, row := range rows {
		line := strings.Join(row, " ")

		if metadata.LastFour == "" {
			if m := last4Re.FindStringSubmatch(line); m != nil {
				metadata.LastFour = m[1]
			}
		}
		if metadata.AccountType == "" || metadata.AccountType == models.AccountTypeOther {
			if t := models.NormalizeAccountType(line); t != models.AccountTypeOther {
				metadata.AccountType = t
			}
		}
		if metadata.Institution == "" {
			if name := institutionFromLine(line); name != "" {
				metadata.Institution = name
			}
		}
	}

	if metadata.AccountType == "" {
		metadata.AccountType = models.AccountTypeOther
	}
	return metadata
}

func (p *Parser) parseRow(fileName string, lineNo int, row []string, layout columnLayout) (*models.RawTransaction, *errors.RowError) {
	dateStr := cellAt(row, layout.date)
	date, err := models.ParseDate(dateStr)
	if err != nil {
		return nil, errors.BadDateError(fileName, lineNo, "date", dateStr)
	}

	var amountStr string
	if layout.amount >= 0 {
		amountStr = cellAt(row, layout.amount)
	} else {
		// Separate debit/credit columns: whichever is populated wins,
		// debits become negative.
		debit := cellAt(row, layout.debit)
		credit := cellAt(row, layout.credit)
		switch {
		case strings.TrimSpace(debit) != "":
			amountStr = debit
			if !strings.HasPrefix(strings.TrimSpace(debit), "-") {
				amountStr = "-" + strings.TrimSpace(debit)
			}
		case strings.TrimSpace(credit) != "":
			amountStr = credit
		}
	}

	amount, err := models.ParseAmount(amountStr)
	if err != nil {
		return nil, errors.BadAmountError(fileName, lineNo, "amount", amountStr)
	}

	description := cellAt(row, layout.description)
	merchant := cellAt(row, layout.merchant)
	if description == "" {
		description = merchant
	}
	if merchant == "" {
		merchant = models.CleanMerchant(description)
	}

	return &models.RawTransaction{
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		Merchant:    strings.TrimSpace(merchant),
	}, nil
}

func cellAt(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var institutionKeywords = []string{
	"bank", "credit union", "financial", "chase", "wells fargo",
	"citibank", "capital one", "american express", "discover",
}

// institutionFromLine returns the line when it looks like a bank name.
func institutionFromLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) > 60 {
		return ""
	}

	lower := strings.ToLower(trimmed)
	for _, keyword := range institutionKeywords {
		if strings.Contains(lower, keyword) {
			return trimmed
		}
	}
	return ""
}
