package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// statementDateFormats are tried in order when parsing statement dates.
var statementDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseAmount parses a statement amount cell into a signed decimal.
// It strips currency symbols and thousands separators, and treats both
// parenthesized values and trailing DR markers as negatives.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount string")
	}

	negative := false

	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	upper := strings.ToUpper(cleaned)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = true
		cleaned = strings.TrimSpace(cleaned[:len(cleaned)-2])
	case strings.HasSuffix(upper, "CR"):
		cleaned = strings.TrimSpace(cleaned[:len(cleaned)-2])
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimPrefix(cleaned, "€")
	cleaned = strings.TrimPrefix(cleaned, "£")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	if strings.HasPrefix(cleaned, "-") {
		negative = !negative
		cleaned = cleaned[1:]
	} else {
		cleaned = strings.TrimPrefix(cleaned, "+")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// ParseDate parses a statement date cell, trying common bank formats.
func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	for _, format := range statementDateFormats {
		if t, err := time.Parse(format, cleaned); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	trailingRefRe = regexp.MustCompile(`(?i)\s*(#\d+|\d{4,}|x{2,}\d+)\s*$`)
	cardPrefixRe  = regexp.MustCompile(`(?i)^(pos |debit card |credit card |ach |check card |recurring )`)
)

// NormalizeDescription lowercases and collapses whitespace so that
// descriptions can be compared across statement exports.
func NormalizeDescription(s string) string {
	normalized := strings.ToLower(strings.TrimSpace(s))
	return whitespaceRe.ReplaceAllString(normalized, " ")
}

// CleanMerchant derives a merchant name from a raw description by
// stripping processor prefixes and trailing store or reference numbers.
func CleanMerchant(description string) string {
	cleaned := strings.TrimSpace(description)
	cleaned = cardPrefixRe.ReplaceAllString(cleaned, "")
	cleaned = trailingRefRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// DatesWithinTolerance reports whether two dates fall within the given
// number of calendar days of each other.
func DatesWithinTolerance(a, b time.Time, days int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(days)*24*time.Hour
}
