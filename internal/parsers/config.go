package parsers

import (
	"fmt"
)

// Config controls statement parsing behavior.
type Config struct {
	// HeaderScanRows is how many leading CSV rows are examined when
	// looking for the header row.
	HeaderScanRows int `json:"header_scan_rows" mapstructure:"header_scan_rows"`

	// MaxRowErrors aborts the parse once this many rows have been
	// dropped. Zero means unlimited.
	MaxRowErrors int `json:"max_row_errors" mapstructure:"max_row_errors"`

	// DefaultCurrency is assumed when the statement does not declare one.
	DefaultCurrency string `json:"default_currency" mapstructure:"default_currency"`

	// Column aliases, matched case-insensitively against CSV headers.
	DateAliases        []string `json:"date_aliases" mapstructure:"date_aliases"`
	AmountAliases      []string `json:"amount_aliases" mapstructure:"amount_aliases"`
	DescriptionAliases []string `json:"description_aliases" mapstructure:"description_aliases"`
	MerchantAliases    []string `json:"merchant_aliases" mapstructure:"merchant_aliases"`
	DebitAliases       []string `json:"debit_aliases" mapstructure:"debit_aliases"`
	CreditAliases      []string `json:"credit_aliases" mapstructure:"credit_aliases"`
}

// DefaultConfig returns a configuration that recognizes the column
// names used by common bank exports.
func DefaultConfig() *Config {
	return &Config{
		HeaderScanRows:  10,
		MaxRowErrors:    100,
		DefaultCurrency: "USD",
		DateAliases: []string{
			"date", "transaction date", "trans date", "trans. date",
			"posted date", "posting date", "post date",
		},
		AmountAliases: []string{
			"amount", "transaction amount", "amount (usd)",
		},
		DescriptionAliases: []string{
			"description", "memo", "details", "transaction description",
			"narrative", "payee",
		},
		MerchantAliases: []string{
			"merchant", "merchant name", "name",
		},
		DebitAliases: []string{
			"debit", "withdrawal", "withdrawals", "money out",
		},
		CreditAliases: []string{
			"credit", "deposit", "deposits", "money in",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.HeaderScanRows <= 0 {
		return fmt.Errorf("header scan rows must be positive, got %d", c.HeaderScanRows)
	}

	if c.MaxRowErrors < 0 {
		return fmt.Errorf("max row errors cannot be negative, got %d", c.MaxRowErrors)
	}

	if len(c.DateAliases) == 0 {
		return fmt.Errorf("at least one date column alias is required")
	}

	if len(c.AmountAliases) == 0 && (len(c.DebitAliases) == 0 || len(c.CreditAliases) == 0) {
		return fmt.Errorf("amount column aliases are required (single amount or debit/credit pair)")
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.DateAliases = append([]string(nil), c.DateAliases...)
	clone.AmountAliases = append([]string(nil), c.AmountAliases...)
	clone.DescriptionAliases = append([]string(nil), c.DescriptionAliases...)
	clone.MerchantAliases = append([]string(nil), c.MerchantAliases...)
	clone.DebitAliases = append([]string(nil), c.DebitAliases...)
	clone.CreditAliases = append([]string(nil), c.CreditAliases...)
	return &clone
}
