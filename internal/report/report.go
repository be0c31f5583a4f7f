// Package report renders account import results in several output formats.
//
// Reports are built from an account's stored transactions and recurring
// groups and summarize what an import pipeline produced: category
// breakdowns, categorization coverage, and detected recurring charges.
//
// Supported output formats:
//   - Console: Human-readable tabular output for terminal display
//   - JSON: Structured data format for programmatic consumption
//   - CSV: Comma-separated format for spreadsheet applications
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cathal-killeen/fins/internal/models"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Config holds configuration options for report generation
type Config struct {
	// Output format
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludeTransactions  bool `json:"include_transactions" mapstructure:"include_transactions"`
	IncludeRecurring     bool `json:"include_recurring" mapstructure:"include_recurring"`
	IncludeUncategorized bool `json:"include_uncategorized" mapstructure:"include_uncategorized"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`

	// Sorting options
	SortByAmount bool `json:"sort_by_amount" mapstructure:"sort_by_amount"`
}

// DefaultConfig returns a default report configuration
func DefaultConfig() *Config {
	return &Config{
		Format:               FormatConsole,
		IncludeTransactions:  false,
		IncludeRecurring:     true,
		IncludeUncategorized: true,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
		SortByAmount:         false,
	}
}

// Validate validates the report configuration
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	return nil
}

// Summary holds aggregate statistics for an account report.
type Summary struct {
	TotalTransactions int `json:"total_transactions"`
	Categorized       int `json:"categorized"`
	CategorizedByAI   int `json:"categorized_by_ai"`
	Uncategorized     int `json:"uncategorized"`
	RecurringCharges  int `json:"recurring_charges"`
	RecurringGroups   int `json:"recurring_groups"`

	TotalInflow  decimal.Decimal `json:"total_inflow"`
	TotalOutflow decimal.Decimal `json:"total_outflow"`
	NetAmount    decimal.Decimal `json:"net_amount"`

	EarliestDate time.Time `json:"earliest_date,omitempty"`
	LatestDate   time.Time `json:"latest_date,omitempty"`
}

// CategoryTotal aggregates the transactions assigned to one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

// AccountReport is a snapshot of an account's imported data.
type AccountReport struct {
	Account         *models.Account         `json:"account"`
	Summary         *Summary                `json:"summary"`
	Categories      []*CategoryTotal        `json:"categories"`
	RecurringGroups []*models.RecurringGroup `json:"recurring_groups,omitempty"`
	Transactions    []*models.Transaction   `json:"transactions,omitempty"`
	GeneratedAt     time.Time               `json:"generated_at"`
}

// BuildAccountReport assembles a report from an account's stored data.
func BuildAccountReport(account *models.Account, transactions []*models.Transaction, groups []*models.RecurringGroup) *AccountReport {
	summary := &Summary{
		TotalTransactions: len(transactions),
		RecurringGroups:   len(groups),
		TotalInflow:       decimal.Zero,
		TotalOutflow:      decimal.Zero,
	}

	totals := make(map[string]*CategoryTotal)

	for _, tx := range transactions {
		if tx.IsCategorized() {
			summary.Categorized++
			if tx.AICategorized {
				summary.CategorizedByAI++
			}
		} else {
			summary.Uncategorized++
		}

		if tx.IsRecurring {
			summary.RecurringCharges++
		}

		if tx.IsDebit() {
			summary.TotalOutflow = summary.TotalOutflow.Add(tx.Amount.Abs())
		} else {
			summary.TotalInflow = summary.TotalInflow.Add(tx.Amount)
		}

		if summary.EarliestDate.IsZero() || tx.Date.Before(summary.EarliestDate) {
			summary.EarliestDate = tx.Date
		}
		if tx.Date.After(summary.LatestDate) {
			summary.LatestDate = tx.Date
		}

		category := tx.Category
		if category == "" {
			category = "Uncategorized"
		}
		ct := totals[category]
		if ct == nil {
			ct = &CategoryTotal{Category: category, Total: decimal.Zero}
			totals[category] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(tx.Amount)
	}

	summary.NetAmount = summary.TotalInflow.Sub(summary.TotalOutflow)

	categories := make([]*CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		categories = append(categories, ct)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Count != categories[j].Count {
			return categories[i].Count > categories[j].Count
		}
		return categories[i].Category < categories[j].Category
	})

	return &AccountReport{
		Account:         account,
		Summary:         summary,
		Categories:      categories,
		RecurringGroups: groups,
		Transactions:    transactions,
		GeneratedAt:     time.Now(),
	}
}

// Generator renders account reports in the configured format.
type Generator struct {
	config *Config
}

// NewGenerator creates a report generator with the specified configuration
func NewGenerator(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &Generator{
		config: config,
	}, nil
}

// Generate renders the report and writes it to the provided writer
func (g *Generator) Generate(rep *AccountReport, writer io.Writer) error {
	if rep == nil {
		return fmt.Errorf("account report cannot be nil")
	}

	switch g.config.Format {
	case FormatConsole:
		return g.generateConsoleReport(rep, writer)
	case FormatJSON:
		return g.generateJSONReport(rep, writer)
	case FormatCSV:
		return g.generateCSVReport(rep, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", g.config.Format)
	}
}

func (g *Generator) generateConsoleReport(rep *AccountReport, writer io.Writer) error {
	fmt.Fprintf(writer, "ACCOUNT REPORT\n")
	if rep.Account != nil {
		fmt.Fprintf(writer, "Account: %s", rep.Account.Name)
		if rep.Account.Institution != "" {
			fmt.Fprintf(writer, " (%s)", rep.Account.Institution)
		}
		fmt.Fprintf(writer, "\n")
	}
	fmt.Fprintf(writer, "Generated: %s\n\n", rep.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	g.printSummary(rep.Summary, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== CATEGORY BREAKDOWN ===\n")
	g.printCategoryTable(rep.Categories, writer)
	fmt.Fprintf(writer, "\n")

	if g.config.IncludeRecurring && len(rep.RecurringGroups) > 0 {
		fmt.Fprintf(writer, "=== RECURRING CHARGES ===\n")
		g.printRecurringGroups(rep.RecurringGroups, writer)
		fmt.Fprintf(writer, "\n")
	}

	if g.config.IncludeUncategorized {
		uncategorized := uncategorizedTransactions(rep.Transactions)
		if len(uncategorized) > 0 {
			fmt.Fprintf(writer, "=== UNCATEGORIZED TRANSACTIONS ===\n")
			g.printTransactionList(uncategorized, writer)
			fmt.Fprintf(writer, "\n")
		}
	}

	if g.config.IncludeTransactions && len(rep.Transactions) > 0 {
		fmt.Fprintf(writer, "=== TRANSACTIONS ===\n")
		g.printTransactionList(rep.Transactions, writer)
	}

	return nil
}

func (g *Generator) generateJSONReport(rep *AccountReport, writer io.Writer) error {
	filtered := g.filterReportForOutput(rep)

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(filtered)
}

func (g *Generator) generateCSVReport(rep *AccountReport, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = g.config.CSVDelimiter
	defer csvWriter.Flush()

	if g.config.CSVHeaders {
		headers := []string{
			"ID",
			"Date",
			"Description",
			"Merchant",
			"Amount",
			"Currency",
			"Category",
			"Subcategory",
			"Confidence",
			"AI_Categorized",
			"Recurring",
			"Recurring_Group",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	transactions := rep.Transactions
	if g.config.SortByAmount {
		transactions = append([]*models.Transaction(nil), transactions...)
		sort.Slice(transactions, func(i, j int) bool {
			return transactions[i].Amount.Abs().GreaterThan(transactions[j].Amount.Abs())
		})
	}

	for _, tx := range transactions {
		confidence := ""
		if tx.IsCategorized() {
			confidence = fmt.Sprintf("%.2f", tx.ConfidenceScore)
		}
		record := []string{
			tx.ID,
			tx.Date.Format("2006-01-02"),
			tx.Description,
			tx.Merchant,
			tx.Amount.StringFixed(2),
			tx.Currency,
			tx.Category,
			tx.Subcategory,
			confidence,
			fmt.Sprintf("%t", tx.AICategorized),
			fmt.Sprintf("%t", tx.IsRecurring),
			tx.RecurringGroupID,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write transaction record: %w", err)
		}
	}

	return nil
}

// Helper methods for console output formatting

func (g *Generator) printSummary(summary *Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Transactions:\n")
	fmt.Fprintf(writer, "  Total:         %d\n", summary.TotalTransactions)
	fmt.Fprintf(writer, "  Categorized:   %d (%.1f%%)\n",
		summary.Categorized,
		g.calculatePercentage(summary.Categorized, summary.TotalTransactions))
	fmt.Fprintf(writer, "  By AI:         %d (%.1f%%)\n",
		summary.CategorizedByAI,
		g.calculatePercentage(summary.CategorizedByAI, summary.TotalTransactions))
	fmt.Fprintf(writer, "  Uncategorized: %d (%.1f%%)\n",
		summary.Uncategorized,
		g.calculatePercentage(summary.Uncategorized, summary.TotalTransactions))
	fmt.Fprintf(writer, "  Recurring:     %d in %d groups\n",
		summary.RecurringCharges, summary.RecurringGroups)

	fmt.Fprintf(writer, "\nAmounts:\n")
	fmt.Fprintf(writer, "  Inflow:  %s\n", summary.TotalInflow.StringFixed(2))
	fmt.Fprintf(writer, "  Outflow: %s\n", summary.TotalOutflow.StringFixed(2))
	fmt.Fprintf(writer, "  Net:     %s\n", summary.NetAmount.StringFixed(2))

	if !summary.EarliestDate.IsZero() {
		fmt.Fprintf(writer, "\nPeriod: %s to %s\n",
			summary.EarliestDate.Format("2006-01-02"),
			summary.LatestDate.Format("2006-01-02"))
	}
}

func (g *Generator) printCategoryTable(categories []*CategoryTotal, writer io.Writer) {
	for _, ct := range categories {
		fmt.Fprintf(writer, "  %-25s %4d %12s\n", ct.Category, ct.Count, ct.Total.StringFixed(2))
	}
}

func (g *Generator) printRecurringGroups(groups []*models.RecurringGroup, writer io.Writer) {
	for _, group := range groups {
		fmt.Fprintf(writer, "  %-30s %10s  %-8s %d charges\n",
			group.Merchant,
			group.Amount.StringFixed(2),
			group.Period,
			len(group.TransactionIDs))
	}
}

func (g *Generator) printTransactionList(transactions []*models.Transaction, writer io.Writer) {
	for i, tx := range transactions {
		fmt.Fprintf(writer, "  %d. %s  %10s  %s\n",
			i+1,
			tx.Date.Format("2006-01-02"),
			tx.Amount.StringFixed(2),
			tx.Description)

		// Limit output for very long lists
		if i >= 9 && len(transactions) > 10 {
			fmt.Fprintf(writer, "  ... and %d more\n", len(transactions)-10)
			break
		}
	}
}

// Helper methods

func (g *Generator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (g *Generator) filterReportForOutput(rep *AccountReport) map[string]interface{} {
	output := map[string]interface{}{
		"account":      rep.Account,
		"summary":      rep.Summary,
		"categories":   rep.Categories,
		"generated_at": rep.GeneratedAt,
	}

	if g.config.IncludeRecurring && rep.RecurringGroups != nil {
		output["recurring_groups"] = rep.RecurringGroups
	}

	if g.config.IncludeTransactions && rep.Transactions != nil {
		output["transactions"] = rep.Transactions
	}

	if g.config.IncludeUncategorized {
		if uncategorized := uncategorizedTransactions(rep.Transactions); len(uncategorized) > 0 {
			output["uncategorized_transactions"] = uncategorized
		}
	}

	return output
}

func uncategorizedTransactions(transactions []*models.Transaction) []*models.Transaction {
	var uncategorized []*models.Transaction
	for _, tx := range transactions {
		if !tx.IsCategorized() || strings.EqualFold(tx.Category, "Uncategorized") {
			uncategorized = append(uncategorized, tx)
		}
	}
	return uncategorized
}
