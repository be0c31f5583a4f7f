package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cathal-killeen/fins/internal/report"

	"github.com/spf13/cobra"
)

// reportCmd renders an account summary in console, JSON, or CSV form.
var reportCmd = &cobra.Command{
	Use:   "report --account <id>",
	Short: "Report on an account's imported transactions",
	Long: `Report summarizes an account's stored transactions: category
breakdown, categorization coverage, and detected recurring charges.

Formats:
  console  human-readable summary (default)
  json     structured report for programmatic use
  csv      one row per transaction, for spreadsheets`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var (
	reportAccountID    string
	reportFormat       string
	reportOutput       string
	reportTransactions bool
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportAccountID, "account", "a", "", "account id (required)")
	reportCmd.MarkFlagRequired("account")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "console", "output format (console, json, csv)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the report to a file instead of stdout")
	reportCmd.Flags().BoolVar(&reportTransactions, "transactions", false, "include every transaction in console and JSON output")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	s, err := buildStack(ctx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer s.cleanup()

	if err := requireDatabase(s.config); err != nil {
		return err
	}

	config := report.DefaultConfig()
	config.Format = report.OutputFormat(reportFormat)
	config.IncludeTransactions = reportTransactions

	generator, err := report.NewGenerator(config)
	if err != nil {
		return fmt.Errorf("invalid report options: %w", err)
	}

	account, err := s.store.GetAccount(ctx, reportAccountID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	transactions, err := s.store.ListTransactions(ctx, reportAccountID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	groups, err := s.store.ListRecurringGroups(ctx, reportAccountID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	out := os.Stdout
	if reportOutput != "" {
		file, err := os.Create(reportOutput)
		if err != nil {
			return fmt.Errorf("cannot create report file: %w", err)
		}
		defer file.Close()
		out = file
	}

	rep := report.BuildAccountReport(account, transactions, groups)
	if err := generator.Generate(rep, out); err != nil {
		os.Exit(handler.HandleError(err))
	}

	return nil
}
