package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// categorizeCmd re-runs categorization over an account's transactions,
// picking up transactions a failed classification batch left behind.
var categorizeCmd = &cobra.Command{
	Use:   "categorize --account <id>",
	Short: "Categorize an account's uncategorized transactions",
	Args:  cobra.NoArgs,
	RunE:  runCategorize,
}

// recurringCmd re-runs recurring charge detection for an account.
var recurringCmd = &cobra.Command{
	Use:   "recurring --account <id>",
	Short: "Detect recurring charges in an account",
	Args:  cobra.NoArgs,
	RunE:  runRecurring,
}

var (
	categorizeAccountID string
	recurringAccountID  string
)

func init() {
	rootCmd.AddCommand(categorizeCmd)
	rootCmd.AddCommand(recurringCmd)

	categorizeCmd.Flags().StringVarP(&categorizeAccountID, "account", "a", "", "account id (required)")
	categorizeCmd.MarkFlagRequired("account")

	recurringCmd.Flags().StringVarP(&recurringAccountID, "account", "a", "", "account id (required)")
	recurringCmd.MarkFlagRequired("account")
}

func runCategorize(cmd *cobra.Command, args []string) error {
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

	all, err := s.store.ListTransactions(ctx, categorizeAccountID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	var pending []int
	for i, tx := range all {
		if !tx.IsCategorized() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		fmt.Println("All transactions are categorized.")
		return nil
	}

	uncategorized := all[:0:0]
	for _, i := range pending {
		uncategorized = append(uncategorized, all[i])
	}

	stats, err := s.categorizer.Categorize(ctx, viper.GetString("user"), uncategorized)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	if err := s.store.UpdateTransactions(ctx, uncategorized); err != nil {
		os.Exit(handler.HandleError(err))
	}

	fmt.Println(stats.String())
	if stats.Uncategorized > 0 {
		fmt.Printf("%d transactions remain uncategorized; re-run later.\n", stats.Uncategorized)
	}
	return nil
}

func runRecurring(cmd *cobra.Command, args []string) error {
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

	all, err := s.store.ListTransactions(ctx, recurringAccountID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	groups := s.detector.Detect(viper.GetString("user"), recurringAccountID, all)
	if len(groups) == 0 {
		fmt.Println("No recurring charges detected.")
		return nil
	}

	if err := s.store.SaveRecurringGroups(ctx, groups); err != nil {
		os.Exit(handler.HandleError(err))
	}
	if err := s.store.UpdateTransactions(ctx, all); err != nil {
		os.Exit(handler.HandleError(err))
	}

	fmt.Printf("Detected %d recurring series:\n", len(groups))
	for _, group := range groups {
		fmt.Printf("  %-30s %10s  %-8s %d charges\n",
			group.Merchant, group.Amount.StringFixed(2), group.Period, len(group.TransactionIDs))
	}
	return nil
}
