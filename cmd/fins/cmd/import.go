package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cathal-killeen/fins/internal/importer"
	"github.com/cathal-killeen/fins/internal/models"
)

// Flags for the import command
var (
	importAccountID   string
	importCreateNew   bool
	importAccountName string
	importAcceptMatch bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <statement-file>",
	Short: "Import a bank statement file",
	Long: `Import parses a bank statement (CSV or PDF), proposes the matching
account, and after confirmation imports the transactions with
deduplication, categorization, and recurring charge detection.

The account decision comes from exactly one of:
  --account <id>        import into an existing account
  --create-account      create a new account (use --account-name to name it)
  --yes                 accept whatever the matcher proposes

Examples:
  fins import statement.csv --yes
  fins import statement.csv --account 6f1c9a...
  fins import chase_jan.pdf --create-account --account-name "Chase Checking"`,

	Args:    cobra.ExactArgs(1),
	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importAccountID, "account", "a", "", "existing account id to import into")
	importCmd.Flags().BoolVar(&importCreateNew, "create-account", false, "create a new account for this statement")
	importCmd.Flags().StringVar(&importAccountName, "account-name", "", "name for the new account")
	importCmd.Flags().BoolVarP(&importAcceptMatch, "yes", "y", false, "accept the matcher's proposal without prompting")
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	set := 0
	if importAccountID != "" {
		set++
	}
	if importCreateNew {
		set++
	}
	if importAcceptMatch {
		set++
	}
	if set > 1 {
		return fmt.Errorf("pass at most one of --account, --create-account, --yes")
	}
	if importAccountName != "" && !importCreateNew {
		return fmt.Errorf("--account-name requires --create-account")
	}

	info, err := os.Stat(args[0])
	if os.IsNotExist(err) {
		return fmt.Errorf("statement file does not exist: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("error accessing statement file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("statement path is a directory, expected a file: %s", args[0])
	}

	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	handler := NewCLIErrorHandler()

	s, err := buildStack(ctx)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	defer s.cleanup()

	filePath := args[0]
	data, err := os.ReadFile(filePath)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	fileName := filepath.Base(filePath)
	mimeType := mime.TypeByExtension(filepath.Ext(fileName))

	result, err := s.service.Upload(ctx, viper.GetString("user"), fileName, data, mimeType)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	s.service.Wait()

	job, err := s.service.Status(ctx, result.JobID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	if job.Stage == models.StageFailed {
		fmt.Fprintf(os.Stderr, "Import failed: %s\n", job.Error)
		os.Exit(3)
	}

	printMatchProposal(job)

	conf, ok := resolveConfirmation(job)
	if !ok {
		// No decision on the command line; leave the job awaiting so a
		// follow-up confirm can resume it when a database is in use.
		if s.config.HasDatabase() {
			fmt.Printf("\nJob %s is awaiting confirmation.\n", job.ID)
			fmt.Printf("Resume with: fins confirm %s --account <id> | --create-account\n", job.ID)
			return nil
		}
		return fmt.Errorf("an account decision is required: pass --account, --create-account, or --yes")
	}

	confirmed, err := s.service.Confirm(ctx, job.ID, conf)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	s.service.Wait()

	final, err := s.service.Status(ctx, confirmed.ID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	if final.Stage != models.StageCompleted {
		fmt.Fprintf(os.Stderr, "Import failed: %s\n", final.Error)
		os.Exit(3)
	}

	fmt.Printf("\n%s\n", final.Message)
	printAccountSummary(ctx, s, final)
	return nil
}

func printMatchProposal(job *models.ImportJob) {
	if meta := job.Metadata; meta != nil {
		fmt.Printf("Statement: %s", job.FileName)
		if meta.Institution != "" {
			fmt.Printf(" (%s)", meta.Institution)
		}
		fmt.Println()
		if meta.PeriodStart != nil && meta.PeriodEnd != nil {
			fmt.Printf("Period: %s to %s\n",
				meta.PeriodStart.Format("2006-01-02"), meta.PeriodEnd.Format("2006-01-02"))
		}
	}

	match := job.AccountMatch
	if match == nil {
		return
	}
	if match.ShouldCreateNew {
		fmt.Printf("No matching account found (confidence %.2f).\n", match.Confidence)
		if match.SuggestedAccountName != "" {
			fmt.Printf("Suggested new account: %s\n", match.SuggestedAccountName)
		}
		return
	}
	fmt.Printf("Matched account %s (confidence %.2f): %s\n",
		match.SuggestedAccountID, match.Confidence, match.Reasoning)
}

// resolveConfirmation converts the import flags and the match proposal
// into a confirmation, when there is enough to decide.
func resolveConfirmation(job *models.ImportJob) (importer.Confirmation, bool) {
	if importAccountID != "" {
		return importer.Confirmation{AccountID: importAccountID}, true
	}
	if importCreateNew {
		return importer.Confirmation{CreateNew: true, NewAccountName: importAccountName}, true
	}
	if importAcceptMatch && job.AccountMatch != nil {
		if job.AccountMatch.ShouldCreateNew {
			return importer.Confirmation{CreateNew: true, NewAccountName: job.AccountMatch.SuggestedAccountName}, true
		}
		return importer.Confirmation{AccountID: job.AccountMatch.SuggestedAccountID}, true
	}
	return importer.Confirmation{}, false
}

func printAccountSummary(ctx context.Context, s *stack, job *models.ImportJob) {
	transactions, err := s.store.ListTransactions(ctx, job.AccountID)
	if err != nil {
		return
	}

	categorized := 0
	recurring := 0
	for _, tx := range transactions {
		if tx.IsCategorized() {
			categorized++
		}
		if tx.IsRecurring {
			recurring++
		}
	}
	fmt.Printf("Account now holds %d transactions (%d categorized, %d recurring).\n",
		len(transactions), categorized, recurring)
}
