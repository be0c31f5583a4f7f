package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cathal-killeen/fins/internal/importer"
)

// confirmCmd resumes a job that is awaiting its account decision.
var confirmCmd = &cobra.Command{
	Use:   "confirm <job-id>",
	Short: "Confirm the account for a pending import job",
	Long: `Confirm resumes an import job that is awaiting confirmation, either
importing into an existing account or creating a new one.

Examples:
  fins confirm 7c3e... --account 6f1c...
  fins confirm 7c3e... --create-account --account-name "Chase Checking"`,
	Args: cobra.ExactArgs(1),
	RunE: runConfirm,
}

// statusCmd shows one job's current stage and progress.
var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show an import job's current stage",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// jobsCmd lists the user's import jobs.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List import jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

var (
	confirmAccountID   string
	confirmCreateNew   bool
	confirmAccountName string
)

func init() {
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)

	confirmCmd.Flags().StringVarP(&confirmAccountID, "account", "a", "", "existing account id to import into")
	confirmCmd.Flags().BoolVar(&confirmCreateNew, "create-account", false, "create a new account for this statement")
	confirmCmd.Flags().StringVar(&confirmAccountName, "account-name", "", "name for the new account")
}

func runConfirm(cmd *cobra.Command, args []string) error {
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

	conf := importer.Confirmation{
		AccountID:      confirmAccountID,
		CreateNew:      confirmCreateNew,
		NewAccountName: confirmAccountName,
	}
	job, err := s.service.Confirm(ctx, args[0], conf)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	s.service.Wait()

	final, err := s.service.Status(ctx, job.ID)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	fmt.Printf("Job %s: %s (%d%%)\n", final.ID, final.Stage, final.Progress)
	if final.Message != "" {
		fmt.Println(final.Message)
	}
	if final.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", final.Error)
		os.Exit(3)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	job, err := s.service.Status(ctx, args[0])
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	fmt.Printf("Job:      %s\n", job.ID)
	fmt.Printf("File:     %s (%d bytes)\n", job.FileName, job.FileSize)
	fmt.Printf("Stage:    %s (%d%%)\n", job.Stage, job.Progress)
	if job.Message != "" {
		fmt.Printf("Message:  %s\n", job.Message)
	}
	if job.Error != "" {
		fmt.Printf("Error:    %s\n", job.Error)
	}
	return nil
}

func runJobs(cmd *cobra.Command, args []string) error {
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

	jobs, err := s.service.Jobs(ctx, viper.GetString("user"))
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	if len(jobs) == 0 {
		fmt.Println("No import jobs.")
		return nil
	}

	for _, job := range jobs {
		fmt.Printf("%s  %-22s %3d%%  %s  %s\n",
			job.CreatedAt.Format("2006-01-02 15:04"), job.Stage, job.Progress, job.ID, job.FileName)
	}
	return nil
}
