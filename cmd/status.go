package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"brandscan/internal/config"
	"brandscan/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show the processing progress of a document",
	Long: `Status prints the latest persisted progress snapshot of a document:
overall state, processed and failed page counts, completion percentage
and the per-page state machine positions.`,
	Example: `  brandscan status 6f1c2a...`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	documentID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	results, err := store.NewFirestoreStore(ctx, cfg.GoogleCloudProject, cfg.FirestoreCollection)
	if err != nil {
		return err
	}
	defer results.Close()

	progress, err := results.GetProcessingStatus(ctx, documentID)
	if err != nil {
		return err
	}

	fmt.Printf("Document:  %s\n", progress.DocumentID)
	fmt.Printf("Status:    %s\n", progress.Status)
	fmt.Printf("Progress:  %.1f%% (%d processed, %d failed of %d pages)\n",
		progress.ProgressPercentage, progress.ProcessedPages, progress.FailedPages, progress.TotalPages)

	pageKeys := make([]int, 0, len(progress.PageStatus))
	for key := range progress.PageStatus {
		if page, err := strconv.Atoi(key); err == nil {
			pageKeys = append(pageKeys, page)
		}
	}
	sort.Ints(pageKeys)
	for _, page := range pageKeys {
		fmt.Printf("  page %3d: %s\n", page, progress.PageStatus[strconv.Itoa(page)])
	}
	return nil
}
