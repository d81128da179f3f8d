package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"brandscan/internal/config"
	"brandscan/internal/logger"
	"brandscan/internal/store"
)

var reviewUnset bool

var reviewCmd = &cobra.Command{
	Use:   "review [document-id] [page] [brand]",
	Short: "Mark a detected brand as human-reviewed",
	Long: `Review flags a brand detection on a specific page as verified by a
human. Flags are stored independently of pipeline runs: reprocessing
the document does not clear them.`,
	Example: `  # Flag Kohler on page 3 as reviewed
  brandscan review 6f1c2a... 3 Kohler

  # Clear the flag again
  brandscan review 6f1c2a... 3 Kohler --unset`,
	Args: cobra.ExactArgs(3),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewUnset, "unset", false, "Clear the review flag instead of setting it")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("review-cmd")
	documentID, brand := args[0], args[2]

	pageNumber, err := strconv.Atoi(args[1])
	if err != nil || pageNumber < 1 {
		return fmt.Errorf("invalid page number %q", args[1])
	}

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

	reviewed := !reviewUnset
	if err := results.SetReviewStatus(ctx, documentID, pageNumber, brand, reviewed); err != nil {
		return err
	}

	log.Info().
		Str("document_id", documentID).
		Int("page", pageNumber).
		Str("brand", brand).
		Bool("reviewed", reviewed).
		Msg("Review flag updated")
	fmt.Printf("%s on page %d: reviewed=%t\n", brand, pageNumber, reviewed)
	return nil
}
