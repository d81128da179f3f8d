package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"brandscan/internal/config"
	"brandscan/internal/logger"
	"brandscan/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document and all its stored data",
	Long: `Delete removes a document record together with its per-page brand
detections, progress snapshot and review flags. This cannot be undone.`,
	Example: `  brandscan delete 6f1c2a...`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("delete-cmd")
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

	if err := results.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	log.Info().Str("document_id", documentID).Msg("Document deleted")
	fmt.Printf("Deleted document %s\n", documentID)
	return nil
}
