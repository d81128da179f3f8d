package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"brandscan/internal/config"
	"brandscan/internal/logger"
	"brandscan/internal/models"
	"brandscan/internal/store"
)

var exportOutputPath string

var exportCmd = &cobra.Command{
	Use:   "export [document-id]",
	Short: "Export a document's detection results as JSON",
	Long: `Export fetches a processed document from Firestore and writes its
per-page brand detections, review flags and a distinct-brand summary as
JSON to stdout or a file.`,
	Example: `  # Print results to stdout
  brandscan export 6f1c2a...

  # Write results to a file
  brandscan export 6f1c2a... -o results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}

// exportOutput is the JSON document written by the export command.
type exportOutput struct {
	Document       *models.Document `json:"document"`
	DistinctBrands []string         `json:"distinct_brands"`
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export-cmd")
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

	doc, err := results.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(exportOutput{
		Document:       doc,
		DistinctBrands: distinctBrands(doc),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	payload = append(payload, '\n')

	if exportOutputPath == "" {
		_, err = os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(exportOutputPath, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutputPath, err)
	}
	log.Info().
		Str("document_id", documentID).
		Str("output", exportOutputPath).
		Msg("Results exported")
	return nil
}
