package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"brandscan/internal/config"
	"brandscan/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed documents",
	Long: `List prints every stored document with its identifier, filename,
terminal status and page count, newest first. The identifiers feed the
status, export, review and delete commands.`,
	Example: `  brandscan list`,
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	docs, err := results.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents stored.")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%s  %-22s  %-21s  %3d pages  %s\n",
			doc.ID,
			truncateName(doc.Filename, 22),
			doc.Status,
			doc.TotalPages,
			doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
