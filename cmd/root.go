package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"brandscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "brandscan",
	Short: "Brand detection for technical PDF documents",
	Long: `Brandscan extracts commercial brand mentions from technical PDFs
(architectural plans, specifications, equipment schedules).

Each page is rasterized, sliced into overlapping chunks for OCR, the
recognized text is reassembled in reading order, and a language model
identifies the brands mentioned on the page. Results, progress and
review flags are persisted per document.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Brandscan CLI executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
