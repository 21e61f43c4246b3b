package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helix-works/recall/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "recalld",
		Short:   "Recall daemon - retrieval core for persona Q&A",
		Long:    "Recall serves ranked knowledge-chunk retrieval over a curated persona knowledge base and manages its ingestion.",
		Version: version,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.ExportCmd())
	rootCmd.AddCommand(cli.StatsCmd())
	rootCmd.AddCommand(cli.ClearCmd())
	rootCmd.AddCommand(cli.SchemaCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
