package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helix-works/recall/internal/config"
	"github.com/helix-works/recall/internal/database"
	"github.com/helix-works/recall/internal/domain"
)

// SchemaCmd returns the schema command
func SchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the database schema migrations in apply order",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("failed to read migrations dir: %w", err)
			}

			var names []string
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
					names = append(names, entry.Name())
				}
			}
			sort.Strings(names)

			for _, name := range names {
				content, err := os.ReadFile(filepath.Join(dir, name))
				if err != nil {
					return fmt.Errorf("failed to read migration %s: %w", name, err)
				}
				fmt.Printf("-- %s\n%s\n", name, content)
			}

			return nil
		},
	}

	cmd.Flags().String("dir", "migrations", "Migrations directory")

	return cmd
}

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print knowledge store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			var total int64
			if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&total); err != nil {
				return fmt.Errorf("failed to count chunks: %w", err)
			}
			fmt.Printf("chunks: %d\n", total)

			for _, category := range domain.Categories() {
				var count int64
				err := pool.QueryRow(ctx,
					`SELECT COUNT(*) FROM knowledge_chunks WHERE category = $1`,
					string(category),
				).Scan(&count)
				if err != nil {
					return fmt.Errorf("failed to count %s chunks: %w", category, err)
				}
				fmt.Printf("  %-12s %d\n", category, count)
			}

			return nil
		},
	}
}

// ClearCmd returns the clear command
func ClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every knowledge chunk",
		RunE: func(cmd *cobra.Command, args []string) error {
			confirmed, _ := cmd.Flags().GetBool("yes")
			if !confirmed {
				return fmt.Errorf("refusing to clear without --yes")
			}

			ctx := context.Background()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			cmdTag, err := pool.Exec(ctx, `DELETE FROM knowledge_chunks`)
			if err != nil {
				return fmt.Errorf("failed to clear chunks: %w", err)
			}

			fmt.Printf("deleted %d chunks\n", cmdTag.RowsAffected())
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Confirm deletion")

	return cmd
}
