package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helix-works/recall/internal/config"
	"github.com/helix-works/recall/internal/database"
	"github.com/helix-works/recall/internal/embedding"
	"github.com/helix-works/recall/internal/index"
	"github.com/helix-works/recall/internal/storage"
	"github.com/helix-works/recall/internal/store"
)

// ExportCmd returns the export command. The snapshot uses the same JSON
// shape ingest consumes, so an exported corpus can be re-ingested directly.
func ExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <destination>",
		Short: "Snapshot the knowledge corpus to a local file or s3:// URI",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// The provider is wiring only; export never embeds.
	provider := embedding.NewOpenAIProvider(embedding.Config{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		Dimensions: cfg.EmbeddingDimensions,
	})
	knowledgeStore := store.New(pool, index.NewPgVectorIndex(pool), provider, logger, store.Config{})

	inputs, err := knowledgeStore.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to export chunks: %w", err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("knowledge store is empty, nothing to export")
	}

	data, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize corpus: %w", err)
	}

	if err := writeSnapshot(ctx, cfg, args[0], data); err != nil {
		return err
	}

	logger.Info("export complete",
		zap.Int("chunks", len(inputs)),
		zap.String("destination", args[0]))
	return nil
}

// writeSnapshot stores the serialized corpus at a local path or an
// s3://bucket/key URI.
func writeSnapshot(ctx context.Context, cfg *config.Config, dest string, data []byte) error {
	if !strings.HasPrefix(dest, "s3://") {
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot file: %w", err)
		}
		return nil
	}

	if !cfg.HasS3() {
		return fmt.Errorf("s3 snapshot destination requires RECALL_S3_ENDPOINT, RECALL_S3_ACCESS_KEY_ID and RECALL_S3_SECRET_ACCESS_KEY")
	}

	bucket, key, err := splitS3URI(dest)
	if err != nil {
		return err
	}
	if bucket == "" {
		bucket = cfg.S3Bucket
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	if err := client.EnsureBucket(ctx); err != nil {
		return err
	}
	return client.PutObject(ctx, key, data, "application/json")
}
