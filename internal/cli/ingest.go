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
	"github.com/helix-works/recall/internal/domain"
	"github.com/helix-works/recall/internal/embedding"
	"github.com/helix-works/recall/internal/index"
	"github.com/helix-works/recall/internal/storage"
	"github.com/helix-works/recall/internal/store"
)

// IngestCmd returns the ingest command. The corpus is a JSON array of
// documents: {content, category, priority, tags, source}.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <corpus>",
		Short: "Bulk-load a knowledge corpus from a local file or s3:// URI",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().Bool("clear", false, "Delete all existing chunks before ingesting")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	if !cfg.HasOpenAI() {
		return fmt.Errorf("RECALL_OPENAI_API_KEY is required for ingestion")
	}

	data, err := loadCorpus(ctx, cfg, args[0])
	if err != nil {
		return err
	}

	var inputs []domain.ChunkInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("failed to parse corpus: %w", err)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("corpus is empty")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	provider := embedding.NewOpenAIProvider(embedding.Config{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		Dimensions: cfg.EmbeddingDimensions,
	})
	knowledgeStore := store.New(pool, index.NewPgVectorIndex(pool), provider, logger, store.Config{})

	if clear, _ := cmd.Flags().GetBool("clear"); clear {
		deleted, err := knowledgeStore.ClearAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		logger.Info("cleared existing chunks", zap.Int64("deleted", deleted))
	}

	logger.Info("ingesting corpus", zap.Int("documents", len(inputs)))
	if err := knowledgeStore.AddDocuments(ctx, inputs); err != nil {
		// Chunks persisted before the failure stay persisted; re-run with
		// --clear for a clean load.
		return fmt.Errorf("ingestion failed: %w", err)
	}

	count, err := knowledgeStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	logger.Info("ingestion complete", zap.Int64("total_chunks", count))

	return nil
}

// loadCorpus reads the corpus from a local path or an s3://bucket/key URI.
func loadCorpus(ctx context.Context, cfg *config.Config, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "s3://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus file: %w", err)
		}
		return data, nil
	}

	if !cfg.HasS3() {
		return nil, fmt.Errorf("s3 corpus source requires RECALL_S3_ENDPOINT, RECALL_S3_ACCESS_KEY_ID and RECALL_S3_SECRET_ACCESS_KEY")
	}

	bucket, key, err := splitS3URI(source)
	if err != nil {
		return nil, err
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
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return client.GetObject(ctx, key)
}

func splitS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 URI %q, expected s3://bucket/key", uri)
	}
	return parts[0], parts[1], nil
}
