package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"veridex/internal/cache"
	"veridex/internal/embedding"
	"veridex/internal/model"
)

var cleanupClearText string

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Sweep expired vector index entries",
	Long: `Cleanup removes vector index entries past their retention expiry.
The serve command runs the same sweep on a timer; this command exists
for cron-style deployments and one-off maintenance.

With --clear-text the nearest cached verdict for the given text is
deleted instead, forcing the next analysis to run the full pipeline.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().StringVar(&cleanupClearText, "clear-text", "", "delete the cached verdict nearest to this text")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	index, err := cache.OpenVectorIndex(cfg.Vector.Path,
		time.Duration(cfg.Cache.RetentionDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	defer index.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cleanupClearText != "" {
		return clearNearest(ctx, cfg, index)
	}

	n, err := index.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("Removed %d expired entries\n", n)
	return nil
}

func clearNearest(ctx context.Context, cfg *model.Config, index *cache.VectorIndex) error {
	embedder, err := embedding.NewOpenAIEngine(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("embedding engine: %w", err)
	}

	vec, err := embedder.Embed(ctx, cleanupClearText)
	if err != nil {
		return fmt.Errorf("embed text: %w", err)
	}

	id, err := index.DeleteNearest(ctx, vec, cfg.Cache.VectorSimThreshold)
	if err != nil {
		return fmt.Errorf("delete nearest: %w", err)
	}
	if id == "" {
		fmt.Println("No cached verdict close enough to delete")
		return nil
	}

	fmt.Printf("Deleted cached verdict %s\n", id)
	return nil
}
