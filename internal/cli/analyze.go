package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	analyzeURL     string
	analyzeUser    string
	analyzeInitial bool
	analyzeTimeout time.Duration
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a text for misinformation",
	Long: `Analyze runs the full verification pipeline on a text and prints the
verdict as JSON. The text is read from the file argument, or from stdin
when the argument is omitted or "-".

With --initial only the quick first-read assessment is produced, without
search, fact checks, or caching.

Example:
  veridex analyze article.txt --url https://example.com/story
  cat article.txt | veridex analyze --initial`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "source URL of the text (improves caching)")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user fingerprint for personalization")
	analyzeCmd.Flags().BoolVar(&analyzeInitial, "initial", false, "quick first-read assessment only")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 3*time.Minute, "overall analysis timeout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text, err := readInput(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	if analyzeInitial {
		assessment, err := rt.analyzer.QuickAssess(ctx, text)
		if err != nil {
			return fmt.Errorf("initial assessment: %w", err)
		}
		fmt.Println(assessment)
		return nil
	}

	resp, err := rt.analyzer.Analyze(ctx, analyzeURL, text, analyzeUser)
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func readInput(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
