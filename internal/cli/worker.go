package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"veridex/internal/task"
)

// workerCmd is the subprocess entry point the task manager spawns. It
// reads one analysis request from stdin, runs the pipeline, and writes
// the response JSON to stdout. Killing the process aborts the analysis
// with no cleanup required in the parent.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run one analysis from stdin (internal)",
	Hidden: true,
	RunE:   runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	var req task.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	resp, err := rt.analyzer.Analyze(ctx, req.URL, req.Text, req.UserID)
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	resp.SessionID = req.SessionID

	// stdout carries only the response JSON; logs go to stderr
	return json.NewEncoder(os.Stdout).Encode(resp)
}
