package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"veridex/internal/server"
	"veridex/internal/task"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP service",
	Long: `Serve starts the HTTP API: synchronous and task-based analysis,
feedback collection, session task management, and the per-session
progress stream.

Background maintenance runs on timers: the vector index sweep and the
expired-task reaper.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	tasks := task.NewManager(cfg.Tasks, nil, logger)
	defer tasks.Shutdown()

	go runMaintenance(ctx, rt, tasks)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(rt.analyzer, tasks, rt.documents, rt.vectors, rt.embedder, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runMaintenance sweeps expired vector entries and reaps stale tasks on
// the configured intervals
func runMaintenance(ctx context.Context, rt *runtime, tasks *task.Manager) {
	sweep := time.NewTicker(rt.cfg.Cache.SweepInterval)
	reap := time.NewTicker(rt.cfg.Tasks.ReapEvery)
	defer sweep.Stop()
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			n, err := rt.vectors.SweepExpired(ctx)
			if err != nil {
				rt.logger.Warn("vector sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				rt.logger.Info("vector sweep", zap.Int("deleted", n))
			}
		case <-reap.C:
			if reaped := tasks.ReapExpired(); len(reaped) > 0 {
				rt.logger.Info("task reap", zap.Strings("tasks", reaped))
			}
		}
	}
}
