package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/pairview/internal/backend"
	"github.com/Iron-Ham/pairview/internal/config"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the prompt-assembly backend stub",
	Long: `Run a stand-in for the prompt-assembly service the host proxies to.
It assembles prompts from a request, keeps cases in memory, and answers
health checks.`,
	RunE: runBackend,
}

var backendListen string

func init() {
	backendCmd.Flags().StringVar(&backendListen, "listen", "", "override backend.listen")
	rootCmd.AddCommand(backendCmd)
}

func runBackend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if backendListen != "" {
		cfg.Backend.Listen = backendListen
	}
	logger, err := newLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	svc := backend.New(backend.Options{DefaultModel: cfg.Backend.DefaultModel, Logger: logger})
	srv := &http.Server{
		Addr:              cfg.Backend.Listen,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Slog().Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("backend listening", "addr", cfg.Backend.Listen, "version", backend.Version)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
