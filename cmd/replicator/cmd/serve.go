package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantumalpha/replicator/httpapi"
	"github.com/quantumalpha/replicator/replicate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the replicator HTTP API. With --auto (or engine.auto_start in the
config) the poll-and-replicate loop also runs in the background.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAuto bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveAuto, "auto", false, "run the auto-replication loop")
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := httpapi.NewServer(d.engine, d.poller, d.store, d.notifier, d.logger)
	srv := &http.Server{Addr: d.cfg.Server.Addr, Handler: api.R}

	if serveAuto || d.cfg.Engine.AutoStart {
		interval, err := d.cfg.Engine.ParsePollInterval()
		if err != nil {
			return err
		}
		auto := replicate.NewAuto(d.engine, d.poller, d.logger, interval)
		go func() { _ = auto.Run(ctx) }()
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("http server listening", zap.String("addr", d.cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	d.logger.Info("server stopped")
	return nil
}
