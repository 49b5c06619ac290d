package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/forgecode/internal/config"
	"github.com/nextlevelbuilder/forgecode/internal/metrics"
	"github.com/nextlevelbuilder/forgecode/internal/streaming"
)

func serverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the streaming WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// runServer mirrors the teacher's cmd/gateway.go runGateway: structured
// logging setup, config load, component wiring, graceful shutdown on
// SIGINT/SIGTERM — narrowed from the teacher's multi-channel gateway
// to this build's single WebSocket streaming endpoint.
func runServer() error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load(resolveConfigPath(), nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sys, err := buildSystem(cfg)
	if err != nil {
		return fmt.Errorf("wire system: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sys.coord.Run(ctx)

	gw := streaming.NewGateway(sys.loops, sys.router, sys.events, sys.loopConfig(), nil)

	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	mux.Handle("/metrics", metrics.Handler(sys.coord))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("server.shutdown_initiated", "signal", sig.String())
		sys.coord.Stop()
		sys.loops.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	slog.Info("forgecode server starting", "addr", addr, "version", Version)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
