// Command weather-sse serves the weather MCP server over HTTP server-sent events.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miyamo2/weathermcp"
	"github.com/miyamo2/weathermcp/internal/app"
	"github.com/miyamo2/weathermcp/internal/config"
	"github.com/miyamo2/weathermcp/transport"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "weather-sse: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	sse := transport.NewSSE(transport.SSEWithKeepAlive(cfg.Server.KeepAlive))
	httpServer := &http.Server{
		Addr:              cfg.Server.SSEAddr,
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := app.NewServer(cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "[weathermcp] serving sse", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return server.Start(
			weathermcp.StartWithContext(gctx),
			weathermcp.StartWithListener(sse))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
