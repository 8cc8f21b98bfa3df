// Command weather-stdio serves the weather MCP server over stdin and stdout.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/miyamo2/weathermcp"
	"github.com/miyamo2/weathermcp/internal/app"
	"github.com/miyamo2/weathermcp/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "weather-stdio: %v\n", err)
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

	logger.InfoContext(ctx, "[weathermcp] serving stdio",
		slog.String("name", cfg.Server.Name),
		slog.String("version", cfg.Server.Version))
	return app.NewServer(cfg, logger).Start(weathermcp.StartWithContext(ctx))
}
