// Package app wires configuration, the weather provider and the MCP server together.
package app

import (
	"io"
	"log/slog"

	"github.com/miyamo2/weathermcp"
	"github.com/miyamo2/weathermcp/handler"
	"github.com/miyamo2/weathermcp/infrastructure/api"
	"github.com/miyamo2/weathermcp/internal/config"
)

// NewLogger returns a text logger writing to w.
//
// stdout carries the stdio protocol, so entry points pass stderr.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewServer returns a server with the weather tool and the user resource registered.
func NewServer(cfg *config.Config, logger *slog.Logger, options ...api.Option) *weathermcp.Server {
	s := weathermcp.New(cfg.Server.Name,
		weathermcp.WithVersion(cfg.Server.Version),
		weathermcp.WithLogger(logger))
	repo := api.NewWeather(cfg.OpenWeather.API(), options...)
	handler.Register(s, handler.NewWeather(repo))
	return s
}
