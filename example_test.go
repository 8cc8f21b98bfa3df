package weathermcp_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/miyamo2/weathermcp"
	"github.com/miyamo2/weathermcp/transport"
)

type ForecastReq struct {
	City string   `json:"city" jsonschema:"description=City name"`
	Days *float64 `json:"days,omitempty" jsonschema:"description=Number of days (1-5),minimum=1,maximum=5"`
}

type Day struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

func Example() {
	s := weathermcp.New("weather-server")
	s.Tool("get_forecast", (*ForecastReq)(nil), func(c weathermcp.ToolContext) error {
		var req ForecastReq
		if err := c.Bind(&req); err != nil {
			return err
		}
		return c.JSON([]Day{{Date: "2025-01-01", Temperature: 4.5, Conditions: "light rain"}})
	})
	s.Start() // listen and serve on stdio
}

func Example_sse() {
	s := weathermcp.New("weather-server")

	// add tools and resources here

	sse := transport.NewSSE(transport.SSEWithKeepAlive(30 * time.Second))
	go http.ListenAndServe(":3001", sse)

	s.Start(weathermcp.StartWithListener(sse))
}

func ExampleServer_Tool() {
	s := weathermcp.New("weather-server")
	s.Tool("get_forecast", (*ForecastReq)(nil), func(c weathermcp.ToolContext) error {
		var req ForecastReq
		if err := c.Bind(&req); err != nil {
			return err
		}
		if req.City == "Atlantis" {
			// reported to the caller as a tool result with isError set
			return c.Error("Weather API error: city not found")
		}
		return c.JSON([]Day{})
	},
		weathermcp.ToolWithDescription("Get weather forecast for a city"),
		weathermcp.ToolWithAnnotations(weathermcp.ToolAnnotations{ReadOnlyHint: true, OpenWorldHint: true}))
}

func ExampleServer_Resource() {
	s := weathermcp.New("weather-server")
	s.Resource("user name", "personal://tom/current", func(c weathermcp.ResourceContext) error {
		return c.JSON(map[string]any{"name": "tom", "age": 18})
	},
		weathermcp.ResourceWithDescription("get user's name, age"),
		weathermcp.ResourceWithMimeType("application/json"))
}

func ExampleServer_UseInTools() {
	s := weathermcp.New("weather-server")
	s.UseInTools(func(next weathermcp.ToolHandlerFunc) weathermcp.ToolHandlerFunc {
		return func(c weathermcp.ToolContext) error {
			start := time.Now()
			defer func() {
				c.Logger().InfoContext(c.Context(), "tool called",
					slog.String("tool", c.ToolName()),
					slog.Duration("elapsed", time.Since(start)))
			}()
			return next(c)
		}
	})
}

func ExampleStartWithContext() {
	s := weathermcp.New("weather-server",
		weathermcp.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.Start(weathermcp.StartWithContext(ctx)); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
