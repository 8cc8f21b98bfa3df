package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miyamo2/weathermcp"
	"github.com/miyamo2/weathermcp/domain/forecast"
	"github.com/miyamo2/weathermcp/domain/model"
	"github.com/miyamo2/weathermcp/domain/repository"
)

const (
	ForecastToolName        = "get_forecast"
	ForecastToolDescription = "Get weather forecast for a city"

	UserResourceName        = "user name"
	UserResourceURI         = "personal://tom/current"
	UserResourceDescription = "get user's name, age"
)

// currentUser is the profile served at UserResourceURI.
var currentUser = model.User{Name: "tom", Age: 18}

// Weather serves the weather tool and the user resource.
type Weather struct {
	repo repository.Weather
	now  forecast.NowFunc
}

// Option configures the Weather handler.
type Option func(*Weather)

// WithNowFunc sets the clock used to date readings without a timestamp.
func WithNowFunc(f forecast.NowFunc) Option {
	return func(w *Weather) {
		w.now = f
	}
}

// NewWeather returns a handler backed by repo.
func NewWeather(repo repository.Weather, options ...Option) *Weather {
	w := &Weather{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// GetForecast returns one ForecastDay per day for the requested city.
//
// Provider failures are reported to the caller as an error result, not a protocol error.
func (w *Weather) GetForecast(c weathermcp.ToolContext) error {
	req, err := ParseForecastArgs(c.Arguments())
	if err != nil {
		return err
	}

	readings, err := w.repo.Forecast(c.Context(), req)
	var upstreamErr *repository.UpstreamError
	if errors.As(err, &upstreamErr) {
		c.Logger().WarnContext(c.Context(), "[weathermcp] weather api error",
			slog.String("city", req.City),
			slog.Int("status", upstreamErr.StatusCode),
			slog.String("message", upstreamErr.Message))
		return c.Error(fmt.Sprintf("Weather API error: %s", upstreamErr.Message))
	}
	if err != nil {
		return fmt.Errorf("failed to fetch forecast for %s: %w", req.City, err)
	}
	return c.JSON(forecast.Transform(readings, w.now))
}

// CurrentUser returns the user profile.
func (w *Weather) CurrentUser(c weathermcp.ResourceContext) error {
	return c.JSON(currentUser)
}

// Register registers the tool, the resource and the logging middleware on s.
func Register(s *weathermcp.Server, w *Weather) {
	s.UseInTools(LogTool)
	s.UseInResources(LogResource)

	s.Resource(
		UserResourceName,
		UserResourceURI,
		w.CurrentUser,
		weathermcp.ResourceWithDescription(UserResourceDescription),
		weathermcp.ResourceWithMimeType("application/json"))

	s.Tool(ForecastToolName,
		(*ForecastArgs)(nil),
		w.GetForecast,
		weathermcp.ToolWithDescription(ForecastToolDescription),
		weathermcp.ToolWithAnnotations(weathermcp.ToolAnnotations{
			Title:         "Weather forecast",
			ReadOnlyHint:  true,
			OpenWorldHint: true,
		}))
}

// LogTool logs every tool call with its duration.
func LogTool(next weathermcp.ToolHandlerFunc) weathermcp.ToolHandlerFunc {
	return func(c weathermcp.ToolContext) error {
		start := time.Now()
		err := next(c)
		attrs := []any{
			slog.String("tool", c.ToolName()),
			slog.Any("id", c.JSONRPCRequest().ID.Raw()),
			slog.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			c.Logger().ErrorContext(c.Context(), "[weathermcp] tool failed", append(attrs, slog.Any("error", err))...)
			return err
		}
		c.Logger().DebugContext(c.Context(), "[weathermcp] tool called", attrs...)
		return nil
	}
}

// LogResource logs every resource read with its duration.
func LogResource(next weathermcp.ResourceHandlerFunc) weathermcp.ResourceHandlerFunc {
	return func(c weathermcp.ResourceContext) error {
		start := time.Now()
		err := next(c)
		attrs := []any{
			slog.String("uri", c.ResourceURI()),
			slog.Any("id", c.JSONRPCRequest().ID.Raw()),
			slog.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			c.Logger().ErrorContext(c.Context(), "[weathermcp] resource read failed", append(attrs, slog.Any("error", err))...)
			return err
		}
		c.Logger().DebugContext(c.Context(), "[weathermcp] resource read", attrs...)
		return nil
	}
}
