package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/miyamo2/weathermcp/domain/model"
	"github.com/miyamo2/weathermcp/domain/repository"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrUnexpectedStatus occurs when the provider answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status code")

const (
	// DefaultBaseURL is the OpenWeatherMap 2.5 API root.
	DefaultBaseURL = "http://api.openweathermap.org/data/2.5"

	forecastEndpoint = "forecast"

	// maxResponseBytes caps the body read from the provider.
	maxResponseBytes = 4 << 20
)

// Config configures the OpenWeatherMap client.
type Config struct {
	BaseURL string
	APIKey  string
	// Units is sent as the units query parameter on every call, e.g. "metric".
	Units   string
	Timeout time.Duration
	// RatePerMinute limits outbound calls. Zero or less disables limiting.
	RatePerMinute int
	// BreakerFailures is the number of consecutive transport failures that opens the circuit.
	BreakerFailures uint32
}

var _ repository.Weather = (*Weather)(nil)

// Weather fetches forecasts from OpenWeatherMap.
type Weather struct {
	baseURL string
	apiKey  string
	units   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]model.IntervalReading]
}

// Option configures the Weather client.
type Option func(*Weather)

// WithHTTPClient sets the http.Client used for outbound calls.
func WithHTTPClient(client *http.Client) Option {
	return func(w *Weather) {
		w.client = client
	}
}

// NewWeather creates a new OpenWeatherMap client.
func NewWeather(cfg Config, options ...Option) *Weather {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	units := cfg.Units
	if units == "" {
		units = "metric"
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	w := &Weather{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		units:   units,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker[[]model.IntervalReading](gobreaker.Settings{
			Name:        "openweathermap",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: isSuccessful,
		}),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Forecast See: repository.Weather#Forecast
func (w *Weather) Forecast(ctx context.Context, req model.ForecastRequest) ([]model.IntervalReading, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, &repository.UpstreamError{Message: err.Error(), Err: err}
	}
	readings, err := w.breaker.Execute(func() ([]model.IntervalReading, error) {
		return w.fetchForecast(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &repository.UpstreamError{Message: err.Error(), Err: err}
	}
	return readings, err
}

// forecastResponse is the subset of the forecast payload this server reads.
type forecastResponse struct {
	List []model.IntervalReading `json:"list"`
}

// errorResponse is the error payload of the provider, e.g. {"cod":"404","message":"city not found"}.
type errorResponse struct {
	Message string `json:"message"`
}

func (w *Weather) fetchForecast(ctx context.Context, fr model.ForecastRequest) ([]model.IntervalReading, error) {
	params := url.Values{}
	params.Set("q", fr.City)
	params.Set("cnt", strconv.Itoa(fr.Intervals()))
	params.Set("appid", w.apiKey)
	params.Set("units", w.units)

	endpoint := fmt.Sprintf("%s/%s?%s", w.baseURL, forecastEndpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, &repository.UpstreamError{Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &repository.UpstreamError{StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &repository.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    statusMessage(resp.StatusCode, body),
			Err:        ErrUnexpectedStatus,
		}
	}

	var payload forecastResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse forecast response: %w", err)
	}
	return payload.List, nil
}

// statusMessage prefers the provider's message and falls back to a generic one.
func statusMessage(statusCode int, body []byte) string {
	var v errorResponse
	if err := json.Unmarshal(body, &v); err == nil && v.Message != "" {
		return v.Message
	}
	return fmt.Sprintf("Request failed with status code %d", statusCode)
}

// transportMessage unwraps *url.Error so the message does not repeat the request URL, which carries the API key.
func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// isSuccessful reports whether err should not count against the circuit breaker.
//
// Client errors such as an unknown city are the caller's problem, not the provider's.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var upstreamErr *repository.UpstreamError
	if !errors.As(err, &upstreamErr) {
		return true
	}
	code := upstreamErr.StatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
