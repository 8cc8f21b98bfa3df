package repository

import (
	"context"
	"fmt"

	"github.com/miyamo2/weathermcp/domain/model"
)

type Weather interface {
	// Forecast returns up to req.Intervals() three-hour readings for req.City.
	Forecast(ctx context.Context, req model.ForecastRequest) ([]model.IntervalReading, error)
}

// UpstreamError occurs when the weather provider could not be reached or answered with an error.
type UpstreamError struct {
	// StatusCode of the upstream response, zero when no response was received.
	StatusCode int
	// Message is the provider supplied message if any, otherwise the transport message.
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
