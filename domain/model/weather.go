package model

// IntervalsPerDay is the number of 3-hour readings the upstream delivers per day.
const IntervalsPerDay = 8

const (
	// DefaultForecastDays is used when the caller omits days.
	DefaultForecastDays = 3
	// MinForecastDays is the smallest number of days that can be requested.
	MinForecastDays = 1
	// MaxForecastDays is the longest horizon the upstream 5-day endpoint serves.
	MaxForecastDays = 5
)

// IntervalReading is one 3-hour sample from the forecast endpoint.
type IntervalReading struct {
	Main struct {
		Temp     float64 `json:"temp"`     // Celsius with metric units
		Humidity float64 `json:"humidity"` // Relative humidity (%)
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	DtTxt string `json:"dt_txt,omitempty"` // "2006-01-02 15:04:05", may be absent
}

// Condition returns the first weather description, or an empty string.
func (r IntervalReading) Condition() string {
	if len(r.Weather) == 0 {
		return ""
	}
	return r.Weather[0].Description
}

// ForecastDay is the daily sample returned to callers.
type ForecastDay struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

// ForecastRequest is a validated get_forecast invocation.
type ForecastRequest struct {
	City string `validate:"required"`
	Days int    `validate:"min=1,max=5"`
}

// Intervals returns the number of 3-hour readings to ask the upstream for.
func (r ForecastRequest) Intervals() int {
	return r.Days * IntervalsPerDay
}

// ClampDays applies the default and bounds to a caller supplied day count.
//
// A missing or zero value falls back to DefaultForecastDays.
func ClampDays(days *float64) int {
	if days == nil || *days == 0 {
		return DefaultForecastDays
	}
	// bounds are applied before the conversion, which would overflow for large values
	switch d := *days; {
	case d < MinForecastDays:
		return MinForecastDays
	case d >= MaxForecastDays:
		return MaxForecastDays
	default:
		return int(d)
	}
}

// User is the profile served by the personal resource.
type User struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}
