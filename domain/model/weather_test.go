package model

import "testing"

func ptr[T any](v T) *T {
	return &v
}

func TestClampDays(t *testing.T) {
	type test struct {
		days     *float64
		expected int
	}
	tests := map[string]test{
		"omitted":     {days: nil, expected: 3},
		"zero":        {days: ptr(0.0), expected: 3},
		"one":         {days: ptr(1.0), expected: 1},
		"five":        {days: ptr(5.0), expected: 5},
		"ten":         {days: ptr(10.0), expected: 5},
		"negative":    {days: ptr(-2.0), expected: 1},
		"fractional":  {days: ptr(2.5), expected: 2},
		"below one":   {days: ptr(0.5), expected: 1},
		"huge number": {days: ptr(1e12), expected: 5},
		"beyond int":  {days: ptr(1e20), expected: 5},
		"below int":   {days: ptr(-1e20), expected: 1},
		"just below":  {days: ptr(5.9), expected: 5},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := ClampDays(tc.days); got != tc.expected {
				t.Errorf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestForecastRequest_Intervals(t *testing.T) {
	req := ForecastRequest{City: "Paris", Days: 5}
	if got := req.Intervals(); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
}

func TestIntervalReading_Condition(t *testing.T) {
	var r IntervalReading
	if got := r.Condition(); got != "" {
		t.Fatalf("expected empty condition, got %q", got)
	}
	r.Weather = append(r.Weather, struct {
		Description string `json:"description"`
	}{Description: "light rain"}, struct {
		Description string `json:"description"`
	}{Description: "mist"})
	if got := r.Condition(); got != "light rain" {
		t.Fatalf("expected first description, got %q", got)
	}
}
