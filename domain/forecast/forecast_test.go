package forecast

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/miyamo2/weathermcp/domain/model"
)

func fixedNow() time.Time {
	return time.Date(2025, 4, 2, 3, 0, 0, 0, time.FixedZone("JST", 9*60*60))
}

func readings(t *testing.T, n int) []model.IntervalReading {
	t.Helper()
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	v := make([]model.IntervalReading, n)
	for i := range v {
		v[i].DtTxt = start.Add(time.Duration(i) * 3 * time.Hour).Format("2006-01-02 15:04:05")
		v[i].Main.Temp = float64(i)
		v[i].Weather = append(v[i].Weather, struct {
			Description string `json:"description"`
		}{Description: fmt.Sprintf("sky %d", i)})
	}
	return v
}

func TestTransform(t *testing.T) {
	type test struct {
		n        int
		expected int
	}
	tests := map[string]test{
		"empty":            {n: 0, expected: 0},
		"single reading":   {n: 1, expected: 1},
		"one full day":     {n: 8, expected: 1},
		"partial next day": {n: 9, expected: 2},
		"three days":       {n: 24, expected: 3},
		"five days":        {n: 40, expected: 5},
		"short last day":   {n: 37, expected: 5},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			in := readings(t, tc.n)
			got := Transform(in, fixedNow)
			if len(got) != tc.expected {
				t.Fatalf("expected %d days, got %d", tc.expected, len(got))
			}
			for k, day := range got {
				src := in[k*model.IntervalsPerDay]
				if day.Date != src.DtTxt[:10] {
					t.Errorf("day %d: expected date %s, got %s", k, src.DtTxt[:10], day.Date)
				}
				if day.Temperature != src.Main.Temp {
					t.Errorf("day %d: expected temperature %v, got %v", k, src.Main.Temp, day.Temperature)
				}
				if day.Conditions != src.Weather[0].Description {
					t.Errorf("day %d: expected conditions %s, got %s", k, src.Weather[0].Description, day.Conditions)
				}
				if k > 0 && day.Date < got[k-1].Date {
					t.Errorf("day %d: date %s precedes %s", k, day.Date, got[k-1].Date)
				}
			}
		})
	}
}

func TestTransform_Empty(t *testing.T) {
	got := Transform(nil, fixedNow)
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no days, got %v", got)
	}
}

func TestTransform_MissingTimestamp(t *testing.T) {
	in := readings(t, 9)
	in[8].DtTxt = ""
	got := Transform(in, fixedNow)
	expected := []model.ForecastDay{
		{Date: "2025-04-01", Temperature: 0, Conditions: "sky 0"},
		// fixedNow is 2025-04-02 in JST but 2025-04-01 in UTC
		{Date: "2025-04-01", Temperature: 8, Conditions: "sky 8"},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestTransform_MissingWeather(t *testing.T) {
	in := readings(t, 1)
	in[0].Weather = nil
	got := Transform(in, fixedNow)
	if got[0].Conditions != "" {
		t.Fatalf("expected empty conditions, got %q", got[0].Conditions)
	}
}

func TestDays_StopEarly(t *testing.T) {
	in := readings(t, 40)
	var count int
	for range Days(in, fixedNow) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected iteration to stop after 2 days, got %d", count)
	}
}
