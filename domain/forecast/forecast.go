// Package forecast reshapes upstream interval readings into daily forecasts.
package forecast

import (
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/miyamo2/weathermcp/domain/model"
)

// NowFunc defines a function to get the current time.
type NowFunc func() time.Time

// dateLayout is the layout of ForecastDay.Date.
const dateLayout = "2006-01-02"

// Days yields one ForecastDay for every IntervalsPerDay readings, starting at index 0.
//
// Readings without a timestamp are dated with now in UTC.
func Days(readings []model.IntervalReading, now NowFunc) iter.Seq[model.ForecastDay] {
	return func(yield func(model.ForecastDay) bool) {
		for i := 0; i < len(readings); i += model.IntervalsPerDay {
			r := readings[i]
			day := model.ForecastDay{
				Date:        readingDate(r, now),
				Temperature: r.Main.Temp,
				Conditions:  r.Condition(),
			}
			if !yield(day) {
				return
			}
		}
	}
}

// Transform collects Days into a slice. It never returns nil.
func Transform(readings []model.IntervalReading, now NowFunc) []model.ForecastDay {
	days := slices.Collect(Days(readings, now))
	if days == nil {
		return []model.ForecastDay{}
	}
	return days
}

// readingDate returns the date portion of dt_txt ("2006-01-02 15:04:05").
func readingDate(r model.IntervalReading, now NowFunc) string {
	if r.DtTxt == "" {
		return now().UTC().Format(dateLayout)
	}
	date, _, _ := strings.Cut(r.DtTxt, " ")
	return date
}
