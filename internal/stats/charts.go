package stats

import (
	"fmt"
	"time"

	"attendtrack/internal/attendance"
)

// WeekdayBar is one Monday..Friday bar of the weekly chart.
type WeekdayBar struct {
	Day     string    `json:"day"`
	Date    time.Time `json:"date"`
	Count   int       `json:"count"`
	Percent float64   `json:"percent"`
}

// MonthPoint is one point of the monthly line chart.
type MonthPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Charts groups the two chart series of a period.
type Charts struct {
	Weekly  []WeekdayBar `json:"weekly"`
	Monthly []MonthPoint `json:"monthly"`
}

var (
	weekdayNames = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes"}
	monthNames   = []string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}
)

const (
	maxMonthPoints = 12
	minMonthPoints = 6
)

// BuildCharts computes both series over records already cleaned and filtered to the range.
func BuildCharts(records []attendance.Record, from, to time.Time, loc *time.Location) Charts {
	return Charts{
		Weekly:  WeeklySeries(records, from, to, loc),
		Monthly: MonthlySeries(records, from, to, loc),
	}
}

// WeeklySeries counts attended records per weekday. Ranges longer than a week use the
// Monday-started week containing to, shorter ones the week starting at from.
func WeeklySeries(records []attendance.Record, from, to time.Time, loc *time.Location) []WeekdayBar {
	start, end := DayStart(from, loc), DayStart(to, loc)
	if daysBetween(start, end) > 7 {
		start = mondayOf(end)
	}
	last := start.AddDate(0, 0, 6)

	counts := make(map[time.Weekday]int, 5)
	for _, r := range records {
		if !r.Status.Attended() || r.Date.IsZero() {
			continue
		}
		day := DayStart(r.Date, loc)
		if day.Before(start) || day.After(last) {
			continue
		}
		counts[day.Weekday()]++
	}

	peak := 1
	for _, c := range counts {
		if c > peak {
			peak = c
		}
	}
	bars := make([]WeekdayBar, 0, len(weekdayNames))
	for i, name := range weekdayNames {
		wd := time.Monday + time.Weekday(i)
		c := counts[wd]
		date := start
		for date.Weekday() != wd {
			date = date.AddDate(0, 0, 1)
		}
		bars = append(bars, WeekdayBar{
			Day:     name,
			Date:    date,
			Count:   c,
			Percent: percent(c, peak),
		})
	}
	return bars
}

// MonthlySeries counts attended records per calendar month from from to to, keeping
// the last twelve months. Short series are left-padded to six points with "-".
func MonthlySeries(records []attendance.Record, from, to time.Time, loc *time.Location) []MonthPoint {
	start, end := DayStart(from, loc), DayStart(to, loc)
	total := (end.Year()-start.Year())*12 + int(end.Month()-start.Month()) + 1
	if total < 1 {
		total = 0
	}
	shown := total
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	if total > maxMonthPoints {
		shown = maxMonthPoints
		first = time.Date(end.Year(), end.Month()-(maxMonthPoints-1), 1, 0, 0, 0, 0, end.Location())
	}

	type ym struct {
		y int
		m time.Month
	}
	counts := make(map[ym]int)
	for _, r := range records {
		if !r.Status.Attended() || r.Date.IsZero() {
			continue
		}
		d := r.Date.In(start.Location())
		counts[ym{d.Year(), d.Month()}]++
	}

	points := make([]MonthPoint, 0, minMonthPoints)
	for i := 0; i < shown; i++ {
		month := first.AddDate(0, i, 0)
		label := monthNames[month.Month()-1]
		if shown <= minMonthPoints {
			label = fmt.Sprintf("%s %d", label, month.Year())
		}
		points = append(points, MonthPoint{Label: label, Count: counts[ym{month.Year(), month.Month()}]})
	}
	for len(points) < minMonthPoints {
		points = append([]MonthPoint{{Label: "-"}}, points...)
	}
	return points
}
