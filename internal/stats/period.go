package stats

import (
	"strings"
	"time"
)

// Period names a preset range ending today.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var periodAliases = map[string]Period{
	"today": PeriodToday, "hoy": PeriodToday,
	"week": PeriodWeek, "semana": PeriodWeek,
	"month": PeriodMonth, "mes": PeriodMonth,
	"year": PeriodYear, "anio": PeriodYear, "año": PeriodYear,
}

// ParsePeriod resolves a period name. Unknown names fall back to the month.
func ParsePeriod(name string) Period {
	if p, ok := periodAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return PeriodMonth
}

// Range is an inclusive pair of local days.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ResolvePeriod returns the range of a period as seen at now.
func ResolvePeriod(name string, now time.Time, loc *time.Location) Range {
	today := DayStart(now, loc)
	switch ParsePeriod(name) {
	case PeriodToday:
		return Range{From: today, To: today}
	case PeriodWeek:
		return Range{From: mondayOf(today), To: today}
	case PeriodYear:
		return Range{From: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location()), To: today}
	default:
		return Range{From: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), To: today}
	}
}

// CurrentMonth is the range the worker keeps a snapshot for.
func CurrentMonth(now time.Time, loc *time.Location) Range {
	return ResolvePeriod(string(PeriodMonth), now, loc)
}
