// Package stats turns attendance records into period statistics, chart series and
// cached snapshots.
package stats

import (
	"time"

	"attendtrack/internal/attendance"
)

// DayStart returns local midnight of t in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days from a to b, both already at local midnight.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// FilterByRange keeps records whose local calendar day lies in [from, to], both ends
// inclusive. An inverted range yields nothing. Records with a zero date cannot be placed
// on a day and are dropped without a trace; callers that must account for them go
// through Aggregator.Clean, which logs and counts each one as skipped.
func FilterByRange(records []attendance.Record, from, to time.Time, loc *time.Location) []attendance.Record {
	start, end := DayStart(from, loc), DayStart(to, loc)
	out := make([]attendance.Record, 0, len(records))
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		day := DayStart(r.Date, loc)
		if day.Before(start) || day.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// WorkingDays counts Monday to Friday days in [from, to]. An inverted range is 0.
func WorkingDays(from, to time.Time, loc *time.Location) int {
	day, end := DayStart(from, loc), DayStart(to, loc)
	n := 0
	for !day.After(end) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
		day = day.AddDate(0, 0, 1)
	}
	return n
}

// mondayOf returns the Monday starting the week that contains day.
func mondayOf(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
