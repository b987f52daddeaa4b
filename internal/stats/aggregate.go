package stats

import (
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"attendtrack/internal/attendance"
	"attendtrack/internal/users"
)

// UserStat is one ranking row.
type UserStat struct {
	UserID     string  `json:"user_id"`
	FullName   string  `json:"full_name"`
	Present    int     `json:"present"`
	Late       int     `json:"late"`
	Absent     int     `json:"absent"`
	Permission int     `json:"permission"`
	Percentage float64 `json:"percentage"`
}

// Result is the aggregate of one period.
type Result struct {
	From                 time.Time  `json:"from"`
	To                   time.Time  `json:"to"`
	TotalUsers           int        `json:"total_users"`
	WorkingDays          int        `json:"working_days"`
	Total                int        `json:"total"`
	Present              int        `json:"present"`
	Absent               int        `json:"absent"`
	Late                 int        `json:"late"`
	Permission           int        `json:"permission"`
	AttendancePercentage float64    `json:"attendance_percentage"`
	AverageHours         float64    `json:"average_hours"`
	BestAttendance       float64    `json:"best_attendance"`
	Ranking              []UserStat `json:"ranking"`
	Skipped              int        `json:"skipped"`
}

// Aggregator computes period statistics in one calendar location.
type Aggregator struct {
	Location *time.Location
	Logger   *log.Logger
}

// NewAggregator creates an aggregator. A nil loc means UTC.
func NewAggregator(loc *time.Location, logger *log.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{Location: loc, Logger: logger}
}

var hundred = decimal.NewFromInt(100)

// percent returns num/den*100 rounded to one decimal, or 0 when den is 0.
func percent(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(int64(num)).Mul(hundred).Div(decimal.NewFromInt(int64(den))).Round(1).Float64()
	return v
}

// valid reports whether a record can be aggregated, logging why it cannot.
func (a *Aggregator) valid(r attendance.Record) bool {
	if !r.Status.Valid() {
		a.Logger.Printf("stats: skipping record %s: unknown status %q", r.ID, r.Status)
		return false
	}
	if r.EntryTime != "" {
		if _, err := attendance.ParseClock(r.EntryTime); err != nil {
			a.Logger.Printf("stats: skipping record %s: entry: %v", r.ID, err)
			return false
		}
	}
	if r.ExitTime != nil && *r.ExitTime != "" {
		if _, err := attendance.ParseClock(*r.ExitTime); err != nil {
			a.Logger.Printf("stats: skipping record %s: exit: %v", r.ID, err)
			return false
		}
	}
	return true
}

// Clean drops malformed records and records outside [from, to]. It returns the kept
// records and how many were malformed.
func (a *Aggregator) Clean(records []attendance.Record, from, to time.Time) ([]attendance.Record, int) {
	skipped := 0
	for _, r := range records {
		if r.Date.IsZero() {
			a.Logger.Printf("stats: skipping record %s: missing date", r.ID)
			skipped++
		}
	}
	inRange := FilterByRange(records, from, to, a.Location)
	kept := inRange[:0]
	for _, r := range inRange {
		if !a.valid(r) {
			skipped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, skipped
}

// Aggregate computes the statistics of [from, to]. It does not modify its inputs and
// returns the same result for the same arguments.
func (a *Aggregator) Aggregate(records []attendance.Record, people []users.User, from, to time.Time) Result {
	kept, skipped := a.Clean(records, from, to)
	return a.Summarize(kept, skipped, people, from, to)
}

// Summarize aggregates records already returned by Clean.
func (a *Aggregator) Summarize(kept []attendance.Record, skipped int, people []users.User, from, to time.Time) Result {
	res := Result{
		From:        DayStart(from, a.Location),
		To:          DayStart(to, a.Location),
		TotalUsers:  len(people),
		WorkingDays: WorkingDays(from, to, a.Location),
		Skipped:     skipped,
	}

	perUser := make(map[string]*UserStat, len(people))
	var workedMinutes, samples int
	for _, r := range kept {
		var stat *UserStat
		if s, ok := perUser[r.UserID]; ok {
			stat = s
		} else {
			stat = &UserStat{}
			perUser[r.UserID] = stat
		}
		switch r.Status {
		case attendance.StatusPresent:
			res.Present++
			stat.Present++
		case attendance.StatusAbsent:
			res.Absent++
			stat.Absent++
		case attendance.StatusLate:
			res.Late++
			stat.Late++
		case attendance.StatusPermission:
			res.Permission++
			stat.Permission++
		}
		if r.Status.Attended() && r.EntryTime != "" && r.ExitTime != nil && *r.ExitTime != "" {
			if m, err := WorkedMinutes(r.EntryTime, *r.ExitTime); err == nil {
				workedMinutes += m
				samples++
			}
		}
	}
	res.Total = res.Present + res.Absent + res.Late + res.Permission
	res.AttendancePercentage = percent(res.Present+res.Late, len(people)*res.WorkingDays)
	if samples > 0 {
		res.AverageHours, _ = decimal.NewFromInt(int64(workedMinutes)).
			Div(decimal.NewFromInt(int64(samples * 60))).Round(1).Float64()
	}

	res.Ranking = make([]UserStat, 0, len(people))
	for _, u := range people {
		row := UserStat{UserID: u.UID, FullName: u.FullName}
		if s, ok := perUser[u.UID]; ok {
			row.Present, row.Late, row.Absent, row.Permission = s.Present, s.Late, s.Absent, s.Permission
		}
		row.Percentage = percent(row.Present+row.Late, res.WorkingDays)
		if row.Percentage > 100 {
			row.Percentage = 100
		}
		res.Ranking = append(res.Ranking, row)
	}
	sort.SliceStable(res.Ranking, func(i, j int) bool {
		return res.Ranking[i].Percentage > res.Ranking[j].Percentage
	})
	if len(res.Ranking) > 0 {
		res.BestAttendance = res.Ranking[0].Percentage
	}
	return res
}

// Top returns the first n ranking rows. n <= 0 keeps all of them.
func (r Result) Top(n int) Result {
	if n > 0 && len(r.Ranking) > n {
		r.Ranking = append([]UserStat(nil), r.Ranking[:n]...)
	}
	return r
}
