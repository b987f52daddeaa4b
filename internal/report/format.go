// Package report shapes statistics and records for tables, charts and file exports.
package report

import (
	"fmt"
	"strings"
	"time"

	"attendtrack/internal/attendance"
	"attendtrack/internal/stats"
)

// Placeholder is shown wherever a value is missing.
const Placeholder = "--"

// OrPlaceholder returns v, or Placeholder when v is blank.
func OrPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return Placeholder
	}
	return v
}

// OrPlaceholderPtr is OrPlaceholder for optional fields.
func OrPlaceholderPtr(v *string) string {
	if v == nil {
		return Placeholder
	}
	return OrPlaceholder(*v)
}

// FormatDate renders t as DD/MM/YYYY in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return Placeholder
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006")
}

// FormatPercent renders a percentage with one decimal.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// FormatHours renders an hour average with one decimal.
func FormatHours(v float64) string {
	return fmt.Sprintf("%.1fh", v)
}

var statusLabels = map[attendance.Status]string{
	attendance.StatusPresent:    "Presente",
	attendance.StatusAbsent:     "Ausente",
	attendance.StatusLate:       "Tardanza",
	attendance.StatusPermission: "Permiso",
}

// StatusLabel is the display name of a status. Unknown values are shown as-is.
func StatusLabel(s attendance.Status) string {
	if s == "" {
		return "Desconocido"
	}
	if l, ok := statusLabels[attendance.Status(strings.ToLower(string(s)))]; ok {
		return l
	}
	return string(s)
}

// WorkedDuration renders the worked time of a record, or Placeholder when it has no exit.
func WorkedDuration(entry string, exit *string) string {
	if entry == "" || exit == nil || *exit == "" {
		return Placeholder
	}
	m, err := stats.WorkedMinutes(entry, *exit)
	if err != nil {
		return Placeholder
	}
	return stats.FormatDuration(m)
}

// BadgeClass grades a ranking percentage.
func BadgeClass(pct float64) string {
	switch {
	case pct >= 95:
		return "success"
	case pct >= 85:
		return "warning"
	default:
		return "danger"
	}
}
