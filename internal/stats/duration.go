package stats

import (
	"fmt"

	"attendtrack/internal/attendance"
)

const minutesPerDay = 24 * 60

// WorkedMinutes returns the minutes between entry and exit ("HH:MM"). An exit earlier
// than the entry is an overnight shift. Malformed input returns 0 and an error.
func WorkedMinutes(entry, exit string) (int, error) {
	in, err := attendance.ParseClock(entry)
	if err != nil {
		return 0, fmt.Errorf("entry: %w", err)
	}
	out, err := attendance.ParseClock(exit)
	if err != nil {
		return 0, fmt.Errorf("exit: %w", err)
	}
	diff := out - in
	if diff < 0 {
		diff += minutesPerDay
	}
	return diff, nil
}

// FormatDuration renders minutes as "8h 30m".
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
