package attendance

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Status is the four-way attendance classification.
type Status string

const (
	StatusPresent    Status = "present"
	StatusAbsent     Status = "absent"
	StatusLate       Status = "late"
	StatusPermission Status = "permission"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusPermission}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusPermission:
		return true
	}
	return false
}

// Attended reports whether the status counts towards attendance.
func (s Status) Attended() bool {
	return s == StatusPresent || s == StatusLate
}

// ParseStatus normalises user input into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// Record is one attendance entry for one user on one calendar day.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Date      time.Time `json:"date"`
	EntryTime string    `json:"entry_time"`
	ExitTime  *string   `json:"exit_time,omitempty"`
	Status    Status    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListQuery filters the admin listing.
type ListQuery struct {
	UserID  string
	Status  Status
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"

	// MaxPage keeps Offset within a Postgres int4 for any page size.
	MaxPage = math.MaxInt32 / MaxPerPage
)

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
}

// Offset returns the row offset of the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Page is a slice of records plus paging metadata.
type Page struct {
	Records    []Record `json:"records"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	TotalPages int      `json:"total_pages"`
}

// TodayCounts summarises today's records by status.
type TodayCounts struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Late       int `json:"late"`
	Permission int `json:"permission"`
	Total      int `json:"total"`
}

// Input is the admin payload for creating or replacing a record.
type Input struct {
	UserID    string  `json:"user_id"`
	Date      string  `json:"date"`
	EntryTime string  `json:"entry_time"`
	ExitTime  *string `json:"exit_time"`
	Status    string  `json:"status"`
	Notes     *string `json:"notes"`
}
