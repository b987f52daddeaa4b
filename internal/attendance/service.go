package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"attendtrack/internal/apperr"
	"attendtrack/internal/queue"
)

// Store is the persistence contract the service needs. *Repository implements it.
type Store interface {
	Insert(ctx context.Context, rec Record, day string) (Record, error)
	InsertIfAbsent(ctx context.Context, rec Record, day string) (Record, bool, error)
	Get(ctx context.Context, id string) (*Record, error)
	FindForDay(ctx context.Context, userID string, dayStart, dayEnd time.Time) (*Record, error)
	Update(ctx context.Context, rec Record, day string) (*Record, error)
	SetExitTime(ctx context.Context, id, exit string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListAll(ctx context.Context) ([]Record, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Record, error)
	Latest(ctx context.Context, limit int) ([]Record, error)
	List(ctx context.Context, q ListQuery) ([]Record, int64, error)
}

// Directory resolves the display name that gets copied onto new records.
type Directory interface {
	DisplayName(ctx context.Context, uid string) (string, error)
}

// Options configures the calendar used by check-ins.
type Options struct {
	Location  *time.Location
	LateAfter string
	Logger    *log.Logger
	Now       func() time.Time
}

// Service coordinates check-ins and administrative record management.
type Service struct {
	store     Store
	users     Directory
	events    queue.Publisher
	loc       *time.Location
	lateAfter int
	now       func() time.Time
	logger    *log.Logger
}

// NewService creates a service backed by a store.
func NewService(store Store, users Directory, events queue.Publisher, opts Options) (*Service, error) {
	late, err := ParseClock(opts.LateAfter)
	if err != nil {
		return nil, fmt.Errorf("late threshold: %w", err)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if events == nil {
		events = queue.Discard{}
	}
	return &Service{
		store:     store,
		users:     users,
		events:    events,
		loc:       opts.Location,
		lateAfter: late,
		now:       opts.Now,
		logger:    opts.Logger,
	}, nil
}

// ParseClock converts "HH:MM" (seconds tolerated) into minutes since midnight.
func ParseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h*60 + m, nil
}

func (s *Service) today() (time.Time, time.Time, time.Time) {
	now := s.now().In(s.loc)
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return now, start, start.AddDate(0, 0, 1)
}

// dayKey is the calendar day of t in the service location, the unit of uniqueness.
func (s *Service) dayKey(t time.Time) string {
	return t.In(s.loc).Format(DateLayout)
}

func (s *Service) publish(ctx context.Context, kind, id string) {
	if err := s.events.Publish(ctx, queue.Message{Type: kind, RecordID: id, At: s.now().UTC()}); err != nil {
		s.logger.Printf("queue publish %s %s failed: %v", kind, id, err)
	}
}

// CheckIn creates today's record for the user. A repeated check-in returns the existing
// record and created=false, also when two check-ins race.
func (s *Service) CheckIn(ctx context.Context, userID string, notes *string) (Record, bool, error) {
	if userID == "" {
		return Record{}, false, apperr.Invalid("user required")
	}
	now, start, end := s.today()
	existing, err := s.store.FindForDay(ctx, userID, start, end)
	if err != nil {
		return Record{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	name, err := s.users.DisplayName(ctx, userID)
	if err != nil {
		return Record{}, false, err
	}
	status := StatusPresent
	if now.Hour()*60+now.Minute() > s.lateAfter {
		status = StatusLate
	}
	rec, created, err := s.store.InsertIfAbsent(ctx, Record{
		UserID:    userID,
		FullName:  name,
		Date:      now.UTC(),
		EntryTime: now.Format(ClockLayout),
		Status:    status,
		Notes:     cleanNotes(notes),
	}, s.dayKey(now))
	if err != nil {
		return Record{}, false, err
	}
	if !created {
		existing, err := s.store.FindForDay(ctx, userID, start, end)
		if err != nil {
			return Record{}, false, err
		}
		if existing == nil {
			return Record{}, false, apperr.Conflict("check-in collided with a concurrent change, retry")
		}
		return *existing, false, nil
	}
	s.publish(ctx, queue.RecordCreated, rec.ID)
	return rec, true, nil
}

// CheckOut stamps the exit time on today's record. Only the first check-out wins.
func (s *Service) CheckOut(ctx context.Context, userID string) (Record, error) {
	now, start, end := s.today()
	rec, err := s.store.FindForDay(ctx, userID, start, end)
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{}, apperr.NotFound("no check-in recorded today")
	}
	if rec.ExitTime != nil {
		return Record{}, apperr.Conflict("already checked out today")
	}
	exit := now.Format(ClockLayout)
	ok, err := s.store.SetExitTime(ctx, rec.ID, exit)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, apperr.Conflict("already checked out today")
	}
	rec.ExitTime = &exit
	rec.UpdatedAt = now.UTC()
	s.publish(ctx, queue.RecordUpdated, rec.ID)
	return *rec, nil
}

// Create inserts a record entered manually by an administrator.
func (s *Service) Create(ctx context.Context, in Input) (Record, error) {
	rec, err := s.fromInput(in)
	if err != nil {
		return Record{}, err
	}
	name, err := s.users.DisplayName(ctx, rec.UserID)
	if err != nil {
		return Record{}, err
	}
	rec.FullName = name
	out, err := s.store.Insert(ctx, rec, s.dayKey(rec.Date))
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Record{}, apperr.Conflict("user already has a record on that day")
		}
		return Record{}, err
	}
	s.publish(ctx, queue.RecordCreated, out.ID)
	return out, nil
}

// Update replaces a record. The denormalised name is refreshed only when the user changes.
func (s *Service) Update(ctx context.Context, id string, in Input) (Record, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if existing == nil {
		return Record{}, apperr.NotFound("record not found")
	}
	rec, err := s.fromInput(in)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id
	rec.FullName = existing.FullName
	if rec.UserID != existing.UserID {
		if rec.FullName, err = s.users.DisplayName(ctx, rec.UserID); err != nil {
			return Record{}, err
		}
	}
	out, err := s.store.Update(ctx, rec, s.dayKey(rec.Date))
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Record{}, apperr.Conflict("user already has a record on that day")
		}
		return Record{}, err
	}
	if out == nil {
		return Record{}, apperr.NotFound("record not found")
	}
	s.publish(ctx, queue.RecordUpdated, id)
	return *out, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("record not found")
	}
	s.publish(ctx, queue.RecordDeleted, id)
	return nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{}, apperr.NotFound("record not found")
	}
	return *rec, nil
}

// List returns a page of records.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	q.normalize()
	recs, total, err := s.store.List(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if recs == nil {
		recs = []Record{}
	}
	pages := int((total + int64(q.PerPage) - 1) / int64(q.PerPage))
	return Page{Records: recs, Total: total, Page: q.Page, PerPage: q.PerPage, TotalPages: pages}, nil
}

// TodayCounts counts today's records by status.
func (s *Service) TodayCounts(ctx context.Context) (TodayCounts, error) {
	_, start, end := s.today()
	recs, err := s.store.ListBetween(ctx, start, end)
	if err != nil {
		return TodayCounts{}, err
	}
	var c TodayCounts
	for _, r := range recs {
		switch r.Status {
		case StatusPresent:
			c.Present++
		case StatusAbsent:
			c.Absent++
		case StatusLate:
			c.Late++
		case StatusPermission:
			c.Permission++
		}
		c.Total++
	}
	return c, nil
}

// Latest returns the most recently created records, 5 by default.
func (s *Service) Latest(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 50 {
		limit = 50
	}
	return s.store.Latest(ctx, limit)
}

// FetchRecords returns every record. It is the record source of the statistics module.
func (s *Service) FetchRecords(ctx context.Context) ([]Record, error) {
	return s.store.ListAll(ctx)
}

// ParseDay parses a YYYY-MM-DD date as midnight in the service location.
func (s *Service) ParseDay(v string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(v), s.loc)
}

func (s *Service) fromInput(in Input) (Record, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return Record{}, apperr.Invalid("user_id is required")
	}
	day, err := s.ParseDay(in.Date)
	if err != nil {
		return Record{}, apperr.Invalid("date must be YYYY-MM-DD")
	}
	status, err := ParseStatus(in.Status)
	if err != nil {
		return Record{}, apperr.Invalid("status must be one of present, absent, late, permission")
	}
	entry := strings.TrimSpace(in.EntryTime)
	if entry == "" && status.Attended() {
		return Record{}, apperr.Invalid("entry_time is required for present and late records")
	}
	if entry != "" {
		if _, err := ParseClock(entry); err != nil {
			return Record{}, apperr.Invalid("entry_time must be HH:MM")
		}
	}
	var exit *string
	if in.ExitTime != nil && strings.TrimSpace(*in.ExitTime) != "" {
		v := strings.TrimSpace(*in.ExitTime)
		if _, err := ParseClock(v); err != nil {
			return Record{}, apperr.Invalid("exit_time must be HH:MM")
		}
		exit = &v
	}
	return Record{
		UserID:    strings.TrimSpace(in.UserID),
		Date:      day,
		EntryTime: entry,
		ExitTime:  exit,
		Status:    status,
		Notes:     cleanNotes(in.Notes),
	}, nil
}

func cleanNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}
