package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"attendtrack/internal/apperr"
	"attendtrack/internal/attendance"
	"attendtrack/internal/auth"
	"attendtrack/internal/metrics"
	"attendtrack/internal/users"
)

// DefaultTop is the ranking size when the request does not set one.
const DefaultTop = 10

// RecordSource returns every attendance record.
type RecordSource interface {
	FetchRecords(ctx context.Context) ([]attendance.Record, error)
}

// UserSource returns every user.
type UserSource interface {
	FetchUsers(ctx context.Context) ([]users.User, error)
}

// Query is a statistics request. From and To (YYYY-MM-DD) take precedence over Period.
type Query struct {
	Period string
	From   string
	To     string
	Top    int
}

// FetchError is returned when a source fails. Last is the caller's previous snapshot, if any.
type FetchError struct {
	Err  error
	Last *Snapshot
}

func (e *FetchError) Error() string { return "fetch statistics sources: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// Dataset is a computed snapshot plus the records it was computed from.
type Dataset struct {
	Snapshot Snapshot
	Records  []attendance.Record
}

// Service fetches records and users, aggregates them and keeps snapshots.
type Service struct {
	records RecordSource
	people  UserSource
	agg     *Aggregator
	cache   SnapshotStore
	tracker *Tracker
	now     func() time.Time
	logger  *log.Logger
}

// NewService wires a statistics service. cache may be nil.
func NewService(records RecordSource, people UserSource, agg *Aggregator, cache SnapshotStore, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		records: records,
		people:  people,
		agg:     agg,
		cache:   cache,
		tracker: NewTracker(),
		now:     time.Now,
		logger:  logger,
	}
}

// Resolve turns a query into a range. An inverted explicit range is rejected.
func (s *Service) Resolve(q Query) (Range, error) {
	loc := s.agg.Location
	rng := ResolvePeriod(q.Period, s.now(), loc)
	if v := strings.TrimSpace(q.From); v != "" {
		d, err := time.ParseInLocation(attendance.DateLayout, v, loc)
		if err != nil {
			return Range{}, apperr.Invalid("from must be YYYY-MM-DD")
		}
		rng.From = d
	}
	if v := strings.TrimSpace(q.To); v != "" {
		d, err := time.ParseInLocation(attendance.DateLayout, v, loc)
		if err != nil {
			return Range{}, apperr.Invalid("to must be YYYY-MM-DD")
		}
		rng.To = d
	}
	if rng.From.After(rng.To) {
		return Range{}, apperr.Invalid("from must not be after to")
	}
	return rng, nil
}

func (s *Service) fetch(ctx context.Context) ([]attendance.Record, []users.User, error) {
	var (
		recs   []attendance.Record
		people []users.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, err = s.records.FetchRecords(gctx)
		if err != nil {
			return fmt.Errorf("records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		people, err = s.people.FetchUsers(gctx)
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return recs, people, nil
}

// Compute fetches both sources in parallel and aggregates rng.
func (s *Service) Compute(ctx context.Context, rng Range) (Dataset, error) {
	recs, people, err := s.fetch(ctx)
	if err != nil {
		return Dataset{}, err
	}

	start := time.Now()
	kept, skipped := s.agg.Clean(recs, rng.From, rng.To)
	res := s.agg.Summarize(kept, skipped, people, rng.From, rng.To)
	charts := BuildCharts(kept, rng.From, rng.To, s.agg.Location)
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	if res.Skipped > 0 {
		metrics.SkippedRecords.Add(float64(res.Skipped))
	}

	return Dataset{
		Snapshot: Snapshot{
			Range:        rng,
			Result:       res,
			Charts:       charts,
			Distribution: Distribution(res),
			GeneratedAt:  s.now().UTC(),
		},
		Records: kept,
	}, nil
}

// Stats computes the statistics of q for the session user and stores them as the user's
// last snapshot, unless a newer request from the same user has started meanwhile.
func (s *Service) Stats(ctx context.Context, ac auth.AuthContext, q Query) (Snapshot, error) {
	rng, err := s.Resolve(q)
	if err != nil {
		return Snapshot{}, err
	}
	top := q.Top
	if top <= 0 {
		top = DefaultTop
	}

	tctx, ticket := s.tracker.Begin(ac.UserID, ctx)
	defer s.tracker.End(ticket)

	ds, err := s.Compute(tctx, rng)
	if err != nil {
		if errors.Is(context.Cause(tctx), ErrSuperseded) {
			metrics.StaleCommits.Inc()
			return Snapshot{}, apperr.Conflict(ErrSuperseded.Error())
		}
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		s.logger.Printf("stats: fetch failed uid=%s: %v", ac.UserID, err)
		last, lerr := s.lastSnapshot(ctx, ac.UserID)
		if lerr != nil {
			s.logger.Printf("stats: read last snapshot uid=%s: %v", ac.UserID, lerr)
		}
		return Snapshot{}, &FetchError{Err: err, Last: last}
	}

	snap := ds.Snapshot
	snap.Result = snap.Result.Top(top)
	committed := s.tracker.Commit(ticket, func() {
		if s.cache == nil {
			return
		}
		if err := s.cache.SaveLast(ctx, ac.UserID, snap); err != nil {
			s.logger.Printf("stats: save last snapshot uid=%s: %v", ac.UserID, err)
		}
	})
	if !committed {
		metrics.StaleCommits.Inc()
	}
	return snap, nil
}

func (s *Service) lastSnapshot(ctx context.Context, uid string) (*Snapshot, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.Last(ctx, uid)
}

// Last returns the session user's last good snapshot.
func (s *Service) Last(ctx context.Context, ac auth.AuthContext) (Snapshot, error) {
	snap, err := s.lastSnapshot(ctx, ac.UserID)
	if err != nil {
		return Snapshot{}, err
	}
	if snap == nil {
		return Snapshot{}, apperr.NotFound("no statistics computed yet")
	}
	return *snap, nil
}

// Dataset computes q without touching any snapshot. Used by exports.
func (s *Service) Dataset(ctx context.Context, q Query) (Dataset, error) {
	rng, err := s.Resolve(q)
	if err != nil {
		return Dataset{}, err
	}
	ds, err := s.Compute(ctx, rng)
	if err != nil {
		s.logger.Printf("stats: export fetch failed: %v", err)
		return Dataset{}, apperr.Unavailable("statistics sources unavailable")
	}
	return ds, nil
}

// RefreshMonth recomputes and stores the current-month snapshot.
func (s *Service) RefreshMonth(ctx context.Context) (Snapshot, error) {
	ds, err := s.Compute(ctx, CurrentMonth(s.now(), s.agg.Location))
	if err != nil {
		return Snapshot{}, err
	}
	snap := ds.Snapshot
	snap.Result = snap.Result.Top(DefaultTop)
	if s.cache != nil {
		if err := s.cache.SaveMonth(ctx, snap); err != nil {
			return Snapshot{}, fmt.Errorf("save month snapshot: %w", err)
		}
	}
	return snap, nil
}

// Month returns the cached current-month snapshot, computing it when absent.
func (s *Service) Month(ctx context.Context) (Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.Month(ctx)
		if err != nil {
			s.logger.Printf("stats: read month snapshot: %v", err)
		} else if snap != nil {
			return *snap, nil
		}
	}
	snap, err := s.RefreshMonth(ctx)
	if err != nil {
		s.logger.Printf("stats: refresh month failed: %v", err)
		return Snapshot{}, apperr.Unavailable("statistics sources unavailable")
	}
	return snap, nil
}

// Distribution returns each status's share of the total, in display order.
func Distribution(r Result) []StatusShare {
	counts := map[attendance.Status]int{
		attendance.StatusPresent:    r.Present,
		attendance.StatusAbsent:     r.Absent,
		attendance.StatusLate:       r.Late,
		attendance.StatusPermission: r.Permission,
	}
	out := make([]StatusShare, 0, len(attendance.Statuses))
	for _, st := range attendance.Statuses {
		out = append(out, StatusShare{Status: string(st), Count: counts[st], Percent: percent(counts[st], r.Total)})
	}
	return out
}
