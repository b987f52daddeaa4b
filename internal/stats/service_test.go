package stats

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendtrack/internal/apperr"
	"attendtrack/internal/attendance"
	"attendtrack/internal/auth"
	"attendtrack/internal/users"
)

type fakeRecords struct {
	mu    sync.Mutex
	recs  []attendance.Record
	err   error
	block chan struct{}
	calls int
}

// FetchRecords blocks its first call on block, when set, until ctx is done.
func (f *fakeRecords) FetchRecords(ctx context.Context) ([]attendance.Record, error) {
	f.mu.Lock()
	f.calls++
	wait := f.block != nil && f.calls == 1
	f.mu.Unlock()
	if wait {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs, f.err
}

func (f *fakeRecords) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUsers struct {
	users []users.User
	err   error
}

func (f fakeUsers) FetchUsers(context.Context) ([]users.User, error) { return f.users, f.err }

func newCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Hour)
}

func newStatsService(recs RecordSource, ppl UserSource, cache SnapshotStore) *Service {
	svc := NewService(recs, ppl, quietAggregator(), cache, log.New(io.Discard, "", 0))
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 18, 0, 0, 0, lima) }
	return svc
}

var admin = auth.AuthContext{UserID: "admin-1", Role: auth.RoleAdmin}

func TestResolveQuery(t *testing.T) {
	svc := newStatsService(&fakeRecords{}, fakeUsers{}, nil)

	rng, err := svc.Resolve(Query{Period: "week"})
	require.NoError(t, err)
	assert.True(t, day(2025, 3, 10).Equal(rng.From))

	rng, err = svc.Resolve(Query{Period: "week", From: "2025-02-01", To: "2025-02-28"})
	require.NoError(t, err)
	assert.True(t, day(2025, 2, 1).Equal(rng.From))
	assert.True(t, day(2025, 2, 28).Equal(rng.To))

	_, err = svc.Resolve(Query{From: "2025-03-14", To: "2025-03-10"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = svc.Resolve(Query{From: "14/03/2025"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

func TestStatsStoresLastSnapshot(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	svc := newStatsService(&fakeRecords{recs: weekFixture()}, fakeUsers{users: people("u1", "u2", "u3")}, cache)

	snap, err := svc.Stats(ctx, admin, Query{From: "2025-03-10", To: "2025-03-14", Top: 2})
	require.NoError(t, err)
	assert.Equal(t, 66.7, snap.Result.AttendancePercentage)
	assert.Len(t, snap.Result.Ranking, 2)
	assert.Len(t, snap.Charts.Weekly, 5)
	assert.Len(t, snap.Charts.Monthly, 6)
	assert.Len(t, snap.Distribution, 4)

	last, err := svc.Last(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, snap.Result.Total, last.Result.Total)
	assert.Equal(t, 66.7, last.Result.AttendancePercentage)
}

func TestStatsFetchFailureReturnsLastSnapshot(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	records := &fakeRecords{recs: weekFixture()}
	svc := newStatsService(records, fakeUsers{users: people("u1", "u2", "u3")}, cache)

	_, err := svc.Stats(ctx, admin, Query{From: "2025-03-10", To: "2025-03-14"})
	require.NoError(t, err)

	records.mu.Lock()
	records.err = errors.New("connection refused")
	records.mu.Unlock()

	_, err = svc.Stats(ctx, admin, Query{From: "2025-03-10", To: "2025-03-14"})
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.NotNil(t, fe.Last)
	assert.Equal(t, 66.7, fe.Last.Result.AttendancePercentage)

	_, err = svc.Stats(ctx, auth.AuthContext{UserID: "other"}, Query{})
	require.ErrorAs(t, err, &fe)
	assert.Nil(t, fe.Last)
}

func TestStatsUserFetchFailure(t *testing.T) {
	svc := newStatsService(&fakeRecords{}, fakeUsers{err: errors.New("timeout")}, nil)
	_, err := svc.Stats(context.Background(), admin, Query{})
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestStatsSupersededRequest(t *testing.T) {
	ctx := context.Background()
	records := &fakeRecords{recs: weekFixture(), block: make(chan struct{})}
	svc := newStatsService(records, fakeUsers{users: people("u1")}, newCache(t))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Stats(ctx, admin, Query{})
		done <- err
	}()
	require.Eventually(t, func() bool { return records.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := svc.Stats(ctx, admin, Query{})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.True(t, apperr.Is(err, apperr.CodeConflict), "%v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded request did not return")
	}
}

func TestLastWithoutSnapshot(t *testing.T) {
	svc := newStatsService(&fakeRecords{}, fakeUsers{}, newCache(t))
	_, err := svc.Last(context.Background(), admin)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestMonthSnapshot(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	records := &fakeRecords{recs: weekFixture()}
	svc := newStatsService(records, fakeUsers{users: people("u1", "u2", "u3")}, cache)

	snap, err := svc.Month(ctx)
	require.NoError(t, err)
	assert.True(t, day(2025, 3, 1).Equal(snap.Range.From))
	assert.Equal(t, 12, snap.Result.Total)

	cached, err := cache.Month(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached)

	records.mu.Lock()
	records.recs = nil
	records.mu.Unlock()
	again, err := svc.Month(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, again.Result.Total)

	refreshed, err := svc.RefreshMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed.Result.Total)
}

func TestStatsCancelledByClient(t *testing.T) {
	records := &fakeRecords{block: make(chan struct{})}
	svc := newStatsService(records, fakeUsers{}, newCache(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Stats(ctx, admin, Query{})
	require.ErrorIs(t, err, context.Canceled)
	var fe *FetchError
	assert.False(t, errors.As(err, &fe), "a cancelled request is not a source failure")
	assert.Equal(t, apperr.StatusClientClosedRequest, apperr.HTTPStatus(err))
}
