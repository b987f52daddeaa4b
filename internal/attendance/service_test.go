package attendance

import (
	"context"
	"io"
	"log"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendtrack/internal/apperr"
	"attendtrack/internal/queue"
)

type memStore struct {
	mu    sync.Mutex
	recs  map[string]Record
	days  map[string]string // user|day -> id
	dayOf map[string]string // id -> day
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]Record{}, days: map[string]string{}, dayOf: map[string]string{}}
}

func (m *memStore) put(rec Record, day string) {
	m.recs[rec.ID] = rec
	m.dayOf[rec.ID] = day
	m.days[rec.UserID+"|"+day] = rec.ID
}

func (m *memStore) taken(rec Record, day string) bool {
	id, ok := m.days[rec.UserID+"|"+day]
	return ok && id != rec.ID
}

func (m *memStore) Insert(ctx context.Context, rec Record, day string) (Record, error) {
	out, created, err := m.InsertIfAbsent(ctx, rec, day)
	if err == nil && !created {
		return Record{}, ErrDuplicate
	}
	return out, err
}

func (m *memStore) InsertIfAbsent(_ context.Context, rec Record, day string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if m.taken(rec, day) {
		return Record{}, false, nil
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.put(rec, day)
	return rec, true, nil
}

func (m *memStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) FindForDay(_ context.Context, userID string, start, end time.Time) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.UserID == userID && !r.Date.Before(start) && r.Date.Before(end) {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) Update(_ context.Context, rec Record, day string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.recs[rec.ID]
	if !ok {
		return nil, nil
	}
	if m.taken(rec, day) {
		return nil, ErrDuplicate
	}
	delete(m.days, old.UserID+"|"+m.dayOf[rec.ID])
	m.put(rec, day)
	return &rec, nil
}

func (m *memStore) SetExitTime(_ context.Context, id, exit string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok || r.ExitTime != nil {
		return false, nil
	}
	r.ExitTime = &exit
	m.recs[id] = r
	return true, nil
}

func (m *memStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	delete(m.recs, id)
	delete(m.days, r.UserID+"|"+m.dayOf[id])
	delete(m.dayOf, id)
	return ok, nil
}

func (m *memStore) sorted() []Record {
	out := make([]Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (m *memStore) ListAll(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(), nil
}

func (m *memStore) ListBetween(_ context.Context, from, to time.Time) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.sorted() {
		if !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Latest(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) List(_ context.Context, q ListQuery) ([]Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var match []Record
	for _, r := range m.sorted() {
		if q.UserID != "" && r.UserID != q.UserID {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		match = append(match, r)
	}
	total := int64(len(match))
	start := q.Offset()
	if start > len(match) {
		start = len(match)
	}
	end := start + q.PerPage
	if end > len(match) {
		end = len(match)
	}
	return match[start:end], total, nil
}

type names map[string]string

func (n names) DisplayName(_ context.Context, uid string) (string, error) {
	name, ok := n[uid]
	if !ok {
		return "", apperr.NotFound("user not found")
	}
	return name, nil
}

// slowNames widens the window between the day lookup and the insert.
type slowNames struct{ names }

func (n slowNames) DisplayName(ctx context.Context, uid string) (string, error) {
	time.Sleep(20 * time.Millisecond)
	return n.names.DisplayName(ctx, uid)
}

var lima = time.FixedZone("PET", -5*3600)

func newTestService(t *testing.T, store Store, now time.Time, events queue.Publisher) *Service {
	t.Helper()
	svc, err := NewService(store, names{"u1": "Ana Torres", "u2": "Luis Rojas"}, events, Options{
		Location:  lima,
		LateAfter: "08:15",
		Logger:    log.New(io.Discard, "", 0),
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("08:15")
	require.NoError(t, err)
	assert.Equal(t, 495, m)

	m, err = ParseClock("23:59:30")
	require.NoError(t, err)
	assert.Equal(t, 1439, m)

	for _, bad := range []string{"", "8", "24:00", "12:60", "ab:cd", "1:2:3:4"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewServiceRejectsBadThreshold(t *testing.T) {
	_, err := NewService(newMemStore(), names{}, nil, Options{LateAfter: "late"})
	assert.Error(t, err)
}

func TestCheckInStatusAndDedup(t *testing.T) {
	ctx := context.Background()
	events := queue.NewInMemory(8)
	store := newMemStore()

	early := newTestService(t, store, time.Date(2025, 3, 10, 8, 15, 0, 0, lima), events)
	rec, created, err := early.CheckIn(ctx, "u1", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.Equal(t, "08:15", rec.EntryTime)
	assert.Equal(t, "Ana Torres", rec.FullName)

	again, created, err := early.CheckIn(ctx, "u1", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, again.ID)

	late := newTestService(t, store, time.Date(2025, 3, 10, 8, 16, 0, 0, lima), events)
	rec, _, err = late.CheckIn(ctx, "u2", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusLate, rec.Status)

	assert.Len(t, events.Pending(), 2)
}

func TestCheckInUnknownUser(t *testing.T) {
	svc := newTestService(t, newMemStore(), time.Date(2025, 3, 10, 8, 0, 0, 0, lima), nil)
	_, _, err := svc.CheckIn(context.Background(), "ghost", nil)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCheckOut(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	morning := newTestService(t, store, time.Date(2025, 3, 10, 8, 0, 0, 0, lima), nil)
	evening := newTestService(t, store, time.Date(2025, 3, 10, 17, 30, 0, 0, lima), nil)

	_, err := evening.CheckOut(ctx, "u1")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, _, err = morning.CheckIn(ctx, "u1", nil)
	require.NoError(t, err)
	rec, err := evening.CheckOut(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec.ExitTime)
	assert.Equal(t, "17:30", *rec.ExitTime)

	_, err = evening.CheckOut(ctx, "u1")
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemStore(), time.Now(), nil)
	exit := "25:00"
	cases := []Input{
		{UserID: "", Date: "2025-03-10", EntryTime: "08:00", Status: "present"},
		{UserID: "u1", Date: "10/03/2025", EntryTime: "08:00", Status: "present"},
		{UserID: "u1", Date: "2025-03-10", EntryTime: "08:00", Status: "vacation"},
		{UserID: "u1", Date: "2025-03-10", EntryTime: "", Status: "late"},
		{UserID: "u1", Date: "2025-03-10", EntryTime: "8am", Status: "present"},
		{UserID: "u1", Date: "2025-03-10", EntryTime: "08:00", ExitTime: &exit, Status: "present"},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, in)
		assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument), "%+v", in)
	}

	rec, err := svc.Create(ctx, Input{UserID: "u1", Date: "2025-03-10", Status: "Absent"})
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, rec.Status)
	assert.Equal(t, "Ana Torres", rec.FullName)
}

func TestUpdateRefreshesNameOnUserChange(t *testing.T) {
	ctx := context.Background()
	events := queue.NewInMemory(8)
	svc := newTestService(t, newMemStore(), time.Now(), events)
	rec, err := svc.Create(ctx, Input{UserID: "u1", Date: "2025-03-10", EntryTime: "08:00", Status: "present"})
	require.NoError(t, err)

	out, err := svc.Update(ctx, rec.ID, Input{UserID: "u2", Date: "2025-03-10", EntryTime: "09:00", Status: "late"})
	require.NoError(t, err)
	assert.Equal(t, "Luis Rojas", out.FullName)
	assert.Equal(t, StatusLate, out.Status)

	_, err = svc.Update(ctx, "missing", Input{UserID: "u2", Date: "2025-03-10", EntryTime: "09:00", Status: "late"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, rec.ID))
	assert.True(t, apperr.Is(svc.Delete(ctx, rec.ID), apperr.CodeNotFound))

	kinds := []string{}
	for _, m := range events.Pending() {
		kinds = append(kinds, m.Type)
	}
	assert.Equal(t, []string{queue.RecordCreated, queue.RecordUpdated, queue.RecordDeleted}, kinds)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemStore(), time.Now(), nil)
	for d := 1; d <= 12; d++ {
		_, err := svc.Create(ctx, Input{UserID: "u1", Date: time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC).Format(DateLayout), EntryTime: "08:00", Status: "present"})
		require.NoError(t, err)
	}
	page, err := svc.List(ctx, ListQuery{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Records, 2)

	page, err = svc.List(ctx, ListQuery{PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, page.PerPage)
	assert.Len(t, page.Records, 12)
}

func TestTodayCounts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemStore(), time.Date(2025, 3, 10, 12, 0, 0, 0, lima), nil)
	for _, in := range []Input{
		{UserID: "u1", Date: "2025-03-10", EntryTime: "08:00", Status: "present"},
		{UserID: "u2", Date: "2025-03-10", EntryTime: "09:00", Status: "late"},
		{UserID: "u2", Date: "2025-03-09", Status: "absent"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}
	c, err := svc.TodayCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, TodayCounts{Present: 1, Late: 1, Total: 2}, c)
}

func TestConcurrentCheckInCreatesOneRecord(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	events := queue.NewInMemory(16)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, lima)
	svc, err := NewService(store, slowNames{names{"u1": "Ana Torres"}}, events, Options{
		Location:  lima,
		LateAfter: "08:15",
		Logger:    log.New(io.Discard, "", 0),
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)

	const callers = 5
	var wg sync.WaitGroup
	ids := make([]string, callers)
	created := make([]bool, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var rec Record
			rec, created[i], errs[i] = svc.CheckIn(ctx, "u1", nil)
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, events.Pending(), 1)
}

func TestConcurrentCheckOutStampsOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	morning := newTestService(t, store, time.Date(2025, 3, 10, 8, 0, 0, 0, lima), nil)
	evening := newTestService(t, store, time.Date(2025, 3, 10, 17, 30, 0, 0, lima), nil)
	_, _, err := morning.CheckIn(ctx, "u1", nil)
	require.NoError(t, err)

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = evening.CheckOut(ctx, "u1")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.CodeConflict), err)
	}
	assert.Equal(t, 1, ok)
}

func TestOneRecordPerUserPerDay(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newMemStore(), time.Now(), nil)
	first, err := svc.Create(ctx, Input{UserID: "u1", Date: "2025-03-10", EntryTime: "08:00", Status: "present"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Input{UserID: "u1", Date: "2025-03-10", EntryTime: "09:00", Status: "late"})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	other, err := svc.Create(ctx, Input{UserID: "u1", Date: "2025-03-11", EntryTime: "08:00", Status: "present"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, other.ID, Input{UserID: "u1", Date: "2025-03-10", EntryTime: "08:00", Status: "present"})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	_, err = svc.Update(ctx, first.ID, Input{UserID: "u1", Date: "2025-03-10", EntryTime: "08:05", Status: "present"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, first.ID))
	_, err = svc.Create(ctx, Input{UserID: "u1", Date: "2025-03-10", EntryTime: "10:00", Status: "late"})
	require.NoError(t, err)
}

func TestListClampsHugePage(t *testing.T) {
	svc := newTestService(t, newMemStore(), time.Now(), nil)
	page, err := svc.List(context.Background(), ListQuery{Page: math.MaxInt, PerPage: MaxPerPage})
	require.NoError(t, err)
	assert.Equal(t, MaxPage, page.Page)
	assert.Empty(t, page.Records)

	q := ListQuery{Page: math.MaxInt, PerPage: MaxPerPage}
	q.normalize()
	assert.Positive(t, q.Offset())
	assert.LessOrEqual(t, q.Offset(), math.MaxInt32)
}
