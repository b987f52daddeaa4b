package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"attendtrack/internal/attendance"
)

func TestFilterByRangeInclusive(t *testing.T) {
	recs := []attendance.Record{
		{ID: "before", Date: day(2025, 3, 9)},
		{ID: "start", Date: day(2025, 3, 10)},
		{ID: "late-end", Date: time.Date(2025, 3, 14, 23, 59, 0, 0, lima)},
		{ID: "after", Date: day(2025, 3, 15)},
		{ID: "zero"},
	}
	got := FilterByRange(recs, day(2025, 3, 10), day(2025, 3, 14), lima)
	ids := []string{}
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"start", "late-end"}, ids)

	assert.Empty(t, FilterByRange(recs, day(2025, 3, 14), day(2025, 3, 10), lima))
}

func TestFilterByRangeUsesLocalDay(t *testing.T) {
	// 02:00 UTC on the 11th is still the 10th in Lima.
	recs := []attendance.Record{{ID: "x", Date: time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC)}}
	assert.Len(t, FilterByRange(recs, day(2025, 3, 10), day(2025, 3, 10), lima), 1)
	assert.Empty(t, FilterByRange(recs, day(2025, 3, 11), day(2025, 3, 11), lima))
}

func TestWorkingDays(t *testing.T) {
	cases := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"monday to friday", day(2025, 3, 10), day(2025, 3, 14), 5},
		{"full week", day(2025, 3, 10), day(2025, 3, 16), 5},
		{"weekend", day(2025, 3, 15), day(2025, 3, 16), 0},
		{"single weekday", day(2025, 3, 12), day(2025, 3, 12), 1},
		{"two weeks", day(2025, 3, 10), day(2025, 3, 23), 10},
		{"march 2025", day(2025, 3, 1), day(2025, 3, 31), 21},
		{"inverted", day(2025, 3, 14), day(2025, 3, 10), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkingDays(tc.from, tc.to, lima))
		})
	}
}

func TestResolvePeriod(t *testing.T) {
	now := time.Date(2025, 3, 13, 15, 30, 0, 0, lima) // Thursday
	cases := map[string]Range{
		"today":   {From: day(2025, 3, 13), To: day(2025, 3, 13)},
		"hoy":     {From: day(2025, 3, 13), To: day(2025, 3, 13)},
		"week":    {From: day(2025, 3, 10), To: day(2025, 3, 13)},
		"semana":  {From: day(2025, 3, 10), To: day(2025, 3, 13)},
		"month":   {From: day(2025, 3, 1), To: day(2025, 3, 13)},
		"year":    {From: day(2025, 1, 1), To: day(2025, 3, 13)},
		"anio":    {From: day(2025, 1, 1), To: day(2025, 3, 13)},
		"":        {From: day(2025, 3, 1), To: day(2025, 3, 13)},
		"quarter": {From: day(2025, 3, 1), To: day(2025, 3, 13)},
	}
	for name, want := range cases {
		got := ResolvePeriod(name, now, lima)
		assert.True(t, want.From.Equal(got.From), "%s from: %s", name, got.From)
		assert.True(t, want.To.Equal(got.To), "%s to: %s", name, got.To)
	}

	sunday := time.Date(2025, 3, 16, 9, 0, 0, 0, lima)
	got := ResolvePeriod("week", sunday, lima)
	assert.True(t, day(2025, 3, 10).Equal(got.From))
}
