package score

import (
	"testing"
	"time"

	"github.com/elonfeng/handlescore/pkg/source"
)

func TestStartOfWeek(t *testing.T) {
	t.Parallel()

	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
	}{
		{"thursday", time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)},
		{"monday midnight", monday},
		{"monday evening", time.Date(2026, 10, 12, 23, 59, 59, 0, time.UTC)},
		{"sunday night", time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StartOfWeek(tt.now, time.UTC); !got.Equal(monday) {
				t.Fatalf("StartOfWeek(%s) = %s, want %s", tt.now, got, monday)
			}
		})
	}
}

func TestStartOfWeekLocation(t *testing.T) {
	t.Parallel()

	// Monday 02:00 in UTC+5 is still Sunday in UTC.
	plus5 := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2026, 10, 11, 21, 0, 0, 0, time.UTC)

	got := StartOfWeek(now, plus5)
	want := time.Date(2026, 10, 12, 0, 0, 0, 0, plus5)
	if !got.Equal(want) {
		t.Fatalf("StartOfWeek in UTC+5 = %s, want %s", got, want)
	}

	if got := StartOfWeek(now, time.UTC); !got.Equal(time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartOfWeek in UTC = %s", got)
	}
}

func TestFilterWeek(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	posts := []source.Post{
		{ID: "before", Timestamp: start.Add(-time.Second)},
		{ID: "boundary", Timestamp: start},
		{ID: "during", Timestamp: start.Add(50 * time.Hour)},
		{ID: "future", Timestamp: start.Add(30 * 24 * time.Hour)},
	}

	week := FilterWeek(posts, start)
	if len(week) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(week))
	}
	for i, id := range []string{"boundary", "during", "future"} {
		if week[i].ID != id {
			t.Fatalf("post %d: got %s, want %s", i, week[i].ID, id)
		}
	}
}

func TestDateKey(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 14, 22, 30, 0, 0, time.UTC)
	if got := DateKey(ts, nil); got != "2026-10-14" {
		t.Fatalf("DateKey UTC = %s", got)
	}
	if got := DateKey(ts, time.FixedZone("UTC+3", 3*3600)); got != "2026-10-15" {
		t.Fatalf("DateKey UTC+3 = %s", got)
	}
}
