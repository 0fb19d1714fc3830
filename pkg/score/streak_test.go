package score

import (
	"testing"
	"time"
)

func TestStreakAdvance(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	start := StartOfWeek(now, time.UTC)

	tests := []struct {
		name      string
		prior     Streak
		score     int
		posts     int
		wantWeeks int
		wantPrev  int
	}{
		{
			name:      "first run with posts",
			prior:     Streak{},
			score:     0,
			posts:     2,
			wantWeeks: 1,
			wantPrev:  0,
		},
		{
			name:      "first run without posts",
			prior:     Streak{},
			posts:     0,
			wantWeeks: 0,
		},
		{
			name:      "new week with posts",
			prior:     Streak{ConsistencyWeeks: 3, PreviousScore: 120, LastUpdated: now.AddDate(0, 0, -6)},
			score:     400,
			posts:     1,
			wantWeeks: 4,
			wantPrev:  400,
		},
		{
			name:      "new week quiet within grace",
			prior:     Streak{ConsistencyWeeks: 3, LastUpdated: now.AddDate(0, 0, -5)},
			score:     400,
			posts:     0,
			wantWeeks: 3,
			wantPrev:  400,
		},
		{
			name:      "new week quiet past grace",
			prior:     Streak{ConsistencyWeeks: 3, LastUpdated: now.AddDate(0, 0, -10)},
			score:     400,
			posts:     0,
			wantWeeks: 0,
			wantPrev:  400,
		},
		{
			name:      "same week bootstrap",
			prior:     Streak{ConsistencyWeeks: 0, PreviousScore: 80, LastUpdated: start.Add(time.Hour)},
			score:     300,
			posts:     1,
			wantWeeks: 1,
			wantPrev:  80,
		},
		{
			name:      "same week no double count",
			prior:     Streak{ConsistencyWeeks: 5, PreviousScore: 80, LastUpdated: start.Add(time.Hour)},
			score:     300,
			posts:     4,
			wantWeeks: 5,
			wantPrev:  80,
		},
		{
			name:      "negative counter clamped",
			prior:     Streak{ConsistencyWeeks: -2, LastUpdated: start.Add(time.Hour)},
			posts:     0,
			wantWeeks: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.prior.Advance(tt.score, tt.posts, start, now)
			if got.ConsistencyWeeks != tt.wantWeeks {
				t.Fatalf("weeks = %d, want %d", got.ConsistencyWeeks, tt.wantWeeks)
			}
			if got.PreviousScore != tt.wantPrev {
				t.Fatalf("previous score = %d, want %d", got.PreviousScore, tt.wantPrev)
			}
			if !got.LastUpdated.Equal(now) {
				t.Fatalf("last updated = %s, want %s", got.LastUpdated, now)
			}
		})
	}
}
