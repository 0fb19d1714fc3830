package score

import "time"

// streakGrace is how long a user may go without posting before the
// consistency counter resets.
const streakGrace = 8 * 24 * time.Hour

// Streak is the cross-week consistency state of a user.
type Streak struct {
	ConsistencyWeeks int
	PreviousScore    int
	LastUpdated      time.Time
}

// Advance applies one scoring run to the streak.
//
// When the previous run happened before startOfWeek, the prior score is
// snapshotted into PreviousScore and the counter is incremented if the
// current week has posts, or reset if more than eight days passed since the
// previous run. Within the same week the counter only bootstraps from 0 to 1.
func (s Streak) Advance(priorScore, postsThisWeek int, startOfWeek, now time.Time) Streak {
	last := s.LastUpdated
	if last.IsZero() {
		last = time.Unix(0, 0)
	}

	next := Streak{
		ConsistencyWeeks: s.ConsistencyWeeks,
		PreviousScore:    s.PreviousScore,
		LastUpdated:      now,
	}
	if next.ConsistencyWeeks < 0 {
		next.ConsistencyWeeks = 0
	}

	if last.Before(startOfWeek) {
		next.PreviousScore = priorScore
		switch {
		case postsThisWeek > 0:
			next.ConsistencyWeeks++
		case now.Sub(last) > streakGrace:
			next.ConsistencyWeeks = 0
		}
		return next
	}

	if postsThisWeek > 0 && next.ConsistencyWeeks == 0 {
		next.ConsistencyWeeks = 1
	}
	return next
}
