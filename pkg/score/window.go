package score

import (
	"time"

	"github.com/elonfeng/handlescore/pkg/source"
)

// dateLayout is the calendar-day key used for daily aggregates and best posts.
const dateLayout = "2006-01-02"

// StartOfWeek returns the most recent Monday at midnight in loc. Monday is
// always the first day of the week regardless of locale.
func StartOfWeek(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	back := (int(now.Weekday()) + 6) % 7
	y, m, d := now.AddDate(0, 0, -back).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// FilterWeek returns the posts published at or after start, in input order.
// Posts dated in the future are kept.
func FilterWeek(posts []source.Post, start time.Time) []source.Post {
	var week []source.Post
	for _, p := range posts {
		if !p.Timestamp.Before(start) {
			week = append(week, p)
		}
	}
	return week
}

// DateKey formats t as YYYY-MM-DD in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}
