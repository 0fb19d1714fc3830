package score

import (
	"sort"
	"time"

	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/source"
)

// Aggregate summarizes one week of posts.
type Aggregate struct {
	PostCount       int
	TotalEngagement int
	Average         float64
	Daily           map[string]int
}

// Tally sums engagement over posts and buckets them by calendar day in loc.
// In DailyPosts mode each post adds 1 to its day instead of its engagement.
func Tally(posts []source.Post, mode store.DailyMode, loc *time.Location) Aggregate {
	agg := Aggregate{Daily: make(map[string]int)}
	for _, p := range posts {
		agg.PostCount++
		agg.TotalEngagement += p.Engagement

		key := DateKey(p.Timestamp, loc)
		if mode == store.DailyPosts {
			agg.Daily[key]++
		} else {
			agg.Daily[key] += p.Engagement
		}
	}
	if agg.PostCount > 0 {
		agg.Average = float64(agg.TotalEngagement) / float64(agg.PostCount)
	}
	return agg
}

// rows converts the daily map into aggregate rows sorted by date.
func (a Aggregate) rows(userID string, platform source.Platform, mode store.DailyMode) []store.DailyAggregate {
	dates := make([]string, 0, len(a.Daily))
	for d := range a.Daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rows := make([]store.DailyAggregate, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, store.DailyAggregate{
			UserID:   userID,
			Date:     d,
			Platform: platform,
			Value:    a.Daily[d],
			Mode:     mode,
		})
	}
	return rows
}
