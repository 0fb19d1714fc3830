package score

import (
	"time"

	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/source"
)

// PowerScore weights a post for best-post ranking: likes + 2*comments + 3*shares.
func PowerScore(p source.Post) int {
	return p.Likes + p.Comments*2 + p.Shares*3
}

// SelectBest returns the post with the highest power score, or nil when
// posts is empty. On ties the earliest post in input order wins.
func SelectBest(posts []source.Post) *source.Post {
	var best *source.Post
	top := -1
	for i := range posts {
		if ps := PowerScore(posts[i]); ps > top {
			top = ps
			best = &posts[i]
		}
	}
	return best
}

func bestPostRecord(userID string, p *source.Post, prof Profile, loc *time.Location) *store.BestPost {
	if p == nil {
		return nil
	}
	text := p.Text
	if text == "" {
		text = "No Text"
	}
	rec := &store.BestPost{
		UserID:   userID,
		Platform: prof.Platform,
		Text:     text,
		Likes:    p.Likes,
		Comments: p.Comments,
		Shares:   p.Shares,
		URL:      p.URL,
		Date:     DateKey(p.Timestamp, loc),
	}
	if prof.HasViews {
		views := p.Views
		rec.Views = &views
	}
	return rec
}
