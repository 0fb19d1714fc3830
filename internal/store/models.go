package store

import (
	"encoding/json"
	"time"

	"github.com/elonfeng/handlescore/pkg/source"
)

// DailyMode selects what a daily aggregate row counts.
type DailyMode string

const (
	// DailyEngagement sums likes and comments per day.
	DailyEngagement DailyMode = "engagement"
	// DailyPosts counts original posts per day (habit tracker).
	DailyPosts DailyMode = "posts"
)

// PlatformStats is the per-platform slice of a user's analytics row.
type PlatformStats struct {
	Score           int        `json:"score"`
	PostCount       int        `json:"post_count"`
	TotalEngagement int        `json:"total_engagement"`
	AvgEngagement   int        `json:"avg_engagement"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// UserAnalytics is the single per-user state row.
type UserAnalytics struct {
	UserID string `db:"user_id" json:"user_id"`

	InstaScore         int        `db:"insta_score" json:"-"`
	InstaPostCount     int        `db:"insta_post_count" json:"-"`
	InstaEngagement    int        `db:"insta_engagement" json:"-"`
	InstaAvgEngagement int        `db:"insta_avg_engagement" json:"-"`
	InstaUpdatedAt     *time.Time `db:"insta_updated_at" json:"-"`

	XScore         int        `db:"x_score" json:"-"`
	XPostCount     int        `db:"x_post_count" json:"-"`
	XEngagement    int        `db:"x_engagement" json:"-"`
	XAvgEngagement int        `db:"x_avg_engagement" json:"-"`
	XUpdatedAt     *time.Time `db:"x_updated_at" json:"-"`

	LinkedInScore         int        `db:"linkedin_score" json:"-"`
	LinkedInPostCount     int        `db:"linkedin_post_count" json:"-"`
	LinkedInEngagement    int        `db:"linkedin_engagement" json:"-"`
	LinkedInAvgEngagement int        `db:"linkedin_avg_engagement" json:"-"`
	LinkedInUpdatedAt     *time.Time `db:"linkedin_updated_at" json:"-"`

	ConsistencyWeeks int       `db:"consistency_weeks" json:"consistency_weeks"`
	PreviousScore    int       `db:"previous_handle_score" json:"previous_score"`
	LastUpdated      time.Time `db:"last_updated" json:"last_updated"`
}

// Stats returns the stored numbers for one platform.
func (u *UserAnalytics) Stats(p source.Platform) PlatformStats {
	if u == nil {
		return PlatformStats{}
	}
	switch p {
	case source.PlatformInstagram:
		return PlatformStats{u.InstaScore, u.InstaPostCount, u.InstaEngagement, u.InstaAvgEngagement, u.InstaUpdatedAt}
	case source.PlatformTwitter:
		return PlatformStats{u.XScore, u.XPostCount, u.XEngagement, u.XAvgEngagement, u.XUpdatedAt}
	case source.PlatformLinkedIn:
		return PlatformStats{u.LinkedInScore, u.LinkedInPostCount, u.LinkedInEngagement, u.LinkedInAvgEngagement, u.LinkedInUpdatedAt}
	}
	return PlatformStats{}
}

// MarshalJSON nests the per-platform columns under "platforms", one entry
// per known platform whether or not it was ever scored.
func (u UserAnalytics) MarshalJSON() ([]byte, error) {
	platforms := make(map[source.Platform]PlatformStats, len(source.AllPlatforms()))
	for _, p := range source.AllPlatforms() {
		platforms[p] = u.Stats(p)
	}
	type row UserAnalytics
	return json.Marshal(struct {
		row
		Platforms map[source.Platform]PlatformStats `json:"platforms"`
	}{row(u), platforms})
}

// AnalyticsUpdate is the partial state written by one platform run. Only
// the platform's own columns and the shared streak fields are touched.
type AnalyticsUpdate struct {
	Platform         source.Platform
	Stats            PlatformStats
	ConsistencyWeeks int
	PreviousScore    int
	LastUpdated      time.Time
}

// DailyAggregate is one (user, day, platform) data point.
type DailyAggregate struct {
	UserID   string          `db:"user_id" json:"user_id"`
	Date     string          `db:"date" json:"date"`
	Platform source.Platform `db:"platform" json:"platform"`
	Value    int             `db:"value" json:"value"`
	Mode     DailyMode       `db:"mode" json:"mode"`
}

// BestPost is the highest-impact post of the week for a platform.
type BestPost struct {
	UserID   string          `db:"user_id" json:"user_id"`
	Platform source.Platform `db:"platform" json:"platform"`
	Text     string          `db:"post_text" json:"text"`
	Likes    int             `db:"likes" json:"likes"`
	Comments int             `db:"comments" json:"comments"`
	Shares   int             `db:"shares_reposts" json:"shares_reposts"`
	Views    *int            `db:"views" json:"views,omitempty"`
	URL      string          `db:"post_url" json:"url"`
	Date     string          `db:"post_date" json:"date"`
}

// Connection links a user to a handle on one platform.
type Connection struct {
	UserID    string          `db:"user_id" json:"user_id"`
	Platform  source.Platform `db:"platform" json:"platform"`
	Handle    string          `db:"handle" json:"handle"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// DailyListOpts controls daily aggregate listing.
type DailyListOpts struct {
	UserID   string
	Platform source.Platform
	Since    string // inclusive YYYY-MM-DD
	Limit    int
}

// ConnectionListOpts controls connection listing.
type ConnectionListOpts struct {
	UserID   string
	Platform source.Platform
}
