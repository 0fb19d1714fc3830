package score

import (
	"math"
	"time"

	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/source"
)

// MaxScore is the upper bound of a Handle Score.
const MaxScore = 1000

// Profile holds the platform-specific scoring coefficients and conventions.
type Profile struct {
	Platform   source.Platform
	Multiplier float64
	BaseOffset float64
	DailyMode  store.DailyMode
	// DateZone keys daily rows and best-post dates. Nil means the engine's
	// location.
	DateZone *time.Location
	// HasViews reports whether the platform exposes a view count for best posts.
	HasViews bool
}

// DefaultProfiles returns the built-in profile for every platform.
func DefaultProfiles() map[source.Platform]Profile {
	return map[source.Platform]Profile{
		source.PlatformInstagram: {
			Platform:   source.PlatformInstagram,
			Multiplier: 0.7,
			BaseOffset: 1.2 * 0.3,
			DailyMode:  store.DailyEngagement,
			HasViews:   true,
		},
		source.PlatformTwitter: {
			Platform:   source.PlatformTwitter,
			Multiplier: 4.0,
			BaseOffset: 50,
			DailyMode:  store.DailyPosts,
			DateZone:   time.UTC,
			HasViews:   true,
		},
		source.PlatformLinkedIn: {
			Platform:   source.PlatformLinkedIn,
			Multiplier: 3.0,
			BaseOffset: 100,
			DailyMode:  store.DailyPosts,
			DateZone:   time.UTC,
		},
	}
}

// HandleScore converts an average engagement into a 0-1000 score:
// round(avg*multiplier + baseOffset + adjustment), clamped at both ends.
func HandleScore(avg float64, p Profile, adjustment float64) int {
	raw := roundHalfUp(avg*p.Multiplier + p.BaseOffset + adjustment)
	if raw > MaxScore {
		return MaxScore
	}
	if raw < 0 {
		return 0
	}
	return int(raw)
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Floor(v + 0.5)
}
