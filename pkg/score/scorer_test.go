package score

import (
	"math"
	"testing"

	"github.com/elonfeng/handlescore/pkg/source"
)

func TestHandleScore(t *testing.T) {
	t.Parallel()

	profiles := DefaultProfiles()
	insta := profiles[source.PlatformInstagram]
	x := profiles[source.PlatformTwitter]
	li := profiles[source.PlatformLinkedIn]

	tests := []struct {
		name       string
		avg        float64
		profile    Profile
		adjustment float64
		want       int
	}{
		{"instagram weekly average", 65.0 / 3, insta, 0, 16},
		{"instagram no posts", 0, insta, 0, 0},
		{"twitter no posts", 0, x, 0, 50},
		{"linkedin no posts", 0, li, 0, 100},
		{"linkedin average", 12.5, li, 0, 138},
		{"adjustment", 10, x, 7, 97},
		{"half rounds up", 0, Profile{BaseOffset: 2.5}, 0, 3},
		{"clamped high", 5000, x, 0, MaxScore},
		{"clamped low", 0, x, -500, 0},
		{"nan", math.NaN(), x, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HandleScore(tt.avg, tt.profile, tt.adjustment); got != tt.want {
				t.Fatalf("HandleScore(%v) = %d, want %d", tt.avg, got, tt.want)
			}
		})
	}
}
