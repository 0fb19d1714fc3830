package score

import (
	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/source"
)

// overviewOrder is the order platforms are considered in; it decides
// ties for the top platform.
var overviewOrder = []source.Platform{
	source.PlatformInstagram,
	source.PlatformLinkedIn,
	source.PlatformTwitter,
}

// Overview is the cross-platform summary of a user's analytics row.
type Overview struct {
	HandleScore       int                                      `json:"handle_score"`
	PreviousScore     int                                      `json:"previous_score"`
	ScoreDelta        int                                      `json:"score_delta"`
	TotalInteractions int                                      `json:"total_interactions"`
	AverageEngagement int                                      `json:"average_engagement"`
	TopPlatform       source.Platform                          `json:"top_platform,omitempty"`
	ConsistencyWeeks  int                                      `json:"consistency_weeks"`
	Platforms         map[source.Platform]store.PlatformStats `json:"platforms"`
}

// BuildOverview summarizes the connected platforms of a. Platforms that are
// not connected are ignored even if stale numbers remain in the row.
func BuildOverview(a *store.UserAnalytics, connected []source.Platform) Overview {
	ov := Overview{Platforms: make(map[source.Platform]store.PlatformStats)}
	if a == nil {
		return ov
	}

	isConnected := make(map[source.Platform]bool, len(connected))
	for _, p := range connected {
		isConnected[p] = true
	}

	var totalScore, scored, totalAvg, avgCount int
	topEng := -1
	for _, p := range overviewOrder {
		if !isConnected[p] {
			continue
		}
		st := a.Stats(p)
		ov.Platforms[p] = st

		totalScore += st.Score
		scored++
		ov.TotalInteractions += st.TotalEngagement
		if st.TotalEngagement > topEng {
			topEng = st.TotalEngagement
			ov.TopPlatform = p
		}
		if st.AvgEngagement > 0 {
			totalAvg += st.AvgEngagement
			avgCount++
		}
	}

	if scored > 0 {
		ov.HandleScore = totalScore / scored
	}
	if avgCount > 0 {
		ov.AverageEngagement = totalAvg / avgCount
	}
	ov.PreviousScore = a.PreviousScore
	ov.ScoreDelta = ov.HandleScore - a.PreviousScore
	ov.ConsistencyWeeks = a.ConsistencyWeeks
	return ov
}
