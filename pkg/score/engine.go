package score

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/source"
)

// Engine computes Handle Scores and persists the results of each run.
type Engine struct {
	persister store.Persister
	profiles  map[source.Platform]Profile
	loc       *time.Location
	log       *slog.Logger
}

// NewEngine creates a scoring engine. Missing profiles fall back to
// DefaultProfiles, a nil loc means time.Local, and a nil logger discards.
func NewEngine(p store.Persister, profiles map[source.Platform]Profile, loc *time.Location, logger *slog.Logger) *Engine {
	merged := DefaultProfiles()
	for k, v := range profiles {
		v.Platform = k
		merged[k] = v
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		persister: p,
		profiles:  merged,
		loc:       loc,
		log:       logger,
	}
}

// Request is one scoring run for a (user, platform) pair.
type Request struct {
	Platform source.Platform
	UserID   string
	Batch    *source.Batch
	// Prior is the stored state before this run; nil for a first run.
	Prior *store.UserAnalytics
	// Adjustment is an external tuning term added to the score.
	Adjustment float64
	// Now overrides the run time. Zero means time.Now().
	Now time.Time
}

// Result is the outcome of a scoring run.
type Result struct {
	RunID            string                 `json:"run_id"`
	UserID           string                 `json:"user_id"`
	Platform         source.Platform        `json:"platform"`
	Score            int                    `json:"handle_score"`
	PostCount        int                    `json:"post_count"`
	TotalEngagement  int                    `json:"total_engagement"`
	AvgEngagement    int                    `json:"avg_engagement"`
	DailyAggregates  []store.DailyAggregate `json:"daily_aggregates"`
	BestPost         *store.BestPost        `json:"best_post"`
	ConsistencyWeeks int                    `json:"consistency_weeks"`
	PreviousScore    int                    `json:"previous_score"`
	StartOfWeek      time.Time              `json:"start_of_week"`
	LastUpdated      time.Time              `json:"last_updated"`
}

// Profile returns the scoring profile used for platform.
func (e *Engine) Profile(platform source.Platform) (Profile, bool) {
	p, ok := e.profiles[platform]
	return p, ok
}

// Compute runs the scoring pipeline without touching storage.
func (e *Engine) Compute(req Request) (*Result, error) {
	prof, ok := e.profiles[req.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", source.ErrUnknownPlatform, req.Platform)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("score %s: empty user id", req.Platform)
	}
	if req.Batch != nil && req.Batch.Platform != "" && req.Batch.Platform != req.Platform {
		return nil, fmt.Errorf("score %s: batch is for %s", req.Platform, req.Batch.Platform)
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	dateLoc := prof.DateZone
	if dateLoc == nil {
		dateLoc = e.loc
	}

	var batch source.Batch
	if req.Batch != nil {
		batch = *req.Batch
	}
	batch.Platform = req.Platform

	start := StartOfWeek(now, e.loc)
	week := FilterWeek(source.Normalize(&batch), start)
	agg := Tally(week, prof.DailyMode, dateLoc)
	hs := HandleScore(agg.Average, prof, req.Adjustment)

	var prior Streak
	priorScore := 0
	if req.Prior != nil {
		prior = Streak{
			ConsistencyWeeks: req.Prior.ConsistencyWeeks,
			PreviousScore:    req.Prior.PreviousScore,
			LastUpdated:      req.Prior.LastUpdated,
		}
		priorScore = req.Prior.Stats(req.Platform).Score
	}
	streak := prior.Advance(priorScore, agg.PostCount, start, now)

	return &Result{
		RunID:            uuid.NewString(),
		UserID:           req.UserID,
		Platform:         req.Platform,
		Score:            hs,
		PostCount:        agg.PostCount,
		TotalEngagement:  agg.TotalEngagement,
		AvgEngagement:    int(roundHalfUp(agg.Average)),
		DailyAggregates:  agg.rows(req.UserID, req.Platform, prof.DailyMode),
		BestPost:         bestPostRecord(req.UserID, SelectBest(week), prof, dateLoc),
		ConsistencyWeeks: streak.ConsistencyWeeks,
		PreviousScore:    streak.PreviousScore,
		StartOfWeek:      start,
		LastUpdated:      streak.LastUpdated,
	}, nil
}

// ScorePlatform computes a run and persists it. Stale daily rows and the
// previous best post for the platform are cleared before the new ones are
// written. If the persister supports batching, all writes commit together.
func (e *Engine) ScorePlatform(ctx context.Context, req Request) (*Result, error) {
	res, err := e.Compute(req)
	if err != nil {
		return nil, err
	}

	log := e.log.With("run_id", res.RunID, "user_id", res.UserID, "platform", res.Platform)
	log.Debug("computed score",
		"score", res.Score,
		"posts", res.PostCount,
		"engagement", res.TotalEngagement,
		"streak", res.ConsistencyWeeks)

	if e.persister == nil {
		return res, nil
	}

	write := func(p store.Persister) error {
		if err := p.UpsertDailyAggregates(ctx, res.UserID, res.Platform, res.DailyAggregates); err != nil {
			return err
		}
		if err := p.ReplaceBestPost(ctx, res.UserID, res.Platform, res.BestPost); err != nil {
			return err
		}
		return p.UpsertUserAnalytics(ctx, res.UserID, store.AnalyticsUpdate{
			Platform: res.Platform,
			Stats: store.PlatformStats{
				Score:           res.Score,
				PostCount:       res.PostCount,
				TotalEngagement: res.TotalEngagement,
				AvgEngagement:   res.AvgEngagement,
			},
			ConsistencyWeeks: res.ConsistencyWeeks,
			PreviousScore:    res.PreviousScore,
			LastUpdated:      res.LastUpdated,
		})
	}

	if b, ok := e.persister.(store.Batcher); ok {
		err = b.Batch(ctx, write)
	} else {
		err = write(e.persister)
	}
	if err != nil {
		log.Error("persist run failed", "error", err)
		return nil, fmt.Errorf("persist %s run for %s: %w", res.Platform, res.UserID, err)
	}

	log.Info("scored", "score", res.Score, "posts", res.PostCount)
	return res, nil
}
