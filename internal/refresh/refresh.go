package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/notify"
	"github.com/elonfeng/handlescore/pkg/score"
	"github.com/elonfeng/handlescore/pkg/source"
)

var (
	// ErrPlatformDisabled is returned when no fetcher is configured for a platform.
	ErrPlatformDisabled = errors.New("platform disabled")
	// ErrInvalidParams is returned when a refresh lacks a user id or handle.
	ErrInvalidParams = errors.New("user id and handle are required")
)

// Service runs fetch-score-persist cycles for connected accounts.
type Service struct {
	store      store.Store
	engine     *score.Engine
	fetchers   map[source.Platform]source.Fetcher
	notifier   *notify.Manager
	freshness  time.Duration
	adjustment float64
	log        *slog.Logger
	now        func() time.Time

	// users serializes runs of the same user: the streak fields are
	// shared by all of a user's platforms.
	usersMu sync.Mutex
	users   map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a refresh service. A freshness of 0 disables the re-score guard.
func New(
	s store.Store,
	engine *score.Engine,
	fetchers []source.Fetcher,
	notifier *notify.Manager,
	freshness time.Duration,
	adjustment float64,
	logger *slog.Logger,
) *Service {
	byPlatform := make(map[source.Platform]source.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byPlatform[f.Platform()] = f
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:      s,
		engine:     engine,
		fetchers:   byPlatform,
		notifier:   notifier,
		freshness:  freshness,
		adjustment: adjustment,
		log:        logger,
		now:        time.Now,
		users:      make(map[string]*userLock),
	}
}

// lockUser blocks until no other run holds userID and returns the unlock func.
func (s *Service) lockUser(userID string) func() {
	s.usersMu.Lock()
	l, ok := s.users[userID]
	if !ok {
		l = &userLock{}
		s.users[userID] = l
	}
	l.refs++
	s.usersMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.usersMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.users, userID)
		}
		s.usersMu.Unlock()
	}
}

// Params identifies one refresh.
type Params struct {
	UserID   string
	Platform source.Platform
	Handle   string
	// Adjustment overrides the configured default when non-nil.
	Adjustment *float64
	// Force skips the freshness guard.
	Force bool
}

// Outcome is what a caller gets back from a refresh. Score is 0 whenever
// the refresh failed.
type Outcome struct {
	Platform  source.Platform `json:"platform"`
	Handle    string          `json:"handle"`
	Score     int             `json:"handle_score"`
	PostCount int             `json:"post_count"`
	Skipped   bool            `json:"skipped,omitempty"`
	Result    *score.Result   `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Platforms returns the platforms that have a fetcher configured.
func (s *Service) Platforms() []source.Platform {
	var out []source.Platform
	for _, p := range source.AllPlatforms() {
		if _, ok := s.fetchers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Refresh fetches, scores, and persists one (user, platform) pair. An
// upstream failure aborts the run before any state is written. Runs for the
// same user are serialized so each one reads the streak the previous one
// committed.
func (s *Service) Refresh(ctx context.Context, p Params) (*Outcome, error) {
	out := &Outcome{Platform: p.Platform, Handle: p.Handle}
	if p.UserID == "" || p.Handle == "" {
		return out, fmt.Errorf("refresh %s: %w", p.Platform, ErrInvalidParams)
	}

	fetcher, ok := s.fetchers[p.Platform]
	if !ok {
		return out, fmt.Errorf("refresh %s: %w", p.Platform, ErrPlatformDisabled)
	}

	unlock := s.lockUser(p.UserID)
	defer unlock()

	prior, err := s.store.GetUserAnalytics(ctx, p.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return out, fmt.Errorf("load prior state: %w", err)
	}

	log := s.log.With("user_id", p.UserID, "platform", p.Platform, "handle", p.Handle)

	if !p.Force && s.isFresh(prior, p.Platform) {
		st := prior.Stats(p.Platform)
		log.Debug("skipping fresh platform", "updated_at", st.UpdatedAt)
		out.Skipped = true
		out.Score = st.Score
		out.PostCount = st.PostCount
		return out, nil
	}

	batch, err := fetcher.Fetch(ctx, p.Handle)
	if err != nil {
		log.Warn("fetch failed", "error", err)
		return out, err
	}

	adj := s.adjustment
	if p.Adjustment != nil {
		adj = *p.Adjustment
	}

	res, err := s.engine.ScorePlatform(ctx, score.Request{
		Platform:   p.Platform,
		UserID:     p.UserID,
		Batch:      batch,
		Prior:      prior,
		Adjustment: adj,
		Now:        s.now(),
	})
	if err != nil {
		return out, err
	}

	out.Score = res.Score
	out.PostCount = res.PostCount
	out.Result = res

	if err := s.store.AddConnection(ctx, &store.Connection{
		UserID:   p.UserID,
		Platform: p.Platform,
		Handle:   p.Handle,
	}); err != nil {
		log.Warn("record connection failed", "error", err)
	}

	s.report(ctx, p.Handle, res)
	return out, nil
}

func (s *Service) isFresh(prior *store.UserAnalytics, platform source.Platform) bool {
	if prior == nil || s.freshness <= 0 {
		return false
	}
	st := prior.Stats(platform)
	if st.UpdatedAt == nil {
		return false
	}
	return s.now().Sub(*st.UpdatedAt) < s.freshness
}

func (s *Service) report(ctx context.Context, handle string, res *score.Result) {
	if !s.notifier.HasNotifiers() {
		return
	}
	r := &notify.Report{
		RunID:            res.RunID,
		UserID:           res.UserID,
		Platform:         res.Platform,
		Handle:           handle,
		Score:            res.Score,
		PreviousScore:    res.PreviousScore,
		PostCount:        res.PostCount,
		TotalEngagement:  res.TotalEngagement,
		ConsistencyWeeks: res.ConsistencyWeeks,
		ScoredAt:         res.LastUpdated,
	}
	if res.BestPost != nil {
		r.BestPostURL = res.BestPost.URL
	}
	if err := s.notifier.Broadcast(ctx, r); err != nil {
		s.log.Warn("report delivery failed", "run_id", res.RunID, "error", err)
	}
}

// RefreshUser refreshes every connected platform of a user, one platform
// after another. Failures are collected per platform and joined into the
// returned error.
func (s *Service) RefreshUser(ctx context.Context, userID string, force bool) ([]Outcome, error) {
	conns, err := s.store.ListConnections(ctx, store.ConnectionListOpts{UserID: userID})
	if err != nil {
		return nil, err
	}
	return s.refreshConnections(ctx, conns, force, 0)
}

// RefreshAll refreshes every stored connection with at most limit users in
// flight. A user's platforms run in sequence.
func (s *Service) RefreshAll(ctx context.Context, force bool, limit int) ([]Outcome, error) {
	conns, err := s.store.ListConnections(ctx, store.ConnectionListOpts{})
	if err != nil {
		return nil, err
	}
	return s.refreshConnections(ctx, conns, force, limit)
}

func (s *Service) refreshConnections(ctx context.Context, conns []store.Connection, force bool, limit int) ([]Outcome, error) {
	outcomes := make([]Outcome, len(conns))
	var (
		mu   sync.Mutex
		errs []error
	)

	// Group indexes by user, keeping the listing order inside each group.
	var users [][]int
	group := make(map[string]int)
	for i, c := range conns {
		n, ok := group[c.UserID]
		if !ok {
			n = len(users)
			group[c.UserID] = n
			users = append(users, nil)
		}
		users[n] = append(users[n], i)
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, idxs := range users {
		g.Go(func() error {
			for _, i := range idxs {
				c := conns[i]
				out, err := s.Refresh(ctx, Params{
					UserID:   c.UserID,
					Platform: c.Platform,
					Handle:   c.Handle,
					Force:    force,
				})
				if err != nil {
					out.Score = 0
					out.Error = err.Error()
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s/%s: %w", c.UserID, c.Platform, err))
					mu.Unlock()
				}
				outcomes[i] = *out
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, errors.Join(errs...)
}
