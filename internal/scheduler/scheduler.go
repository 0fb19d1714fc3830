package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/elonfeng/handlescore/internal/refresh"
)

// Refresher is the subset of the refresh service the scheduler drives.
type Refresher interface {
	RefreshAll(ctx context.Context, force bool, limit int) ([]refresh.Outcome, error)
}

// Scheduler periodically re-scores every connected account.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	spec      string
	limit     int
	log       *slog.Logger
}

// New creates a scheduler that runs on a cron spec (e.g. "0 */6 * * *")
// interpreted in loc.
func New(r Refresher, spec string, loc *time.Location, limit int, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = "0 */6 * * *"
	}
	if loc == nil {
		loc = time.Local
	}
	if limit <= 0 {
		limit = 4
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		refresher: r,
		spec:      spec,
		limit:     limit,
		log:       logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler: initial refresh")
	s.refreshAll(ctx)

	s.cron.Start()
	s.log.Info("scheduler: running", "schedule", s.spec)

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("scheduler: stopped")
	return ctx.Err()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	s.refreshAll(ctx)
}

func (s *Scheduler) refreshAll(ctx context.Context) {
	start := time.Now()
	outcomes, err := s.refresher.RefreshAll(ctx, false, s.limit)
	if err != nil {
		s.log.Warn("scheduler: refresh errors", "error", err)
	}

	scored, skipped := 0, 0
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Error == "":
			scored++
		}
	}
	s.log.Info("scheduler: refresh done",
		"accounts", len(outcomes),
		"scored", scored,
		"skipped", skipped,
		"took", time.Since(start))
}
