package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/handlescore/pkg/source"
)

// Report is the payload delivered after a successful scoring run.
type Report struct {
	RunID            string          `json:"run_id"`
	UserID           string          `json:"user_id"`
	Platform         source.Platform `json:"platform"`
	Handle           string          `json:"handle"`
	Score            int             `json:"handle_score"`
	PreviousScore    int             `json:"previous_score"`
	PostCount        int             `json:"post_count"`
	TotalEngagement  int             `json:"total_engagement"`
	ConsistencyWeeks int             `json:"consistency_weeks"`
	BestPostURL      string          `json:"best_post_url,omitempty"`
	ScoredAt         time.Time       `json:"scored_at"`
}

// Notifier delivers reports to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, r *Report) error
}

// Manager broadcasts reports to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new notification manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a report to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, r *Report) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
