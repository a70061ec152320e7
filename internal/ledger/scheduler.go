package ledger

import (
	"context"
	"time"

	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/settings"

	log "github.com/sirupsen/logrus"
)

// defaultResetInterval is how often the scheduler looks for due resets.
// Per-account reset_date guards make frequent runs harmless.
const defaultResetInterval = time.Hour

// ResetScheduler periodically runs the credit reset job.
type ResetScheduler struct {
	ledger     *Ledger
	interval   time.Duration
	planLimits map[models.Plan]float64
}

// NewResetScheduler constructs a ResetScheduler with the standard plan limits.
func NewResetScheduler(l *Ledger) *ResetScheduler {
	if l == nil {
		return nil
	}
	return &ResetScheduler{
		ledger:   l,
		interval: defaultResetInterval,
		planLimits: map[models.Plan]float64{
			models.PlanPro:   settings.ProCreditLimit,
			models.PlanTeams: settings.TeamsCreditLimit,
		},
	}
}

// Start launches the scheduler loop until the context is cancelled.
func (s *ResetScheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if errReset := s.ledger.ResetAll(ctx, s.planLimits); errReset != nil {
					log.WithError(errReset).Warn("credit reset run failed")
				}
			}
		}
	}()
}
