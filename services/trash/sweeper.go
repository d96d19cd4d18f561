package trashsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/trezcool/temario/core"
)

// Purger permanently removes archived topics older than a cutoff.
type Purger interface {
	PurgeArchived(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper periodically purges topics that stayed archived longer than the retention period.
type Sweeper struct {
	scheduler *gocron.Scheduler
	purger    Purger
	logger    core.Logger
	retention time.Duration
	interval  time.Duration
	nowFunc   func() time.Time // mockable
}

func NewSweeper(conf *core.Config, purger Purger, logger core.Logger) *Sweeper {
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		purger:    purger,
		logger:    logger,
		retention: conf.Trash.Retention,
		interval:  conf.Trash.SweepInterval,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the sweep without blocking. A zero retention or interval disables it.
func (s *Sweeper) Start() error {
	if s.retention <= 0 || s.interval <= 0 {
		s.logger.Info("trash sweeper disabled")
		return nil
	}
	if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.sweep); err != nil {
		return errors.Wrap(err, "scheduling trash sweep")
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

func (s *Sweeper) sweep() {
	if _, err := s.Sweep(context.Background()); err != nil {
		s.logger.Error(fmt.Sprintf("sweeping trash: %v", err), err)
	}
}

// Sweep runs one purge pass and returns how many topics were deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.nowFunc().Add(-s.retention)
	n, err := s.purger.PurgeArchived(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("purged %d archived topic(s)", n), map[string]interface{}{"cutoff": cutoff})
	}
	return n, nil
}
