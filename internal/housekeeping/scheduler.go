package housekeeping

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs housekeeping at 02:00 every day.
const DefaultSchedule = "0 2 * * *"

const runTimeout = 30 * time.Minute

// Scheduler runs the Runner on a cron schedule inside the server process.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
}

// NewScheduler registers runner under schedule. Overlapping runs are
// skipped.
func NewScheduler(runner *Runner, schedule string) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	s := &Scheduler{cron: c, runner: runner}
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return nil, errors.Wrapf(err, "invalid housekeeping schedule %q", schedule)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	s.runner.Run(ctx, false)
}

func (s *Scheduler) Start() {
	s.runner.log().Info("housekeeping scheduled", map[string]interface{}{"entries": len(s.cron.Entries())})
	s.cron.Start()
}

// Stop prevents new runs and waits for a running one to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
