package service

import (
	"context"
	"fmt"

	"github.com/labstack/gommon/log"
	"github.com/robfig/cron/v3"
)

// Completer stores completed for confirmed reservations that have ended.
type Completer interface {
	CompleteElapsed(ctx context.Context) (int64, error)
}

// CompletionJob periodically materialises the completed status.  Reads
// derive it regardless, so a missed run only delays what storage shows.
type CompletionJob struct {
	completer Completer
	cron      *cron.Cron
}

// NewCompletionJob schedules RunOnce on spec, a standard five field cron
// expression or a descriptor such as "@every 5m".
func NewCompletionJob(c Completer, spec string) (*CompletionJob, error) {
	j := &CompletionJob{completer: c, cron: cron.New()}
	if _, err := j.cron.AddFunc(spec, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			log.Errorf("%v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("completion job: invalid schedule %q: %w", spec, err)
	}
	return j, nil
}

// RunOnce performs one sweep.
func (j *CompletionJob) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.completer.CompleteElapsed(ctx)
	if err != nil {
		return 0, fmt.Errorf("completion job: %w", err)
	}
	if n > 0 {
		log.Infof("Cron Job: marked %d reservations as completed", n)
	}
	return n, nil
}

// Start runs the schedule in its own goroutine.
func (j *CompletionJob) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep.
func (j *CompletionJob) Stop() { <-j.cron.Stop().Done() }
