// Package fanout runs independent worker pools in separate OS processes and
// folds the one summary each process reports into a run summary.
package fanout

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"miload/internal/runner"
)

// ErrMissingSummary is returned when the fan-out timeout expires before every
// process has reported.
var ErrMissingSummary = errors.New("missing process summary")

// Report is the single message a process sends on the completion channel.
// Exactly one of Summary and Err is set.
type Report struct {
	Index   int
	Summary *runner.ProcessSummary
	Err     error
}

// Spawner starts one process. Spawn returns once the process is started; the
// process must later send exactly one Report on done. Progress snapshots may
// be sent on updates without blocking.
type Spawner interface {
	Spawn(ctx context.Context, index int, cfg runner.Config, updates runner.StatsUpdateChan, done chan<- Report) error
}

type Coordinator struct {
	Spawner Spawner
	Updates runner.StatsUpdateChan
}

func NewCoordinator(spawner Spawner, updates runner.StatsUpdateChan) *Coordinator {
	if updates == nil {
		updates = make(runner.StatsUpdateChan, 100)
	}
	return &Coordinator{Spawner: spawner, Updates: updates}
}

// Run starts cfg.Processes processes and blocks until each has reported.
// With cfg.FanoutTimeout set the wait is bounded; processes that have not
// reported by then are listed in RunSummary.Missing and ErrMissingSummary is
// returned alongside the partial summary. Process failures are collected and
// returned with the summary of the processes that did report.
func (c *Coordinator) Run(ctx context.Context, cfg runner.Config) (*runner.RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	n := cfg.Processes
	done := make(chan Report, n)
	for i := 0; i < n; i++ {
		if err := c.Spawner.Spawn(ctx, i, cfg, c.Updates, done); err != nil {
			done <- Report{Index: i, Err: err}
		}
	}
	log.Debugf("Started %d process(es) with %d worker(s) each", n, cfg.Workers)

	var timeout <-chan time.Time
	if cfg.FanoutTimeout > 0 {
		timer := time.NewTimer(cfg.FanoutTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var (
		result    *multierror.Error
		summaries []runner.ProcessSummary
		reported  = make(map[int]bool, n)
	)
wait:
	for len(reported) < n {
		select {
		case r := <-done:
			if reported[r.Index] {
				log.Warnf("Ignoring duplicate report from process %d", r.Index)
				continue
			}
			reported[r.Index] = true
			if r.Err != nil {
				log.WithError(r.Err).Warnf("Process %d failed", r.Index)
				result = multierror.Append(result, errors.Wrapf(r.Err, "process %d", r.Index))
				continue
			}
			summaries = append(summaries, *r.Summary)
		case <-timeout:
			break wait
		}
	}

	summary := runner.Combine(cfg, summaries)
	for i := 0; i < n; i++ {
		if !reported[i] {
			summary.Missing = append(summary.Missing, i)
		}
	}
	if len(summary.Missing) > 0 {
		sort.Ints(summary.Missing)
		result = multierror.Append(result, errors.Wrapf(ErrMissingSummary, "after %s, processes %v", cfg.FanoutTimeout, summary.Missing))
	}
	return summary, result.ErrorOrNil()
}
