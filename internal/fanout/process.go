package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"miload/internal/runner"
	"miload/internal/storage"
)

// TickInterval is how often a running process publishes progress.
const TickInterval = 200 * time.Millisecond

// RunProcess runs one worker pool, writes its raw results when cfg.OutPrefix
// is set and returns the process summary.
func RunProcess(ctx context.Context, index int, cfg runner.Config, updates runner.StatsUpdateChan, progress io.Writer) (runner.ProcessSummary, error) {
	pool := runner.NewPool(cfg, index, updates, progress)

	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.StartTickLoop(tickCtx, TickInterval)

	res, err := pool.Run(ctx)
	if err != nil {
		return runner.ProcessSummary{}, err
	}

	records := runner.Merge(res.Buffers)
	if cfg.OutPrefix != "" {
		path := ResultsPath(cfg.OutPrefix, index)
		if err := storage.ExportCSV(records, path); err != nil {
			log.WithError(err).Warnf("Could not write results of process %d", index)
		} else {
			log.Debugf("Wrote %d results to %s", len(records), path)
		}
	}

	d := runner.Describe(records)
	log.Debugf("Process %d: %d results, %d aborted, mean %.4fs, sd %.4fs, matches %.0f/%.1f/%.0f",
		index, d.Count, d.Aborted, d.MeanElapsed, d.StdElapsed, d.MinMatches, d.MeanMatches, d.MaxMatches)

	return runner.Summarize(index, res), nil
}

// ResultsPath names the raw results file of one process.
func ResultsPath(prefix string, index int) string {
	return fmt.Sprintf("%s-%d.csv", prefix, index)
}

// ChildRequest is what the coordinator writes to a child's stdin.
type ChildRequest struct {
	Index  int           `json:"index"`
	Config runner.Config `json:"config"`
}

const (
	EnvelopeTick    = "tick"
	EnvelopeSummary = "summary"
	EnvelopeError   = "error"
)

// Envelope is one line of a child's stdout.
type Envelope struct {
	Type    string                 `json:"type"`
	Tick    *runner.StatsSnapshot  `json:"tick,omitempty"`
	Summary *runner.ProcessSummary `json:"summary,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// RunChild is the entry point of a spawned process: it reads a ChildRequest
// from in, streams tick envelopes to out while the pool runs and finishes
// with exactly one summary or error envelope.
func RunChild(ctx context.Context, in io.Reader, out io.Writer, progress io.Writer) error {
	var req ChildRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return errors.Wrap(err, "decoding child request")
	}

	enc := json.NewEncoder(out)
	updates := make(runner.StatsUpdateChan, 16)
	stop := make(chan struct{})
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for {
			select {
			case snap := <-updates:
				enc.Encode(Envelope{Type: EnvelopeTick, Tick: &snap})
			case <-stop:
				return
			}
		}
	}()

	summary, err := RunProcess(ctx, req.Index, req.Config, updates, progress)
	close(stop)
	<-forwarded

	if err != nil {
		if encErr := enc.Encode(Envelope{Type: EnvelopeError, Error: err.Error()}); encErr != nil {
			log.WithError(encErr).Error("Could not report failure")
		}
		return err
	}
	return errors.Wrap(enc.Encode(Envelope{Type: EnvelopeSummary, Summary: &summary}), "writing summary")
}

// ReadEnvelopes consumes a child's stdout until EOF. Ticks are forwarded to
// updates without blocking; the summary is returned.
func ReadEnvelopes(r io.Reader, index int, updates runner.StatsUpdateChan) (*runner.ProcessSummary, error) {
	dec := json.NewDecoder(r)
	var summary *runner.ProcessSummary
	for {
		var env Envelope
		err := dec.Decode(&env)
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, errors.Wrap(err, "malformed process output")
		}

		switch env.Type {
		case EnvelopeTick:
			if env.Tick == nil || updates == nil {
				continue
			}
			snap := *env.Tick
			snap.Process = index
			select {
			case updates <- snap:
			default:
			}
		case EnvelopeSummary:
			if env.Summary == nil {
				return nil, errors.New("empty summary envelope")
			}
			s := *env.Summary
			s.Index = index
			summary = &s
		case EnvelopeError:
			return nil, errors.New(env.Error)
		default:
			log.Debugf("Ignoring unknown envelope %q from process %d", env.Type, index)
		}
	}
	if summary == nil {
		return nil, errors.New("process exited without a summary")
	}
	return summary, nil
}
