package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"miload/internal/fanout"
	"miload/internal/metrics"
	"miload/internal/remote"
	"miload/internal/runner"
	"miload/internal/storage"
	"miload/internal/tui/app"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

// Options describes one invocation of the load generator.
type Options struct {
	Cfg runner.Config

	// Output selects the summary format. Remote instances always use JSON.
	Output string
	Remote bool
	TUI    bool
	// InProcess runs every pool in this process instead of forking workers.
	InProcess   bool
	MetricsAddr string

	// HistoryPath is the bbolt file runs are recorded in; empty disables history.
	HistoryPath string

	// Hosts get a remote instance each, started with RemoteArgs.
	Hosts        []string
	RemoteArgs   []string
	Orchestrator *remote.Orchestrator

	// Spawner overrides the process spawner.
	Spawner fanout.Spawner

	Stdout io.Writer
	Stderr io.Writer
}

func (o *Options) setDefaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Remote {
		o.Output = OutputJSON
		o.TUI = false
	}
	if o.Output == "" {
		o.Output = OutputText
	}
}

func (o *Options) human() bool {
	return o.Output == OutputText && !o.TUI
}

// Report is the machine readable result of a run.
type Report struct {
	*runner.RunSummary
	Remote []RemoteReport `json:"remote,omitempty"`
}

type RemoteReport struct {
	Host   string `json:"host"`
	Output string `json:"output"`
}

// Run fans out the configured load, prints the summary and records it in
// the run history. The summary is returned even when some processes failed.
func Run(ctx context.Context, opts Options) (*runner.RunSummary, error) {
	opts.setDefaults()
	cfg := opts.Cfg
	if opts.Output != OutputText && opts.Output != OutputJSON {
		return nil, errors.Errorf("unknown output format %q", opts.Output)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if opts.human() {
		printHeader(opts.Stdout, cfg, len(opts.Hosts))
	}

	store := openHistory(opts.HistoryPath)
	if store != nil {
		defer store.Close()
	}

	remoteDone := startRemote(ctx, opts)

	updates := make(runner.StatsUpdateChan, 100)
	coordinator := fanout.NewCoordinator(spawner(ctx, opts), updates)

	execute := func(ctx context.Context) (*runner.RunSummary, error) {
		summary, err := coordinator.Run(ctx, cfg)
		if summary != nil && store != nil {
			if saveErr := store.Save(storage.NewHistoryItem(cfg, summary, err)); saveErr != nil {
				log.WithError(saveErr).Warn("Could not record run history")
			}
		}
		return summary, err
	}

	var (
		summary *runner.RunSummary
		err     error
	)
	switch {
	case opts.TUI:
		summary, err = app.Run(ctx, cfg, updates, store, execute)
	case opts.human():
		done := make(chan struct{})
		monitored := make(chan struct{})
		go func() {
			defer close(monitored)
			monitor(opts.Stdout, cfg, updates, done)
		}()
		summary, err = execute(ctx)
		close(done)
		<-monitored
	default:
		summary, err = execute(ctx)
	}

	outputs := <-remoteDone

	if summary == nil {
		return nil, err
	}
	if err != nil {
		log.WithError(err).Warn("Run finished with errors")
	}
	if printErr := printReport(opts, summary, outputs); printErr != nil && err == nil {
		err = printErr
	}
	return summary, err
}

func spawner(ctx context.Context, opts Options) fanout.Spawner {
	if opts.Spawner != nil {
		return opts.Spawner
	}

	var progress io.Writer
	if opts.human() {
		progress = opts.Stderr
	}

	if opts.InProcess {
		if opts.MetricsAddr != "" {
			go func() {
				if err := metrics.Serve(ctx, opts.MetricsAddr); err != nil {
					log.WithError(err).Warn("Metrics endpoint stopped")
				}
			}()
		}
		return fanout.LocalSpawner{Progress: progress}
	}

	s := fanout.NewExecSpawner()
	if opts.MetricsAddr != "" {
		s.Args = append(s.Args, "--metrics-addr", opts.MetricsAddr)
	}
	if opts.TUI {
		s.Stderr = io.Discard
	}
	return s
}

func openHistory(path string) *storage.Store {
	if path == "" {
		return nil
	}
	store, err := storage.NewStore(path)
	if err != nil {
		log.WithError(err).Warn("Run history disabled")
		return nil
	}
	return store
}

func startRemote(ctx context.Context, opts Options) <-chan []remote.Output {
	done := make(chan []remote.Output, 1)
	if len(opts.Hosts) == 0 {
		done <- nil
		return done
	}
	orch := opts.Orchestrator
	if orch == nil {
		orch = remote.NewOrchestrator()
	}
	go func() {
		done <- orch.Run(ctx, opts.Hosts, opts.RemoteArgs)
	}()
	return done
}

func printHeader(w io.Writer, cfg runner.Config, hosts int) {
	fmt.Fprintf(w, "\nSTARTING MILOAD\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Targets    : %d\n", len(cfg.Targets))
	fmt.Fprintf(w, "Users      : %d processes x %d workers\n", cfg.Processes, cfg.Workers)
	switch cfg.Mode {
	case runner.ModeSoak:
		fmt.Fprintf(w, "Method     : soak at %g requests/s for %s\n", cfg.Rate, cfg.Duration)
		fmt.Fprintf(w, "Delay      : %.2fs\n", runner.DelayFor(cfg.Workers, cfg.Rate).Seconds())
		if cfg.SimulateUsers {
			fmt.Fprintf(w, "Simulation : users typing, %s between keystrokes\n", cfg.KeystrokeDelay)
		}
		if cfg.Session {
			fmt.Fprintf(w, "Session    : persistent per worker\n")
		}
	default:
		fmt.Fprintf(w, "Method     : flood\n")
	}
	if hosts > 0 {
		fmt.Fprintf(w, "Remote     : %d host(s)\n", hosts)
	}
	fmt.Fprintf(w, "======================================================================\n\n")
}

// monitor prints a progress line from process snapshots until done closes.
func monitor(w io.Writer, cfg runner.Config, updates runner.StatsUpdateChan, done <-chan struct{}) {
	set := runner.SnapshotSet{}
	start := time.Now()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case snap := <-updates:
			set.Add(snap)
		case <-ticker.C:
			fmt.Fprint(w, progressLine(cfg, set, time.Since(start)))
		case <-done:
			fmt.Fprint(w, progressLine(cfg, set, time.Since(start)))
			fmt.Fprintln(w)
			return
		}
	}
}

func progressLine(cfg runner.Config, set runner.SnapshotSet, elapsed time.Duration) string {
	t := set.Total()
	var pct float64
	if cfg.Mode == runner.ModeSoak && cfg.Duration > 0 {
		pct = elapsed.Seconds() / cfg.Duration.Seconds()
	} else if n := cfg.Processes * cfg.Workers; n > 0 {
		pct = float64(t.Requests) / float64(n)
	}
	if pct > 1.0 {
		pct = 1.0
	}
	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(t.Requests) / elapsed.Seconds()
	}
	return fmt.Sprintf("\r%s %3.0f%% | %s | Inf: %3d | RPS: %.1f | OK: %d | Aborted: %d | Users: %d",
		progressBar(pct, 20), pct*100,
		elapsed.Round(time.Second),
		t.Inflight, rps, t.Success, t.Aborted, t.Users,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printReport(opts Options, summary *runner.RunSummary, outputs []remote.Output) error {
	if opts.Output == OutputJSON {
		report := Report{RunSummary: summary}
		for _, o := range outputs {
			report.Remote = append(report.Remote, RemoteReport{Host: o.Host, Output: o.Stdout})
		}
		return errors.Wrap(json.NewEncoder(opts.Stdout).Encode(report), "writing report")
	}

	printSummary(opts.Stdout, summary)
	for _, o := range outputs {
		fmt.Fprintf(opts.Stdout, "***%s\n", o)
		if s, err := o.Summary(); err == nil {
			log.Debugf("%s: %d results, %.0f users per minute", o.Host, s.TotalResults, s.UserRate)
		} else {
			log.WithError(err).Debug("Unreadable remote output")
		}
	}
	return nil
}

func printSummary(w io.Writer, s *runner.RunSummary) {
	fmt.Fprintf(w, "\nOVERALL STATISTICS\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Simultaneous users : %d\n", s.SimultaneousUsers)
	fmt.Fprintf(w, "Total results      : %d\n", s.TotalResults)
	fmt.Fprintf(w, "Aborted            : %d\n", s.TotalAborted)
	fmt.Fprintf(w, "Elapsed time       : %s\n", s.Elapsed.Round(time.Millisecond))
	if s.SimulateUsers {
		fmt.Fprintf(w, "Users simulated    : %d\n", s.TotalUsers)
		fmt.Fprintf(w, "Total user rate    : %.0f per minute\n", s.UserRate)
	}
	if len(s.Missing) > 0 {
		fmt.Fprintf(w, "Missing processes  : %v\n", s.Missing)
	}
	fmt.Fprintf(w, "Run id             : %s\n", s.ID)
	fmt.Fprintf(w, "======================================================================\n")
}
