package fanout

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"miload/internal/runner"
)

// ExecSpawner re-executes a binary (by default the running one) with the
// hidden worker command. The child gets its ChildRequest on stdin and reports
// through envelopes on stdout; its stderr is passed through.
type ExecSpawner struct {
	Path   string
	Args   []string
	Env    []string
	Stderr io.Writer
	// WaitDelay is how long a child may take to exit after cancellation
	// before it is killed.
	WaitDelay time.Duration
}

func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{
		Args:   []string{"worker"},
		Stderr: os.Stderr,
	}
}

func (s *ExecSpawner) Spawn(ctx context.Context, index int, cfg runner.Config, updates runner.StatsUpdateChan, done chan<- Report) error {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return errors.Wrap(err, "locating executable")
		}
		path = exe
	}

	payload, err := json.Marshal(ChildRequest{Index: index, Config: cfg})
	if err != nil {
		return errors.Wrap(err, "encoding child request")
	}

	cmd := exec.CommandContext(ctx, path, s.Args...)
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = s.Stderr
	// Children stop at their next iteration boundary on interrupt.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = s.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = cfg.Timeout + 5*time.Second
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "creating stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting %s", path)
	}
	log.Debugf("Started process %d (pid %d)", index, cmd.Process.Pid)

	go func() {
		summary, readErr := ReadEnvelopes(stdout, index, updates)
		if readErr != nil {
			// The child blocks on a full pipe unless the rest is read.
			io.Copy(io.Discard, stdout)
		}
		waitErr := cmd.Wait()
		if summary != nil {
			if waitErr != nil {
				log.WithError(waitErr).Warnf("Process %d exited uncleanly after reporting", index)
			}
			done <- Report{Index: index, Summary: summary}
			return
		}
		if waitErr != nil {
			readErr = errors.Wrapf(readErr, "%v", waitErr)
		}
		done <- Report{Index: index, Err: readErr}
	}()
	return nil
}

// LocalSpawner runs every pool in a goroutine of the current process. There
// is no process isolation; it exists for tests and single-binary runs.
type LocalSpawner struct {
	Progress io.Writer
}

func (s LocalSpawner) Spawn(ctx context.Context, index int, cfg runner.Config, updates runner.StatsUpdateChan, done chan<- Report) error {
	go func() {
		summary, err := RunProcess(ctx, index, cfg, updates, s.Progress)
		if err != nil {
			done <- Report{Index: index, Err: err}
			return
		}
		done <- Report{Index: index, Summary: &summary}
	}()
	return nil
}
