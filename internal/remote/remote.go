// Package remote starts load instances on other hosts over ssh and collects
// whatever they print. There is no acknowledgement or retry: a host that
// fails simply contributes empty output.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"miload/internal/runner"
)

// DefaultCommand is the load binary invoked on each host.
const DefaultCommand = "miload"

// CommandRunner runs a command to completion and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct {
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = r.Stderr
	err := cmd.Run()
	return stdout.Bytes(), err
}

// Output is what one host printed.
type Output struct {
	Host   string
	Stdout string
}

func (o Output) String() string {
	return o.Host + ":::" + o.Stdout
}

// Summary decodes the run summary a remote instance prints in remote mode.
func (o Output) Summary() (*runner.RunSummary, error) {
	out := strings.TrimSpace(o.Stdout)
	if i := strings.LastIndexByte(out, '\n'); i >= 0 {
		out = out[i+1:]
	}
	if out == "" {
		return nil, errors.Errorf("%s: no output", o.Host)
	}
	var s runner.RunSummary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		return nil, errors.Wrapf(err, "%s: malformed summary", o.Host)
	}
	return &s, nil
}

type Orchestrator struct {
	Runner CommandRunner
	// SSH is the ssh client binary.
	SSH string
	// Command is the load binary on the remote host.
	Command string
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		Runner:  ExecRunner{Stderr: os.Stderr},
		SSH:     "ssh",
		Command: DefaultCommand,
	}
}

// Run starts `ssh <host> <command> <args...>` on every host concurrently and
// waits for all of them. Outputs are returned in host order.
func (o *Orchestrator) Run(ctx context.Context, hosts []string, args []string) []Output {
	outputs := make([]Output, len(hosts))
	var g errgroup.Group
	for i, host := range hosts {
		i, host := i, host
		outputs[i].Host = host
		g.Go(func() error {
			sshArgs := append([]string{host, o.Command}, args...)
			log.Debugf("Starting remote instance: %s %s", o.SSH, strings.Join(sshArgs, " "))
			stdout, err := o.Runner.Run(ctx, o.SSH, sshArgs...)
			if err != nil {
				log.WithError(err).Debugf("Remote instance on %s failed", host)
			}
			outputs[i].Stdout = string(stdout)
			return nil
		})
	}
	g.Wait()
	return outputs
}

// ForwardArgs renders the command line a remote instance runs with. Remote
// instances always report in remote mode. inputFile is a path on the remote
// host and is omitted when empty.
func ForwardArgs(cfg runner.Config, inputFile string) []string {
	args := []string{
		"--remote",
		"--workers", strconv.Itoa(cfg.Workers),
		"--processes", strconv.Itoa(cfg.Processes),
		"--duration", cfg.Duration.String(),
	}
	if cfg.Mode == runner.ModeSoak {
		args = append(args, "--soak", strconv.FormatFloat(cfg.Rate, 'g', -1, 64))
	}
	if cfg.Session {
		args = append(args, "--session")
	}
	if cfg.SimulateUsers {
		args = append(args, "--user")
	}
	if inputFile != "" {
		args = append(args, "--inputfile", inputFile)
	}
	return args
}

// ReadHosts reads one user@host per line. Blank lines and lines starting
// with # are skipped.
func ReadHosts(r io.Reader) ([]string, error) {
	var hosts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hosts = append(hosts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading hosts")
	}
	return hosts, nil
}

func ReadHostFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening host file")
	}
	defer f.Close()
	return ReadHosts(f)
}
