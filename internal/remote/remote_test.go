package remote

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miload/internal/runner"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	out   map[string]string
	fail  map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	host := args[0]
	if f.fail[host] {
		return []byte("partial"), errors.New("exit status 255")
	}
	return []byte(f.out[host]), nil
}

func TestOrchestrator_Run(t *testing.T) {
	fake := &fakeRunner{
		out:  map[string]string{"a@one": `{"user_rate":12.5}` + "\n", "b@two": "hello"},
		fail: map[string]bool{"c@three": true},
	}
	o := &Orchestrator{Runner: fake, SSH: "ssh", Command: "bin/miload"}

	outputs := o.Run(context.Background(), []string{"a@one", "b@two", "c@three"}, []string{"--remote"})
	require.Len(t, outputs, 3)
	assert.Equal(t, "a@one", outputs[0].Host)
	assert.Equal(t, "b@two:::hello", outputs[1].String())
	assert.Equal(t, "c@three:::partial", outputs[2].String())

	require.Len(t, fake.calls, 3)
	for _, call := range fake.calls {
		assert.Equal(t, "ssh", call[0])
		assert.Equal(t, []string{"bin/miload", "--remote"}, call[2:])
	}

	s, err := outputs[0].Summary()
	require.NoError(t, err)
	assert.Equal(t, 12.5, s.UserRate)

	_, err = outputs[1].Summary()
	assert.Error(t, err)
	_, err = Output{Host: "x"}.Summary()
	assert.Error(t, err)
}

func TestForwardArgs(t *testing.T) {
	cfg := runner.DefaultConfig()
	cfg.Mode = runner.ModeSoak
	cfg.Rate = 2.5
	cfg.Workers = 20
	cfg.Processes = 3
	cfg.Duration = 90 * time.Second
	cfg.SimulateUsers = true

	args := ForwardArgs(cfg, "MiLoad/addresses")
	assert.Equal(t, "--remote --workers 20 --processes 3 --duration 1m30s --soak 2.5 --user --inputfile MiLoad/addresses",
		strings.Join(args, " "))

	args = ForwardArgs(runner.DefaultConfig(), "")
	assert.NotContains(t, args, "--soak")
	assert.NotContains(t, args, "--inputfile")
}

func TestReadHosts(t *testing.T) {
	hosts, err := ReadHosts(strings.NewReader("alice@one\n\n# spare\n  bob@two  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@one", "bob@two"}, hosts)

	_, err = ReadHostFile("/nonexistent/hosts")
	assert.Error(t, err)
}
