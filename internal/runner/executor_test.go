package runner

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miload/internal/dummy"
	"miload/internal/stats"
)

func newTestConfig(targets ...string) Config {
	cfg := DefaultConfig()
	cfg.Targets = targets
	cfg.Stagger = 0
	cfg.KeystrokeDelay = 0
	return cfg
}

// closedServerURL returns the address of a server that no longer accepts connections.
func closedServerURL(t *testing.T) string {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}

func TestExecutor_Success(t *testing.T) {
	server := httptest.NewServer(dummy.Handler())
	defer server.Close()

	s := stats.NewStats()
	exec := NewExecutor(newTestConfig(), s, nil)
	rec := exec.Issue(context.Background(), nil, server.URL+"/index.php?max=5&num=1&street=Ma")

	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, http.StatusOK, rec.StatusCode)
	assert.Equal(t, 2, rec.Matches)
	assert.Equal(t, "max=5&num=1&street=Ma", rec.Target)
	assert.GreaterOrEqual(t, int64(rec.Elapsed), int64(0))
	assert.LessOrEqual(t, rec.Elapsed, rec.End.Sub(rec.Start))
	assert.Equal(t, uint64(1), s.Success)
	assert.Equal(t, int64(0), s.Inflight)
}

func TestExecutor_Headers(t *testing.T) {
	headers := make(chan http.Header, 2)
	closes := make(chan bool, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		closes <- r.Close
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte(`{"count":1,"rows":[{"street":"Main"}]}`))
		zw.Close()
	}))
	defer server.Close()

	cfg := newTestConfig()
	cfg.UserAgent = "miload-test/2"
	exec := NewExecutor(cfg, nil, nil)

	rec := exec.Issue(context.Background(), nil, server.URL+"/index.php?street=Main")
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, 1, rec.Matches)
	h := <-headers
	assert.Equal(t, "*/*", h.Get("Accept"))
	assert.Equal(t, "gzip", h.Get("Accept-Encoding"))
	assert.Equal(t, "miload-test/2", h.Get("User-Agent"))
	assert.True(t, <-closes)

	session := NewClient(cfg.Timeout, true)
	defer session.CloseIdleConnections()
	rec = exec.Issue(context.Background(), session, server.URL+"/index.php?street=Main")
	assert.Equal(t, 1, rec.Matches)
	h = <-headers
	assert.Equal(t, "keep-alive", h.Get("Connection"))
	assert.Equal(t, "gzip", h.Get("Accept-Encoding"))
	assert.False(t, <-closes)
}

func TestExecutor_SessionReused(t *testing.T) {
	var (
		mu    sync.Mutex
		conns []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		conns = append(conns, r.RemoteAddr)
		mu.Unlock()
		w.Write([]byte(`{"count":1,"rows":[{}]}`))
	}))
	defer server.Close()

	exec := NewExecutor(newTestConfig(), nil, nil)
	session := NewClient(DefaultTimeout, true)
	defer session.CloseIdleConnections()

	for i := 0; i < 3; i++ {
		rec := exec.Issue(context.Background(), session, server.URL+"/?street=x")
		require.Equal(t, StatusSuccess, rec.Status)
		assert.Equal(t, 1, rec.Matches)
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, conns, 3)
	assert.Equal(t, conns[0], conns[1])
	assert.Equal(t, conns[1], conns[2])
}

func TestExecutor_AbortMarkers(t *testing.T) {
	target := closedServerURL(t) + "/index.php?street=Main"

	var progress bytes.Buffer
	s := stats.NewStats()
	exec := NewExecutor(newTestConfig(), s, &progress)

	rec := exec.Issue(context.Background(), nil, target)
	assert.True(t, rec.Aborted())
	assert.Zero(t, rec.Elapsed)
	assert.Zero(t, rec.Matches)
	assert.Equal(t, "A", progress.String())

	session := NewClient(DefaultTimeout, true)
	rec = exec.Issue(context.Background(), session, target)
	assert.True(t, rec.Aborted())
	assert.Equal(t, "AAs", progress.String())

	assert.Equal(t, uint64(2), s.Aborted)
	assert.Equal(t, uint64(0), s.Success)
}

func TestExecutor_NonSearchBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("oops"))
	}))
	defer server.Close()

	rec := NewExecutor(newTestConfig(), nil, nil).Issue(context.Background(), nil, server.URL+"/?street=x")
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, http.StatusInternalServerError, rec.StatusCode)
	assert.Zero(t, rec.Matches)
}

func TestExecutor_CancelledContextStillIssues(t *testing.T) {
	server := httptest.NewServer(dummy.Handler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := NewExecutor(newTestConfig(), nil, nil).Issue(ctx, nil, server.URL+"/index.php?street=Main")
	assert.Equal(t, StatusSuccess, rec.Status)
}

func TestNormalizeTarget(t *testing.T) {
	tests := map[string]string{
		"https://address.mivoter.org/index.php?max=5&num=1&street=Main St": "max=5&num=1&street=Main St",
		"http://localhost:8080/health":                                     "/health",
		"http://localhost:8080/?":                                          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeTarget(in), in)
	}
}
