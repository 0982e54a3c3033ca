package runner

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"miload/internal/metrics"
	"miload/internal/stats"
)

const (
	TCPDialTimeout       = 5 * time.Second
	TCPKeepAliveInterval = 30 * time.Second
	TLSHandshakeTimeout  = 5 * time.Second
	IdleConnTimeout      = 90 * time.Second
)

// Progress markers written when a request is aborted at the connection level.
const (
	MarkerAbort        = "A"
	MarkerSessionAbort = "As"
)

// NewClient builds an HTTP client. With keepAlive false every request opens
// and closes its own connection; with keepAlive true the client is a session
// that reuses connections across calls.
func NewClient(timeout time.Duration, keepAlive bool) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   TCPDialTimeout,
		KeepAlive: TCPKeepAliveInterval,
	}).DialContext
	t.TLSHandshakeTimeout = TLSHandshakeTimeout
	t.IdleConnTimeout = IdleConnTimeout
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.DisableKeepAlives = !keepAlive

	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}

// Executor issues single GET requests and turns them into RequestRecords.
// It is safe for concurrent use; sessions passed to Issue are not shared.
type Executor struct {
	oneShot   *http.Client
	userAgent string
	stats     *stats.Stats

	progressMu sync.Mutex
	progress   io.Writer
}

// NewExecutor returns an executor reporting to s (may be nil) and writing
// abort markers to progress (may be nil).
func NewExecutor(cfg Config, s *stats.Stats, progress io.Writer) *Executor {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Executor{
		oneShot:   NewClient(cfg.Timeout, false),
		userAgent: ua,
		stats:     s,
		progress:  progress,
	}
}

// searchResponse is the part of the response body we care about.
type searchResponse struct {
	Count int               `json:"count"`
	Rows  []json.RawMessage `json:"rows"`
}

// Issue performs one GET against target. A nil session uses a one-shot
// connection. Connection-level failures come back as aborted records; Issue
// never returns an error and never retries.
func (e *Executor) Issue(ctx context.Context, session *http.Client, target string) RequestRecord {
	client := session
	if client == nil {
		client = e.oneShot
	}

	rec := RequestRecord{
		Target: NormalizeTarget(target),
		Start:  time.Now(),
	}

	// Requests are never interrupted by cancellation, only by the client timeout.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, target, nil)
	if err != nil {
		log.WithError(err).Debugf("Could not build request for %s", target)
		return e.abort(rec, session != nil)
	}
	// Accept-Encoding is left to the transport, which then decodes gzip bodies.
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "*/*")
	if session == nil {
		req.Close = true
	} else {
		req.Header.Set("Connection", "keep-alive")
	}

	e.begin()
	resp, err := client.Do(req)
	headersAt := time.Now()
	if err != nil {
		e.finish()
		log.WithError(err).Debugf("Request to %s aborted", rec.Target)
		return e.abort(rec, session != nil)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	e.finish()
	if err != nil {
		log.WithError(err).Debugf("Reading response from %s aborted", rec.Target)
		return e.abort(rec, session != nil)
	}

	rec.End = time.Now()
	rec.Elapsed = headersAt.Sub(rec.Start)
	rec.Status = StatusSuccess
	rec.StatusCode = resp.StatusCode
	rec.Matches = countMatches(body)

	e.observe(rec)
	return rec
}

func (e *Executor) abort(rec RequestRecord, session bool) RequestRecord {
	rec.End = time.Now()
	rec.Status = StatusAborted
	rec.Elapsed = 0
	rec.Matches = 0

	marker := MarkerAbort
	if session {
		marker = MarkerSessionAbort
	}
	if e.progress != nil {
		e.progressMu.Lock()
		io.WriteString(e.progress, marker)
		e.progressMu.Unlock()
	}

	e.observe(rec)
	return rec
}

func (e *Executor) begin() {
	metrics.IncInflight()
	if e.stats != nil {
		e.stats.Begin()
	}
}

func (e *Executor) finish() {
	metrics.DecInflight()
	if e.stats != nil {
		e.stats.Finish()
	}
}

func (e *Executor) observe(rec RequestRecord) {
	metrics.ObserveRequest(rec.Aborted(), rec.Elapsed)
	if e.stats != nil {
		e.stats.AddRequest(rec.Aborted(), rec.Elapsed)
	}
}

// countMatches returns the number of result rows in a search response body.
// Bodies that are not search responses count as zero matches.
func countMatches(body []byte) int {
	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return 0
	}
	return len(sr.Rows)
}

// NormalizeTarget strips the scheme, host and path from target, leaving the
// query that identifies the search. Targets without a query keep their path.
func NormalizeTarget(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[i+1:]
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Path
}
