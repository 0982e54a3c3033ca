package runner

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"miload/internal/metrics"
	"miload/internal/stats"
)

// Pool runs a fixed number of workers inside one process. Each worker owns
// its result buffer and its optional session; nothing is shared between
// workers except the live counters in Stats.
type Pool struct {
	Cfg     Config
	Index   int
	Stats   *stats.Stats
	Updates StatsUpdateChan

	exec  *Executor
	users *UserSimulator
}

// PoolResult holds the per-worker buffers, indexed by worker id.
type PoolResult struct {
	Buffers [][]RequestRecord
	Users   []int
	Delay   time.Duration
	// Elapsed runs from the first worker start to the last join, stagger included.
	Elapsed time.Duration
}

// NewPool builds a pool for process index. Abort markers go to progress.
func NewPool(cfg Config, index int, updates StatsUpdateChan, progress io.Writer) *Pool {
	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}
	s := stats.NewStats()
	exec := NewExecutor(cfg, s, progress)

	return &Pool{
		Cfg:     cfg,
		Index:   index,
		Stats:   s,
		Updates: updates,
		exec:    exec,
		users:   NewUserSimulator(exec, cfg),
	}
}

// StartTickLoop starts a goroutine that pushes stats updates
func (p *Pool) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.SendUpdate()
			}
		}
	}()
}

// Snapshot copies the live counters.
func (p *Pool) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Process:      p.Index,
		Requests:     atomic.LoadUint64(&p.Stats.Requests),
		Success:      atomic.LoadUint64(&p.Stats.Success),
		Aborted:      atomic.LoadUint64(&p.Stats.Aborted),
		Users:        atomic.LoadUint64(&p.Stats.Users),
		Inflight:     atomic.LoadInt64(&p.Stats.Inflight),
		P50ElapsedMs: p.Stats.P50Ms(),
		P90ElapsedMs: p.Stats.P90Ms(),
		P99ElapsedMs: p.Stats.P99Ms(),
		MaxElapsedMs: p.Stats.Elapsed.Max() / 1000,
	}
}

func (p *Pool) SendUpdate() {
	// Non-blocking send
	select {
	case p.Updates <- p.Snapshot():
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run starts every worker with a fixed stagger between starts and blocks
// until all of them are done. Cancelling ctx stops further starts and stops
// running workers at their next iteration boundary; requests in flight are
// never interrupted.
func (p *Pool) Run(ctx context.Context) (*PoolResult, error) {
	if err := p.Cfg.Validate(); err != nil {
		return nil, err
	}

	n := p.Cfg.Workers
	res := &PoolResult{
		Buffers: make([][]RequestRecord, n),
		Users:   make([]int, n),
	}
	if p.Cfg.Mode == ModeSoak {
		res.Delay = DelayFor(n, p.Cfg.Rate)
		log.Debugf("Process %d: per-worker delay %s", p.Index, res.Delay)
	}

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < n; i++ {
		if i > 0 && p.Cfg.Stagger > 0 {
			if err := Pace(ctx, p.Cfg.Stagger); err != nil {
				log.Debugf("Process %d: stopped after starting %d of %d workers", p.Index, i, n)
				break
			}
		}

		wl, err := NewWorkload(p.Cfg.Targets, p.Cfg.Seed+int64(p.Index)*int64(n)+int64(i)+1)
		if err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			switch {
			case p.Cfg.Mode == ModeFlood:
				res.Buffers[id] = p.flood(ctx, id, wl)
			case p.Cfg.SimulateUsers:
				res.Buffers[id], res.Users[id] = p.simulateUsers(ctx, id, wl, res.Delay)
			default:
				res.Buffers[id] = p.soak(ctx, id, wl, res.Delay)
			}
		}(i)
	}
	wg.Wait()
	res.Elapsed = time.Since(start)

	p.SendUpdate()
	return res, nil
}

// flood issues exactly one request without a session.
func (p *Pool) flood(ctx context.Context, id int, wl *Workload) []RequestRecord {
	rec := p.exec.Issue(ctx, nil, wl.Next())
	rec.Worker = id
	return []RequestRecord{rec}
}

// soak issues one request per iteration and sleeps delay between them. The
// duration is only checked after a request, so the worker may overshoot by
// one request-plus-delay interval.
func (p *Pool) soak(ctx context.Context, id int, wl *Workload, delay time.Duration) []RequestRecord {
	var session *http.Client
	if p.Cfg.Session {
		session = NewClient(p.Cfg.Timeout, true)
		defer session.CloseIdleConnections()
	}

	begin := time.Now()
	buf := make([]RequestRecord, 0, 64)
	for i := 0; i < p.Cfg.MaxIterations; i++ {
		rec := p.exec.Issue(ctx, session, wl.Next())
		rec.Worker = id
		buf = append(buf, rec)

		if time.Since(begin) > p.Cfg.Duration {
			break
		}
		if err := Pace(ctx, delay); err != nil {
			break
		}
	}
	return buf
}

// simulateUsers runs one simulated user per iteration; the duration check
// and the iteration cap count users, not requests.
func (p *Pool) simulateUsers(ctx context.Context, id int, wl *Workload, delay time.Duration) ([]RequestRecord, int) {
	begin := time.Now()
	buf := make([]RequestRecord, 0, 64)
	users := 0
	for i := 0; i < p.Cfg.MaxIterations; i++ {
		records, _ := p.users.Simulate(ctx, wl.Next())
		for _, rec := range records {
			rec.Worker = id
			buf = append(buf, rec)
		}
		users++
		p.Stats.AddUser()
		metrics.ObserveUser()

		if time.Since(begin) > p.Cfg.Duration {
			break
		}
		if err := Pace(ctx, delay); err != nil {
			break
		}
	}
	return buf, users
}
