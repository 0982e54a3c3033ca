package runner

import (
	"time"

	"github.com/pkg/errors"
)

// Mode selects the workload shape of a run.
type Mode string

const (
	ModeFlood Mode = "flood"
	ModeSoak  Mode = "soak"
)

const (
	DefaultMaxIterations  = 1000
	DefaultStagger        = 9 * time.Millisecond
	DefaultKeystrokeDelay = 300 * time.Millisecond
	DefaultTimeout        = 30 * time.Second
	DefaultUserAgent      = "miload/1.0"
	DefaultNumField       = "num"
	DefaultStreetField    = "street"
)

// Config is threaded through every entry point of the engine. It crosses the
// process boundary as JSON, so every field must survive a round trip.
type Config struct {
	Targets []string `json:"targets"`

	Mode      Mode `json:"mode"`
	Processes int  `json:"processes"`
	Workers   int  `json:"workers"`

	// Soak
	Rate          float64       `json:"rate"`
	Duration      time.Duration `json:"duration"`
	Session       bool          `json:"session"`
	SimulateUsers bool          `json:"simulate_users"`
	MaxIterations int           `json:"max_iterations"`

	Stagger        time.Duration `json:"stagger"`
	KeystrokeDelay time.Duration `json:"keystroke_delay"`
	Timeout        time.Duration `json:"timeout"`
	UserAgent      string        `json:"user_agent"`
	NumField       string        `json:"num_field"`
	StreetField    string        `json:"street_field"`

	// FanoutTimeout bounds the wait for process summaries. Zero waits forever.
	FanoutTimeout time.Duration `json:"fanout_timeout"`
	OutPrefix     string        `json:"out_prefix"`
	Seed          int64         `json:"seed"`
	Verbose       bool          `json:"verbose"`
}

// DefaultConfig returns a single process, ten worker flood against no targets.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeFlood,
		Processes:      1,
		Workers:        10,
		Duration:       5 * time.Second,
		MaxIterations:  DefaultMaxIterations,
		Stagger:        DefaultStagger,
		KeystrokeDelay: DefaultKeystrokeDelay,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		NumField:       DefaultNumField,
		StreetField:    DefaultStreetField,
	}
}

// Validate reports configuration failures. They are fatal and must surface
// before any worker starts.
func (c Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("no targets configured")
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Processes < 1 {
		return errors.Errorf("processes must be at least 1, got %d", c.Processes)
	}
	switch c.Mode {
	case ModeFlood:
	case ModeSoak:
		if c.Rate <= 0 {
			return errors.Errorf("soak rate must be positive, got %g", c.Rate)
		}
		if c.Duration <= 0 {
			return errors.Errorf("soak duration must be positive, got %s", c.Duration)
		}
		if c.MaxIterations < 1 {
			return errors.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
		}
	default:
		return errors.Errorf("unknown mode %q", c.Mode)
	}
	if c.Stagger < 0 || c.KeystrokeDelay < 0 || c.Timeout < 0 || c.FanoutTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// Status is the outcome of one request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusAborted Status = "aborted"
)

// RequestRecord is created once per request and never modified afterwards.
type RequestRecord struct {
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Elapsed time.Duration `json:"elapsed"`
	Target  string        `json:"url"`
	Status  Status        `json:"status"`
	// StatusCode is the HTTP status; zero for aborted requests.
	StatusCode int `json:"status_code"`
	Matches    int `json:"num_matches"`
	Worker     int `json:"worker"`
}

func (r RequestRecord) Aborted() bool {
	return r.Status == StatusAborted
}

// ProcessSummary is the only datum a process sends back to the coordinator.
type ProcessSummary struct {
	Index       int           `json:"index"`
	ResultCount int           `json:"result_count"`
	Aborted     int           `json:"aborted"`
	Users       int           `json:"users"`
	Elapsed     time.Duration `json:"elapsed"`
	// UserRate is simulated users per minute, derived from Users and Elapsed.
	UserRate float64 `json:"user_rate"`
}

// RunSummary is the terminal artifact of a run.
type RunSummary struct {
	ID                string        `json:"id"`
	Mode              Mode          `json:"mode"`
	SimulateUsers     bool          `json:"simulate_users"`
	Processes         int           `json:"processes"`
	Workers           int           `json:"workers"`
	SimultaneousUsers int           `json:"simultaneous_users"`
	TotalResults      int           `json:"total_results"`
	TotalAborted      int           `json:"total_aborted"`
	TotalUsers        int           `json:"total_users"`
	Elapsed           time.Duration `json:"elapsed"`
	UserRate          float64       `json:"user_rate"`
	Missing           []int         `json:"missing,omitempty"`
}

// StatsSnapshot is sent over the update channel while a pool runs.
type StatsSnapshot struct {
	Process  int    `json:"process"`
	Requests uint64 `json:"requests"`
	Success  uint64 `json:"success"`
	Aborted  uint64 `json:"aborted"`
	Users    uint64 `json:"users"`
	Inflight int64  `json:"inflight"`

	P50ElapsedMs float64 `json:"p50_ms"`
	P90ElapsedMs float64 `json:"p90_ms"`
	P99ElapsedMs float64 `json:"p99_ms"`
	MaxElapsedMs int64   `json:"max_ms"`
}

// AbortRate is the percentage of requests that were aborted.
func (s StatsSnapshot) AbortRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Aborted) / float64(s.Requests) * 100
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot
