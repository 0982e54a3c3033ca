package runner

import (
	"context"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const (
	// MinPrefix is the shortest free-text prefix a simulated user types
	// before the first request.
	MinPrefix = 4
	// MaxKeystrokes bounds the requests issued per simulated user.
	MaxKeystrokes = 8
)

// Steps returns how many requests a user typing street issues: one per
// keystroke beyond the minimum prefix, between 1 and MaxKeystrokes.
func Steps(street string) int {
	n := utf8.RuneCountInString(street) - (MinPrefix - 1)
	if n < 1 {
		return 1
	}
	if n > MaxKeystrokes {
		return MaxKeystrokes
	}
	return n
}

// UserSimulator reproduces a user narrowing a search by typing it one
// character at a time.
type UserSimulator struct {
	exec *Executor
	cfg  Config
}

func NewUserSimulator(exec *Executor, cfg Config) *UserSimulator {
	return &UserSimulator{exec: exec, cfg: cfg}
}

// Simulate issues one request per partial string of target's free text and
// returns the records in issuance order with the number of steps taken.
// Every user gets its own connection, closed when the user is done.
func (u *UserSimulator) Simulate(ctx context.Context, target string) ([]RequestRecord, int) {
	session := NewClient(u.cfg.Timeout, true)
	defer session.CloseIdleConnections()

	q, err := ParseQuery(target, u.cfg.NumField, u.cfg.StreetField)
	if err != nil {
		log.WithError(err).Debug("Simulating single request for unparseable target")
		rec := u.exec.Issue(ctx, session, target)
		Pace(ctx, u.cfg.KeystrokeDelay)
		return []RequestRecord{rec}, 1
	}

	steps := Steps(q.Street)
	records := make([]RequestRecord, 0, steps)
	for i := 0; i < steps; i++ {
		records = append(records, u.exec.Issue(ctx, session, q.Partial(MinPrefix+i)))
		if err := Pace(ctx, u.cfg.KeystrokeDelay); err != nil {
			break
		}
	}
	return records, len(records)
}
