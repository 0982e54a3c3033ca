package runner

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Workload draws targets uniformly at random, with replacement, from a
// read-only list. A Workload belongs to one worker and is not safe for
// concurrent use.
type Workload struct {
	targets []string
	rnd     *rand.Rand
}

func NewWorkload(targets []string, seed int64) (*Workload, error) {
	if len(targets) == 0 {
		return nil, errors.New("workload needs at least one target")
	}
	return &Workload{
		targets: targets,
		rnd:     rand.New(rand.NewSource(seed)),
	}, nil
}

func (w *Workload) Next() string {
	return w.targets[w.rnd.Intn(len(w.targets))]
}
