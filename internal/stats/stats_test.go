package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats_AddRequest(t *testing.T) {
	s := NewStats()
	s.AddRequest(false, 10*time.Millisecond)
	s.AddRequest(false, 30*time.Millisecond)
	s.AddRequest(true, 0)

	assert.Equal(t, uint64(3), s.Requests)
	assert.Equal(t, uint64(2), s.Success)
	assert.Equal(t, uint64(1), s.Aborted)
	assert.Equal(t, int64(2), s.Elapsed.TotalCount())
}

func TestStats_ConcurrentUpdates(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Begin()
				s.AddRequest(j%10 == 0, time.Millisecond)
				s.Finish()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(800), s.Requests)
	assert.Equal(t, uint64(80), s.Aborted)
	assert.Equal(t, int64(0), s.Inflight)
}

func TestSafeHistogram_ClampsOutOfRange(t *testing.T) {
	h := NewSafeHistogram()
	assert.NoError(t, h.RecordDuration(0))
	assert.NoError(t, h.RecordDuration(time.Hour))
	assert.Equal(t, int64(2), h.TotalCount())
}
