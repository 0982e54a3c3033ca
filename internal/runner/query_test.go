package runner

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miload/internal/dummy"
)

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery("https://address.mivoter.org/index.php?max=5&num=8000&street=anchor bay dr", "num", "street")
	require.NoError(t, err)

	assert.Equal(t, "https://address.mivoter.org/index.php", q.Base)
	assert.Equal(t, "8000", q.Num)
	assert.Equal(t, "anchor bay dr", q.Street)
	assert.Equal(t, "https://address.mivoter.org/index.php?max=5&num=8000&street=anch", q.Partial(4))
	assert.Equal(t, "https://address.mivoter.org/index.php?max=5&num=8000&street=anchor%20b", q.Partial(8))
	assert.Equal(t, "https://address.mivoter.org/index.php?max=5&num=8000&street=anchor%20bay%20dr", q.String())
	assert.Equal(t, q.String(), q.Partial(100))
}

func TestParseQuery_EscapedInput(t *testing.T) {
	q, err := ParseQuery("http://h/s?street=Main%20St&num=1", "num", "street")
	require.NoError(t, err)
	assert.Equal(t, "Main St", q.Street)
	assert.Equal(t, "http://h/s?street=Main&num=1", q.Partial(4))
}

func TestParseQuery_NoQuery(t *testing.T) {
	_, err := ParseQuery("http://h/search", "num", "street")
	assert.Error(t, err)
}

func TestSteps(t *testing.T) {
	tests := map[string]int{
		"":              1,
		"Ma":            1,
		"Elm":           1,
		"Main":          1,
		"Main ":         2,
		"Main St":       4,
		"Woodward A":    7,
		"Woodward Av":   8,
		"Anchor Bay Dr": 8,
	}
	for street, want := range tests {
		assert.Equal(t, want, Steps(street), "street %q", street)
	}
}

func TestUserSimulator_Typing(t *testing.T) {
	server := httptest.NewServer(dummy.Handler())
	defer server.Close()

	cfg := newTestConfig()
	sim := NewUserSimulator(NewExecutor(cfg, nil, nil), cfg)

	records, steps := sim.Simulate(context.Background(), server.URL+"/index.php?max=5&num=8000&street=Anchor Bay Dr")
	require.Equal(t, 8, steps)
	require.Len(t, records, 8)

	for i, rec := range records {
		assert.Equal(t, StatusSuccess, rec.Status)
		assert.True(t, strings.HasSuffix(rec.Target, "street="+strings.ReplaceAll("Anchor Bay Dr"[:MinPrefix+i], " ", "%20")), rec.Target)
		if i > 0 {
			assert.False(t, rec.Start.Before(records[i-1].Start))
		}
	}
	// "Anch" matches the street range holding 8000; every longer prefix keeps matching it.
	assert.Equal(t, 1, records[len(records)-1].Matches)
}

func TestUserSimulator_DegenerateQuery(t *testing.T) {
	server := httptest.NewServer(dummy.Handler())
	defer server.Close()

	cfg := newTestConfig()
	sim := NewUserSimulator(NewExecutor(cfg, nil, nil), cfg)

	records, steps := sim.Simulate(context.Background(), server.URL+"/index.php?num=1&street=Ma")
	assert.Equal(t, 1, steps)
	require.Len(t, records, 1)
	assert.Equal(t, "num=1&street=Ma", records[0].Target)

	records, steps = sim.Simulate(context.Background(), server.URL+"/index.php?num=1")
	assert.Equal(t, 1, steps)
	assert.Len(t, records, 1)

	records, steps = sim.Simulate(context.Background(), server.URL+"/index.php")
	assert.Equal(t, 1, steps)
	assert.Len(t, records, 1)
}
