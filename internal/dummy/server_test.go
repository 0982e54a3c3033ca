package dummy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	tests := map[string]struct {
		query string
		count int
		rows  int
	}{
		"prefix":         {query: "street=Anch", count: 2, rows: 2},
		"limited by max": {query: "max=1&street=Anch", count: 2, rows: 1},
		"number filter":  {query: "num=8000&street=Anchor", count: 1, rows: 1},
		"case folded":    {query: "street=main%20st", count: 1, rows: 1},
		"no match":       {query: "street=Zzz", count: 0, rows: 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/index.php?"+tc.query, nil)
			resp := Search(req)
			assert.Equal(t, tc.count, resp.Count)
			assert.Len(t, resp.Rows, tc.rows)
		})
	}
}

func TestHandler_ServesJSON(t *testing.T) {
	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/index.php?max=5&street=Wash")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Rows, 2)
}
