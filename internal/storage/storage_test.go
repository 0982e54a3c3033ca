package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miload/internal/runner"
)

func TestStore_SaveListGet(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	cfg := runner.DefaultConfig()
	cfg.Targets = []string{"http://h/?street=Main"}

	older := NewHistoryItem(cfg, &runner.RunSummary{ID: "a", TotalResults: 10}, nil)
	older.Timestamp = time.Now().Add(-time.Hour)
	newer := NewHistoryItem(cfg, &runner.RunSummary{ID: "b", TotalResults: 20}, errors.New("process 1: exit status 2"))

	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
	assert.Nil(t, items[0].Config.Targets)
	assert.Equal(t, []string{"process 1: exit status 2"}, items[0].Errors)

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Summary.TotalResults)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(NewHistoryItem(runner.DefaultConfig(), &runner.RunSummary{ID: "x"}, nil)))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()
	items, err := store.List()
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestExportCSV(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	records := []runner.RequestRecord{
		{Start: t0, End: t0.Add(50 * time.Millisecond), Elapsed: 40 * time.Millisecond, Target: "num=1&street=Main", Status: runner.StatusSuccess, StatusCode: 200, Matches: 2, Worker: 1},
		{Start: t0.Add(time.Second), End: t0.Add(time.Second), Target: "num=1&street=Elm", Status: runner.StatusAborted},
	}

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, ExportCSV(records, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"1700000000.000000", "1700000000.050000", "0.040000", "num=1&street=Main", "success", "200", "2", "1"}, rows[1])
	assert.Equal(t, []string{"1700000001.000000", "1700000001.000000", "", "num=1&street=Elm", "aborted", "", "", "0"}, rows[2])
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, ExportJSON(runner.RunSummary{ID: "x", TotalResults: 3}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_results": 3`)
}
