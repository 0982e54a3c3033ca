package storage

import (
	"time"

	"miload/internal/runner"
)

// HistoryItem is one completed run as kept in the history store.
type HistoryItem struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Config    runner.Config     `json:"config"`
	Summary   runner.RunSummary `json:"summary"`
	// Errors holds process failures reported during the run.
	Errors []string `json:"errors,omitempty"`
}

// NewHistoryItem keys the item by the run summary id.
func NewHistoryItem(cfg runner.Config, summary *runner.RunSummary, runErr error) HistoryItem {
	item := HistoryItem{
		ID:        summary.ID,
		Timestamp: time.Now().UTC(),
		Config:    cfg,
		Summary:   *summary,
	}
	// Targets can be large and are reproducible from the address source.
	item.Config.Targets = nil
	if runErr != nil {
		item.Errors = []string{runErr.Error()}
	}
	return item
}
