package internal

import (
	"encoding/json"
	"time"
)

const historyBucket = "history"

// HistoryEvent records one user-visible action: an extraction, a preview
// generation, a download, or a janitor eviction.
type HistoryEvent struct {
	Action   string    `json:"action"`
	Platform Platform  `json:"platform,omitempty"`
	VideoID  string    `json:"videoId"`
	Title    string    `json:"title,omitempty"`
	Date     time.Time `json:"date"`
}

// History is the append-only event log behind /api/history.
type History struct {
	store *Store
}

func NewHistory(store *Store) *History {
	return &History{store: store}
}

// Append records an event. Best-effort: a write failure is logged, never
// propagated into the request path.
func (h *History) Append(ev HistoryEvent) {
	if h == nil || h.store == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := h.store.Append(historyBucket, data); err != nil {
		Logf(WARN, "History", "Failed to append event: %v", err)
	}
}

// Events returns up to limit most recent events, oldest first.
func (h *History) Events(limit int) []HistoryEvent {
	if h == nil || h.store == nil {
		return nil
	}
	raw, err := h.store.List(historyBucket, limit)
	if err != nil {
		Logf(WARN, "History", "Failed to list events: %v", err)
		return nil
	}
	events := make([]HistoryEvent, 0, len(raw))
	for _, data := range raw {
		var ev HistoryEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			events = append(events, ev)
		}
	}
	return events
}
