package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventError      EventType = "search_error"
)

// SearchEvent describes one served search request.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Index     string    `json:"index"`
	Page      int       `json:"page"`
	PageSize  int       `json:"page_size"`
	Returned  int       `json:"returned"`
	Total     int64     `json:"total"`
	Facets    []string  `json:"facets,omitempty"`
	Snippets  bool      `json:"snippets"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Classify sets Type from the outcome fields.
func (e *SearchEvent) Classify() {
	switch {
	case e.Error != "":
		e.Type = EventError
	case e.Returned == 0:
		e.Type = EventZeroResult
	default:
		e.Type = EventSearch
	}
}
