package inspect

import (
	"fmt"

	"github.com/ayusman/berrywatch/internal/store"
)

// RecentLimit is how many events a summary lists.
const RecentLimit = 10

// EventReader is the read side of the event log.
type EventReader interface {
	Count() (int, error)
	Recent(n int) ([]store.Event, error)
}

// Summary is the operator view of the event log.
type Summary struct {
	Total  int           `json:"total"`
	Recent []store.Event `json:"recent"`
}

// Reporter builds read-only summaries of the event log.
type Reporter struct {
	events EventReader
}

// NewReporter creates a reporter over events.
func NewReporter(events EventReader) *Reporter {
	return &Reporter{events: events}
}

// Summarize returns the total event count and the newest events, newest first.
func (r *Reporter) Summarize() (Summary, error) {
	total, err := r.events.Count()
	if err != nil {
		return Summary{}, fmt.Errorf("count events: %w", err)
	}

	recent, err := r.events.Recent(RecentLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("recent events: %w", err)
	}

	return Summary{Total: total, Recent: recent}, nil
}
