package scheduler

import (
	"time"

	"finsync/internal/domain/openfinance"
)

// OutcomeStatus is the result of one connection in a batch.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// ConnectionOutcome records what happened to one connection during a batch.
type ConnectionOutcome struct {
	ConnectionID string                        `json:"connectionId"`
	UserID       int64                         `json:"userId"`
	ItemID       string                        `json:"itemId"`
	Status       OutcomeStatus                 `json:"status"`
	Error        string                        `json:"error,omitempty"`
	Duration     time.Duration                 `json:"duration"`
	Report       *openfinance.ConnectionReport `json:"-"`
}

// BatchReport aggregates one scheduler run.
type BatchReport struct {
	RunID      string              `json:"runId"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Total      int                 `json:"total"`
	Skipped    int                 `json:"skipped"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`
	Error      string              `json:"error,omitempty"` // listing connections failed
	Outcomes   []ConnectionOutcome `json:"outcomes"`
}

func (r *BatchReport) add(o ConnectionOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
}

// Outcome returns the outcome for itemID, or nil.
func (r *BatchReport) Outcome(itemID string) *ConnectionOutcome {
	for i := range r.Outcomes {
		if r.Outcomes[i].ItemID == itemID {
			return &r.Outcomes[i]
		}
	}
	return nil
}
