package openfinance

import (
	"errors"
	"fmt"
	"time"
)

// Step names one reconciler in the fixed sync sequence.
type Step string

const (
	StepAccounts     Step = "accounts"
	StepTransactions Step = "transactions"
	StepCreditCards  Step = "credit_cards"
	StepInvestments  Step = "investments"
)

// Fatal reports whether a failure in this step fails the whole connection.
// Credit cards and investments are optional products per institution.
func (s Step) Fatal() bool {
	return s == StepAccounts || s == StepTransactions
}

// StepResult is the outcome of one reconciler run.
type StepResult struct {
	Step     Step
	Found    int // remote rows seen
	Upserted int
	Skipped  int // malformed rows left out
	Warnings []string
	Err      error
}

func (r *StepResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *StepResult) skipf(format string, args ...any) {
	r.Skipped++
	r.warnf(format, args...)
}

// SyncError is returned when a fatal step fails a connection's sync.
type SyncError struct {
	Step   Step
	UserID int64
	ItemID string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed for user %d item %s: %v", e.Step, e.UserID, e.ItemID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ConnectionReport collects the step results of one SyncConnection call.
type ConnectionReport struct {
	UserID     int64
	ItemID     string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []StepResult
	Fatal      *SyncError
}

// Step returns the result for s, or nil when the step did not run.
func (r *ConnectionReport) Step(s Step) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Step == s {
			return &r.Steps[i]
		}
	}
	return nil
}

// Err returns the fatal error, or nil when the connection synced.
func (r *ConnectionReport) Err() error {
	if r.Fatal == nil {
		return nil
	}
	return r.Fatal
}

// StepErrors joins the errors of every step, fatal or caught.
func (r *ConnectionReport) StepErrors() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Step, s.Err))
		}
	}
	return errors.Join(errs...)
}

// Duration is the wall time of the sync.
func (r *ConnectionReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
