// Package tracking summarizes the job statuses of a sweep run.
package tracking

import (
	"time"

	"github.com/helixml/linefit/domain/task"
)

// RunState is the overall state of a sweep run.
type RunState string

// RunState values.
const (
	RunStateIdle                RunState = "idle"
	RunStateRunning             RunState = "running"
	RunStateCompleted           RunState = "completed"
	RunStateCompletedWithErrors RunState = "completed_with_errors"
	RunStateFailed              RunState = "failed"
	RunStateCancelled           RunState = "cancelled"
)

// RunSummary provides a summary of a sweep run's job statuses.
type RunSummary struct {
	state     RunState
	message   string
	updatedAt time.Time
}

// NewRunSummary creates a new RunSummary.
func NewRunSummary(state RunState, message string, updatedAt time.Time) RunSummary {
	return RunSummary{
		state:     state,
		message:   message,
		updatedAt: updatedAt,
	}
}

// State returns the overall run state.
func (s RunSummary) State() RunState { return s.state }

// Message returns the most recent failure or skip message.
func (s RunSummary) Message() string { return s.message }

// UpdatedAt returns the timestamp of the most recent activity.
func (s RunSummary) UpdatedAt() time.Time { return s.updatedAt }

// SummaryFromStatuses derives a RunSummary from job statuses.
// Priority: running > failed or completed_with_errors > completed > cancelled.
// When every job is terminal and some failed, the run is
// completed_with_errors if more jobs succeeded than failed, otherwise failed.
// Of two statuses updated at the same instant the later one in the slice wins.
func SummaryFromStatuses(statuses []task.Status) RunSummary {
	if len(statuses) == 0 {
		return NewRunSummary(RunStateIdle, "", time.Time{})
	}

	var (
		running   *task.Status
		failed    *task.Status
		completed *task.Status
		skipped   *task.Status
		nOK, nBad int
	)
	latest := func(current *task.Status, candidate *task.Status) *task.Status {
		if current == nil || !candidate.UpdatedAt().Before(current.UpdatedAt()) {
			return candidate
		}
		return current
	}

	for i := range statuses {
		s := &statuses[i]
		switch s.State() {
		case task.ReportingStateStarted, task.ReportingStateInProgress:
			running = latest(running, s)
		case task.ReportingStateCompleted:
			nOK++
			completed = latest(completed, s)
		case task.ReportingStateFailed:
			nBad++
			failed = latest(failed, s)
		case task.ReportingStateSkipped:
			skipped = latest(skipped, s)
		}
	}

	switch {
	case running != nil:
		return NewRunSummary(RunStateRunning, running.Message(), running.UpdatedAt())
	case failed != nil && nOK > nBad:
		return NewRunSummary(RunStateCompletedWithErrors, failed.Error(), failed.UpdatedAt())
	case failed != nil:
		return NewRunSummary(RunStateFailed, failed.Error(), failed.UpdatedAt())
	case completed != nil:
		return NewRunSummary(RunStateCompleted, "", completed.UpdatedAt())
	default:
		return NewRunSummary(RunStateCancelled, skipped.Message(), skipped.UpdatedAt())
	}
}
