package tracking

import (
	"testing"

	"github.com/helixml/linefit/domain/task"
)

func job(id string) task.Status {
	return task.NewStatus(task.OperationSweepAnneal, id)
}

func TestSummaryFromStatuses_Empty(t *testing.T) {
	summary := SummaryFromStatuses(nil)

	if summary.State() != RunStateIdle {
		t.Errorf("State() = %v, want %v", summary.State(), RunStateIdle)
	}
	if !summary.UpdatedAt().IsZero() {
		t.Errorf("UpdatedAt() = %v, want zero", summary.UpdatedAt())
	}
}

func TestSummaryFromStatuses_RunningTakesPriority(t *testing.T) {
	statuses := []task.Status{
		job("H_N_0").Fail("diverged"),
		job("H_N_1").SetCurrent(200, "chi2 3.1"),
		job("H_N_2").Complete(),
	}

	summary := SummaryFromStatuses(statuses)

	if summary.State() != RunStateRunning {
		t.Errorf("State() = %v, want %v", summary.State(), RunStateRunning)
	}
	if summary.Message() != "chi2 3.1" {
		t.Errorf("Message() = %q, want %q", summary.Message(), "chi2 3.1")
	}
}

func TestSummaryFromStatuses_StartedCountsAsRunning(t *testing.T) {
	summary := SummaryFromStatuses([]task.Status{job("H_N_0"), job("H_N_1").Complete()})

	if summary.State() != RunStateRunning {
		t.Errorf("State() = %v, want %v", summary.State(), RunStateRunning)
	}
}

func TestSummaryFromStatuses_CompletedWithErrors(t *testing.T) {
	statuses := []task.Status{
		job("H_N_0").Complete(),
		job("H_N_1").Fail("diverged"),
		job("H_N_2").Complete(),
	}

	summary := SummaryFromStatuses(statuses)

	if summary.State() != RunStateCompletedWithErrors {
		t.Errorf("State() = %v, want %v", summary.State(), RunStateCompletedWithErrors)
	}
	if summary.Message() != "diverged" {
		t.Errorf("Message() = %q, want %q", summary.Message(), "diverged")
	}
}

func TestSummaryFromStatuses_MostlyFailed(t *testing.T) {
	statuses := []task.Status{
		job("H_N_0").Complete(),
		job("H_N_1").Fail("old error"),
		job("H_N_2").Fail("recent error"),
	}

	summary := SummaryFromStatuses(statuses)

	if summary.State() != RunStateFailed {
		t.Errorf("State() = %v, want %v", summary.State(), RunStateFailed)
	}
	if summary.Message() != "recent error" {
		t.Errorf("Message() = %q, want %q", summary.Message(), "recent error")
	}
}

func TestSummaryFromStatuses_Completed(t *testing.T) {
	statuses := []task.Status{job("H_N_0").Complete(), job("H_N_1").Complete()}

	summary := SummaryFromStatuses(statuses)

	if summary.State() != RunStateCompleted {
		t.Errorf("State() = %v, want %v", summary.State(), RunStateCompleted)
	}
	if summary.UpdatedAt() != statuses[1].UpdatedAt() {
		t.Errorf("UpdatedAt() = %v, want %v", summary.UpdatedAt(), statuses[1].UpdatedAt())
	}
}

func TestSummaryFromStatuses_Cancelled(t *testing.T) {
	statuses := []task.Status{job("H_N_0").Skip("cancelled"), job("H_N_1").Skip("cancelled")}

	summary := SummaryFromStatuses(statuses)

	if summary.State() != RunStateCancelled {
		t.Errorf("State() = %v, want %v", summary.State(), RunStateCancelled)
	}
	if summary.Message() != "cancelled" {
		t.Errorf("Message() = %q, want %q", summary.Message(), "cancelled")
	}
}
