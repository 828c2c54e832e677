package task

import (
	"testing"
)

func TestReportingState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    ReportingState
		terminal bool
	}{
		{ReportingStateStarted, false},
		{ReportingStateInProgress, false},
		{ReportingStateCompleted, true},
		{ReportingStateFailed, true},
		{ReportingStateSkipped, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestNewStatus(t *testing.T) {
	s := NewStatus(OperationSweepAnneal, "H_N_0")

	if s.State() != ReportingStateStarted {
		t.Errorf("State() = %v, want %v", s.State(), ReportingStateStarted)
	}
	if s.Operation() != OperationSweepAnneal {
		t.Errorf("Operation() = %v, want %v", s.Operation(), OperationSweepAnneal)
	}
	if s.ID() != "H_N_0" {
		t.Errorf("ID() = %q, want %q", s.ID(), "H_N_0")
	}

	anon := NewStatus(OperationSweep, "")
	if anon.ID() != string(OperationSweep) {
		t.Errorf("ID() = %q, want operation name", anon.ID())
	}
}

func TestStatus_Fail(t *testing.T) {
	s := NewStatus(OperationSweepAnneal, "job").Fail("boom")

	if s.State() != ReportingStateFailed {
		t.Errorf("State() = %v, want %v", s.State(), ReportingStateFailed)
	}
	if s.Error() != "boom" {
		t.Errorf("Error() = %q, want %q", s.Error(), "boom")
	}

	completed := s.Complete()
	if completed.State() != ReportingStateFailed {
		t.Error("Complete() must not override a terminal state")
	}
}

func TestStatus_Progress(t *testing.T) {
	s := NewStatus(OperationSweep, "run").SetTotal(4).SetCurrent(1, "running")

	if s.State() != ReportingStateInProgress {
		t.Errorf("State() = %v, want %v", s.State(), ReportingStateInProgress)
	}
	if got := s.CompletionPercent(); got != 25.0 {
		t.Errorf("CompletionPercent() = %v, want 25", got)
	}

	done := s.Complete()
	if done.Current() != 4 || done.CompletionPercent() != 100.0 {
		t.Errorf("Complete() should fill progress, got %d/%d", done.Current(), done.Total())
	}
	if done.Message() != "running" {
		t.Errorf("Message() = %q, want %q", done.Message(), "running")
	}
}

func TestStatus_CompletionPercentEmpty(t *testing.T) {
	if got := NewStatus(OperationSweep, "").CompletionPercent(); got != 0 {
		t.Errorf("CompletionPercent() = %v, want 0", got)
	}
}
