package domain

import (
	"testing"
	"time"
)

func TestDuration_NetOfBreaks(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	s := &Shift{
		Status:       StatusCompleted,
		StartedAt:    start,
		EndedAt:      &end,
		BreakSeconds: 1800,
	}
	if got := s.Duration(end.Add(time.Hour)); got != 7*time.Hour+30*time.Minute {
		t.Errorf("Duration = %v, want 7h30m", got)
	}
}

func TestDuration_OpenShiftMeasuredToNow(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := &Shift{Status: StatusActive, StartedAt: start}
	if got := s.Duration(start.Add(2 * time.Hour)); got != 2*time.Hour {
		t.Errorf("Duration = %v, want 2h", got)
	}
}

func TestDuration_NeverNegative(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := &Shift{Status: StatusActive, StartedAt: start, BreakSeconds: 7200}
	if got := s.Duration(start.Add(time.Hour)); got != 0 {
		t.Errorf("Duration = %v, want 0 when breaks exceed elapsed time", got)
	}
}

func TestOpen(t *testing.T) {
	if !(&Shift{Status: StatusActive}).Open() {
		t.Error("active shift should be open")
	}
	if !(&Shift{Status: StatusPaused}).Open() {
		t.Error("paused shift should be open")
	}
	if (&Shift{Status: StatusCompleted}).Open() {
		t.Error("completed shift should not be open")
	}
	var nilShift *Shift
	if nilShift.Open() {
		t.Error("nil shift should not be open")
	}
}
