package domain

import "time"

// Shift represents one continuous work period for one staff member. Shifts
// are never deleted; they end in a terminal state and are kept for reporting.
type Shift struct {
	ID       string
	UserID   string
	UserName string // denormalized for reporting
	UserRole string

	Status    Status
	EndReason EndReason // set when the shift reaches a terminal state

	StartedAt    time.Time
	EndedAt      *time.Time // nil while active or paused
	PausedAt     *time.Time // set while on break
	BreakSeconds int

	Performance Performance
}

type Status string

const (
	StatusActive      Status = "active"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
)

// EndReason records how a shift reached its terminal state.
type EndReason string

const (
	EndReasonNormal            EndReason = "completed"
	EndReasonHandover          EndReason = "handover"
	EndReasonAutomaticHandover EndReason = "automatic_handover"
	EndReasonAdministrative    EndReason = "administrative_force"
)

// Performance holds the counters finalized when the shift closes.
type Performance struct {
	OrdersHandled     int
	RevenueCents      int64
	TablesServed      int
	AvgServiceSeconds int
	ErrorCount        int
}

// Open reports whether the shift can still accumulate work (active or on break).
func (s *Shift) Open() bool {
	return s != nil && (s.Status == StatusActive || s.Status == StatusPaused)
}

// Duration returns elapsed working time, net of accumulated breaks.
// For open shifts it is measured up to now.
func (s *Shift) Duration(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	d := end.Sub(s.StartedAt) - time.Duration(s.BreakSeconds)*time.Second
	if d < 0 {
		return 0
	}
	return d
}
