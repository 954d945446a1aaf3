package domain

import (
	"time"

	floordomain "shiftwise/backend/internal/floor/domain"
)

// Handover represents one proposed transfer of responsibility between two
// staff members. The payload is an immutable snapshot taken at creation.
type Handover struct {
	ID           string
	FromUserID   string
	ToUserID     string
	Status       Status
	Notes        string
	RejectReason string // set when Status is Rejected
	Payload      Payload
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ResolvedAt   *time.Time // nil while pending
}

// Status is the handover state machine. Pending is the only non-terminal
// state; completed and rejected are terminal. Expiry is surfaced as a
// rejection with reason "timeout expired".
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// ExpiredReason is recorded when the sweep rejects an un-acted-upon handover.
const ExpiredReason = "timeout expired"

// Payload is the snapshot frozen at initiation time. Changes to the donor's
// floor state after initiation are deliberately not reflected.
type Payload struct {
	DonorSessionID  string                  `json:"donor_session_id"`
	PendingOrderIDs []string                `json:"pending_order_ids"`
	TableIDs        []string                `json:"table_ids"`
	Cash            floordomain.CashSummary `json:"cash"`
	Checklist       []ChecklistItem         `json:"checklist"`
}

// ChecklistItem is one fixed handover step with its completion flag.
type ChecklistItem struct {
	Step string `json:"step"`
	Done bool   `json:"done"`
}

// DefaultChecklist returns the fixed steps every handover walks through.
func DefaultChecklist() []ChecklistItem {
	return []ChecklistItem{
		{Step: "verify cash drawer count"},
		{Step: "brief incoming staff on open tables"},
		{Step: "review pending orders"},
		{Step: "hand over keys and devices"},
	}
}

// Pending reports whether the handover can still transition at now.
func (h *Handover) Pending(now time.Time) bool {
	return h != nil && h.Status == StatusPending && !now.After(h.ExpiresAt)
}
