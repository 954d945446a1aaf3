package domain

import "time"

// Event represents one audit event emitted by the session registry or the
// shift coordinator. Events are write-only from the core's point of view.
type Event struct {
	ID         string
	EntityType string // "session", "shift", "handover"
	EntityID   string
	Action     string
	Actor      string
	Severity   Severity
	Metadata   string // free-form JSON
	CreatedAt  time.Time
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)
