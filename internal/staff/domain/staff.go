package domain

import (
	"errors"
	"time"
)

// Staff is a front- or back-of-house staff member known to the system.
type Staff struct {
	ID        string
	Name      string
	Role      string
	Status    StaffStatus
	CreatedAt time.Time
}

type StaffStatus string

const (
	StaffStatusActive   StaffStatus = "active"
	StaffStatusDisabled StaffStatus = "disabled"
)

// Active reports whether the staff member may hold sessions and shifts.
func (s *Staff) Active() bool {
	return s != nil && s.Status == StaffStatusActive
}

// Validate validates the staff member for persistence. Returns an error describing the first validation failure.
func (s *Staff) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Status == "" {
		s.Status = StaffStatusActive
	}
	return nil
}
