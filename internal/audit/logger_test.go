package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shiftwise/backend/internal/audit/domain"
)

type recordingRepo struct {
	mu     sync.Mutex
	events []*domain.Event
	fail   bool
}

func (r *recordingRepo) Create(ctx context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("store down")
	}
	copied := *e
	r.events = append(r.events, &copied)
	return nil
}

func (r *recordingRepo) ListByEntity(ctx context.Context, entityType, entityID string, limit int32) ([]*domain.Event, error) {
	return nil, nil
}

type memSpill struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (s *memSpill) Put(e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *e
	s.events = append(s.events, &copied)
	return nil
}

func TestRecord_FillsDefaults(t *testing.T) {
	repo := &recordingRepo{}
	l := NewLogger(repo, nil, nil)

	l.Record(context.Background(), &domain.Event{
		EntityType: "session",
		EntityID:   "s1",
		Action:     "created",
	})

	if len(repo.events) != 1 {
		t.Fatalf("events = %d, want 1", len(repo.events))
	}
	got := repo.events[0]
	if got.ID == "" {
		t.Error("ID should be assigned")
	}
	if got.Actor != SystemActor {
		t.Errorf("Actor = %q, want %q", got.Actor, SystemActor)
	}
	if got.Severity != domain.SeverityInfo {
		t.Errorf("Severity = %q, want info", got.Severity)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestRecord_FailureIsSwallowedAndSpooled(t *testing.T) {
	repo := &recordingRepo{fail: true}
	spill := &memSpill{}
	l := NewLogger(repo, spill, nil)

	// Must not panic or propagate the failure.
	l.Record(context.Background(), &domain.Event{
		EntityType: "handover",
		EntityID:   "h1",
		Action:     "expired",
		Severity:   domain.SeverityWarning,
	})

	if len(repo.events) != 0 {
		t.Error("failed write should not land in the repository")
	}
	if len(spill.events) != 1 {
		t.Fatalf("spill events = %d, want 1", len(spill.events))
	}
	if spill.events[0].Action != "expired" {
		t.Errorf("spooled action = %q", spill.events[0].Action)
	}
}

func TestRecord_NilSafe(t *testing.T) {
	var l *Logger
	l.Record(context.Background(), &domain.Event{Action: "x"})

	l2 := NewLogger(nil, nil, nil)
	l2.Record(context.Background(), nil)
}

func TestRecord_PreservesExplicitFields(t *testing.T) {
	repo := &recordingRepo{}
	l := NewLogger(repo, nil, nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	l.Record(context.Background(), &domain.Event{
		ID:         "fixed-id",
		EntityType: "shift",
		EntityID:   "sh1",
		Action:     "ended",
		Actor:      "u1",
		Severity:   domain.SeverityCritical,
		CreatedAt:  at,
	})

	got := repo.events[0]
	if got.ID != "fixed-id" || got.Actor != "u1" || got.Severity != domain.SeverityCritical || !got.CreatedAt.Equal(at) {
		t.Errorf("explicit fields were overwritten: %+v", got)
	}
}
