package spill

import (
	"fmt"
	"path/filepath"
	"testing"

	"shiftwise/backend/internal/audit/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "spill.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndDrain_OldestFirst(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Put(&domain.Event{ID: fmt.Sprintf("e%d", i), Action: "created"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	var ids []string
	n, err := s.Drain(10, func(e *domain.Event) error {
		ids = append(ids, e.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 3 {
		t.Errorf("flushed = %d, want 3", n)
	}
	if len(ids) != 3 || ids[0] != "e0" || ids[2] != "e2" {
		t.Errorf("drain order = %v, want oldest first", ids)
	}

	if size, _ := s.Size(); size != 0 {
		t.Errorf("size after drain = %d, want 0", size)
	}
}

func TestDrain_StopsOnFlushError(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Put(&domain.Event{ID: fmt.Sprintf("e%d", i)}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	calls := 0
	n, err := s.Drain(10, func(e *domain.Event) error {
		calls++
		if calls == 2 {
			return fmt.Errorf("still down")
		}
		return nil
	})
	if err == nil {
		t.Fatal("Drain should surface the flush error")
	}
	if n != 1 {
		t.Errorf("flushed = %d, want 1", n)
	}
	if size, _ := s.Size(); size != 2 {
		t.Errorf("size = %d, want 2 remaining", size)
	}
}

func TestDrain_RespectsLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		if err := s.Put(&domain.Event{ID: fmt.Sprintf("e%d", i)}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	n, err := s.Drain(2, func(e *domain.Event) error { return nil })
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 2 {
		t.Errorf("flushed = %d, want 2", n)
	}
	if size, _ := s.Size(); size != 3 {
		t.Errorf("size = %d, want 3", size)
	}
}
