package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"shiftwise/backend/internal/session/domain"
)

func TestPutGetDelete(t *testing.T) {
	c := New()
	if got := c.Get("missing"); got != nil {
		t.Errorf("Get on empty cache = %+v, want nil", got)
	}

	sess := &domain.Session{ID: "s1", UserID: "u1", Status: domain.StatusActive, ExpiresAt: time.Now().Add(time.Hour)}
	c.Put(sess)

	got := c.Get("s1")
	if got == nil || got.UserID != "u1" {
		t.Fatalf("Get = %+v", got)
	}

	// Mutating the returned copy must not affect the cached entry.
	got.UserID = "changed"
	if c.Get("s1").UserID != "u1" {
		t.Error("cache returned shared mutable state")
	}

	c.Delete("s1")
	if c.Get("s1") != nil {
		t.Error("entry should be gone after Delete")
	}
	c.Delete("s1") // idempotent
}

func TestPut_IgnoresNilAndEmptyID(t *testing.T) {
	c := New()
	c.Put(nil)
	c.Put(&domain.Session{})
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			c.Put(&domain.Session{ID: id})
			_ = c.Get(id)
			if i%2 == 0 {
				c.Delete(id)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 25 {
		t.Errorf("Len = %d, want 25", c.Len())
	}
}
