package locker

import (
	"sync"
	"testing"
)

func TestLock_MutualExclusionPerKey(t *testing.T) {
	m := New(8)
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("session-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestLock_DifferentKeysDoNotDeadlock(t *testing.T) {
	m := New(1) // force stripe sharing
	unlock := m.Lock("a")
	done := make(chan struct{})
	go func() {
		u := m.Lock("b")
		u()
		close(done)
	}()
	unlock()
	<-done
}

func TestNew_DefaultStripes(t *testing.T) {
	m := New(0)
	if len(m.stripes) != defaultStripes {
		t.Errorf("stripes = %d, want %d", len(m.stripes), defaultStripes)
	}
}
