package sweep

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRunnerRejectsBadSchedule(t *testing.T) {
	_, err := NewRunner("not a schedule", time.Second, nil)
	if err == nil {
		t.Fatal("expected an error for a malformed schedule")
	}
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	var secondRan, thirdRan bool
	r, err := NewRunner("0 * * * * *", time.Second, nil,
		Job{Name: "first", Run: func(ctx context.Context) (int, error) {
			return 0, errors.New("store unavailable")
		}},
		Job{Name: "second", Run: func(ctx context.Context) (int, error) {
			secondRan = true
			return 3, nil
		}},
		Job{Name: "third", Run: func(ctx context.Context) (int, error) {
			thirdRan = true
			return 0, nil
		}},
	)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	r.RunOnce(context.Background())
	if !secondRan || !thirdRan {
		t.Fatalf("later jobs skipped after failure: second=%v third=%v", secondRan, thirdRan)
	}
}

func TestRunOnceBoundsJobTime(t *testing.T) {
	r, err := NewRunner("0 * * * * *", 10*time.Millisecond, nil,
		Job{Name: "slow", Run: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}},
	)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	done := make(chan struct{})
	go func() {
		r.RunOnce(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job outlived its timeout")
	}
}
