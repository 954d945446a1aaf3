package notify

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []*Message
	done chan struct{}
}

func (d *recordingDispatcher) Notify(ctx context.Context, msg *Message) error {
	d.mu.Lock()
	d.msgs = append(d.msgs, msg)
	d.mu.Unlock()
	if d.done != nil {
		close(d.done)
	}
	return nil
}

func (d *recordingDispatcher) Close() error { return nil }

func TestAsync_Delivers(t *testing.T) {
	d := &recordingDispatcher{done: make(chan struct{})}
	Async(d, &Message{TargetUserID: "u2", Kind: KindHandoverRequested}, nil)

	select {
	case <-d.done:
	case <-time.After(2 * time.Second):
		t.Fatal("async delivery did not happen")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.msgs) != 1 {
		t.Fatalf("msgs = %d, want 1", len(d.msgs))
	}
	if d.msgs[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}
}

func TestAsync_NilSafe(t *testing.T) {
	Async(nil, &Message{}, nil)
	Async(&recordingDispatcher{}, nil, nil)
}

func TestKafkaDispatcher_DisabledWhenUnconfigured(t *testing.T) {
	d, err := NewKafkaDispatcher(nil, "topic")
	if err != nil || d != nil {
		t.Errorf("no brokers should yield (nil, nil), got (%v, %v)", d, err)
	}
	d, err = NewKafkaDispatcher([]string{"localhost:9092"}, "")
	if err != nil || d != nil {
		t.Errorf("no topic should yield (nil, nil), got (%v, %v)", d, err)
	}

	var nilDispatcher *KafkaDispatcher
	if err := nilDispatcher.Notify(context.Background(), &Message{}); err != nil {
		t.Errorf("nil dispatcher Notify should be a no-op, got %v", err)
	}
	if err := nilDispatcher.Close(); err != nil {
		t.Errorf("nil dispatcher Close should be a no-op, got %v", err)
	}
}
