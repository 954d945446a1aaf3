// Package notify delivers fire-and-forget staff notifications (pending
// handovers, rejections). The core never blocks on delivery confirmation.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Message kinds the core emits.
const (
	KindHandoverRequested = "handover_requested"
	KindHandoverRejected  = "handover_rejected"
	KindHandoverExpired   = "handover_expired"
)

// Message is one notification addressed to a staff member.
type Message struct {
	TargetUserID string            `json:"target_user_id"`
	Kind         string            `json:"kind"`
	Payload      map[string]string `json:"payload,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Dispatcher delivers notifications. Best-effort; callers log and ignore errors.
type Dispatcher interface {
	// Notify sends a single message. Implementations may block briefly; use Async from request paths.
	Notify(ctx context.Context, msg *Message) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

// asyncTimeout is the max time allowed for a single async delivery.
const asyncTimeout = 5 * time.Second

// Async runs Notify in a goroutine with a short timeout so the caller is not
// blocked. The goroutine uses context.Background() so request cancellation
// does not abort an in-flight delivery. dispatcher and msg may be nil.
func Async(dispatcher Dispatcher, msg *Message, log *zap.Logger) {
	if dispatcher == nil || msg == nil {
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()
		if err := dispatcher.Notify(ctx, msg); err != nil && log != nil {
			log.Warn("notification delivery failed",
				zap.String("kind", msg.Kind),
				zap.String("target", msg.TargetUserID),
				zap.Error(err))
		}
	}()
}

// Nop is a Dispatcher that drops all messages.
type Nop struct{}

func (Nop) Notify(ctx context.Context, msg *Message) error { return nil }
func (Nop) Close() error                                   { return nil }
