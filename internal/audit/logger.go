// Package audit records security-relevant lifecycle events. Recording is
// best-effort: failures never propagate to the operation being audited.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftwise/backend/internal/audit/domain"
	auditrepo "shiftwise/backend/internal/audit/repository"
)

// SystemActor is recorded for events not attributable to a staff member
// (e.g. sweep terminations).
const SystemActor = "_system"

// Recorder writes a single audit event. Implementations must be safe for
// concurrent use and must never return control-flow errors to callers.
type Recorder interface {
	Record(ctx context.Context, e *domain.Event)
}

// Spiller receives events whose durable write failed. Optional.
type Spiller interface {
	Put(e *domain.Event) error
}

// Logger implements Recorder over the audit repository, spooling events to the
// spill store when the repository is unavailable.
type Logger struct {
	repo  auditrepo.Repository
	spill Spiller
	log   *zap.Logger
	nowFn func() time.Time
}

// NewLogger returns a Recorder that persists to repo. spill may be nil; then
// failed events are only logged. log may be nil.
func NewLogger(repo auditrepo.Repository, spill Spiller, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, spill: spill, log: log, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Record writes one audit event. Best-effort: errors are logged and the event
// is spooled for a later drain, never returned.
func (l *Logger) Record(ctx context.Context, e *domain.Event) {
	if l == nil || l.repo == nil || e == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Actor == "" {
		e.Actor = SystemActor
	}
	if e.Severity == "" {
		e.Severity = domain.SeverityInfo
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.nowFn()
	}
	if err := l.repo.Create(ctx, e); err != nil {
		l.log.Warn("audit write failed",
			zap.String("entity_type", e.EntityType),
			zap.String("action", e.Action),
			zap.Error(err))
		if l.spill != nil {
			if serr := l.spill.Put(e); serr != nil {
				l.log.Error("audit spill failed", zap.Error(serr))
			}
		}
	}
}

// DrainSpill replays spooled events into the repository, oldest first.
// Returns the number of events flushed. Called from the maintenance sweep.
func (l *Logger) DrainSpill(ctx context.Context, limit int) (int, error) {
	type drainer interface {
		Drain(limit int, flush func(*domain.Event) error) (int, error)
	}
	d, ok := l.spill.(drainer)
	if !ok {
		return 0, nil
	}
	return d.Drain(limit, func(e *domain.Event) error {
		return l.repo.Create(ctx, e)
	})
}

// Nop is a Recorder that drops all events. Used in tests and when auditing is disabled.
type Nop struct{}

func (Nop) Record(ctx context.Context, e *domain.Event) {}
