// Package service implements the shift handover coordinator: shift lifecycle,
// the handover handshake between an outgoing and an incoming staff member,
// and the expiry sweep for un-acted-upon handovers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	auditpkg "shiftwise/backend/internal/audit"
	auditdomain "shiftwise/backend/internal/audit/domain"
	floordomain "shiftwise/backend/internal/floor/domain"
	handoverdomain "shiftwise/backend/internal/handover/domain"
	"shiftwise/backend/internal/locker"
	"shiftwise/backend/internal/notify"
	sessiondomain "shiftwise/backend/internal/session/domain"
	sessionservice "shiftwise/backend/internal/session/service"
	"shiftwise/backend/internal/shift/domain"
	staffdomain "shiftwise/backend/internal/staff/domain"
)

// Sentinel errors for the shift coordinator; callers branch with errors.Is.
var (
	ErrShiftAlreadyActive   = errors.New("user already has an active shift")
	ErrShiftNotFound        = errors.New("shift not found")
	ErrShiftNotActive       = errors.New("shift is not active")
	ErrHandoverNotFound     = errors.New("handover not found")
	ErrHandoverNotPending   = errors.New("handover is not pending")
	ErrHandoverExpired      = errors.New("handover has expired")
	ErrHandoverUnauthorized = errors.New("caller is not a party to this handover")
)

// ShiftRepo is the shift persistence the coordinator needs. Matches shift/repository.Repository.
type ShiftRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Shift, error)
	GetOpenByUser(ctx context.Context, userID string) (*domain.Shift, error)
	Create(ctx context.Context, s *domain.Shift) error
	End(ctx context.Context, id string, status domain.Status, reason domain.EndReason, at time.Time, perf domain.Performance) (bool, error)
	Pause(ctx context.Context, id string, at time.Time) (bool, error)
	Resume(ctx context.Context, id string, at time.Time) (bool, error)
}

// HandoverRepo is the handover persistence the coordinator needs. Matches handover/repository.Repository.
type HandoverRepo interface {
	GetByID(ctx context.Context, id string) (*handoverdomain.Handover, error)
	Create(ctx context.Context, h *handoverdomain.Handover) error
	ListPendingExpiredBefore(ctx context.Context, t time.Time, limit int32) ([]*handoverdomain.Handover, error)
	Complete(ctx context.Context, id string, at time.Time) (bool, error)
	Reject(ctx context.Context, id, reason string, at time.Time) (bool, error)
}

// StaffRepo is the minimal staff directory lookup the coordinator needs.
type StaffRepo interface {
	GetByID(ctx context.Context, id string) (*staffdomain.Staff, error)
}

// FloorReader exposes the read-only floor state snapshotted at handover and
// finalized into shift performance counters.
type FloorReader interface {
	PendingOrderIDs(ctx context.Context, staffID string) ([]string, error)
	OccupiedTableIDs(ctx context.Context, staffID string) ([]string, error)
	CashSummary(ctx context.Context, staffID string, since time.Time) (*floordomain.CashSummary, error)
	ShiftMetrics(ctx context.Context, staffID string, from, to time.Time) (*floordomain.Metrics, error)
}

// SessionRegistry is the slice of the session registry the coordinator uses.
// The coordinator never touches session internals directly.
type SessionRegistry interface {
	CreateSession(ctx context.Context, userID string, device sessionservice.DeviceContext, loginMethod string) (*sessionservice.CreateSessionResult, error)
	TerminateSession(ctx context.Context, sessionID string, reason sessiondomain.TerminationReason) error
	TransferData(ctx context.Context, fromSessionID, toSessionID string) error
}

// Config carries the handover policy knobs.
type Config struct {
	HandoverTimeout              time.Duration
	AutomaticHandoverOnReLogin   bool
	PreserveAuxiliarySessionData bool
}

// StartShiftResult is returned by StartShift.
type StartShiftResult struct {
	ShiftID         string
	StartTime       time.Time
	PreviousShiftID string // set when the re-login policy closed a lingering shift
	Warnings        []string
}

// InitiateHandoverResult is returned by InitiateHandover.
type InitiateHandoverResult struct {
	HandoverID    string
	PendingOrders []string
	ActiveTables  []string
	Cash          floordomain.CashSummary
	ExpiresAt     time.Time
}

// AcceptHandoverResult is returned by AcceptHandover. Token is the recipient's
// raw session token, surfaced exactly once.
type AcceptHandoverResult struct {
	SessionID   string
	Token       string
	NewShiftID  string
	Transferred handoverdomain.Payload
}

// Coordinator owns shifts and handovers. Per-user shift transitions and
// per-handover transitions are serialized through a keyed mutex; session state
// is only reached through the SessionRegistry's public operations.
type Coordinator struct {
	shifts    ShiftRepo
	handovers HandoverRepo
	staff     StaffRepo
	floor     FloorReader
	sessions  SessionRegistry
	audit     auditpkg.Recorder
	notifier  notify.Dispatcher
	cfg       Config

	// Shift and handover locks are separate stripe sets because accept
	// acquires a shift lock while holding a handover lock; sharing stripes
	// across the two would allow a self-deadlock on hash collision.
	shiftLocks    *locker.KeyedMutex
	handoverLocks *locker.KeyedMutex

	log   *zap.Logger
	nowFn func() time.Time
}

// NewCoordinator returns a Coordinator with the given dependencies.
// recorder, notifier, and log may be nil.
func NewCoordinator(
	shifts ShiftRepo,
	handovers HandoverRepo,
	staff StaffRepo,
	floor FloorReader,
	sessions SessionRegistry,
	recorder auditpkg.Recorder,
	notifier notify.Dispatcher,
	cfg Config,
	log *zap.Logger,
) *Coordinator {
	if recorder == nil {
		recorder = auditpkg.Nop{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		shifts:    shifts,
		handovers: handovers,
		staff:     staff,
		floor:     floor,
		sessions:  sessions,
		audit:     recorder,
		notifier:  notifier,
		cfg:       cfg,

		shiftLocks:    locker.New(0),
		handoverLocks: locker.New(0),

		log:   log,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// StartShift opens a new shift for the session-holder. When the user already
// has an open shift, the re-login policy either closes it automatically (with
// a warning) or the call fails with ErrShiftAlreadyActive.
func (c *Coordinator) StartShift(ctx context.Context, userID, sessionID string) (*StartShiftResult, error) {
	member, err := c.staff.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, sessionservice.ErrStaffNotFound
	}

	unlock := c.shiftLocks.Lock("user:" + userID)
	defer unlock()

	result := &StartShiftResult{}
	existing, err := c.shifts.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !c.cfg.AutomaticHandoverOnReLogin {
			return nil, ErrShiftAlreadyActive
		}
		if _, err := c.closeShift(ctx, existing, domain.StatusCompleted, domain.EndReasonAutomaticHandover, userID); err != nil {
			return nil, err
		}
		result.PreviousShiftID = existing.ID
		result.Warnings = append(result.Warnings, "previous shift was closed automatically")
	}

	now := c.nowFn()
	shift := &domain.Shift{
		ID:        uuid.New().String(),
		UserID:    userID,
		UserName:  member.Name,
		UserRole:  member.Role,
		Status:    domain.StatusActive,
		StartedAt: now,
	}
	if err := c.shifts.Create(ctx, shift); err != nil {
		return nil, err
	}
	c.audit.Record(ctx, &auditdomain.Event{
		EntityType: "shift",
		EntityID:   shift.ID,
		Action:     "started",
		Actor:      userID,
		Metadata:   fmt.Sprintf(`{"session_id":%q}`, sessionID),
	})

	result.ShiftID = shift.ID
	result.StartTime = now
	return result, nil
}

// EndShift finalizes the shift's performance counters and closes it. Must be
// called exactly once per shift; a second call fails with ErrShiftNotActive.
func (c *Coordinator) EndShift(ctx context.Context, shiftID string, reason domain.EndReason) (*domain.Shift, error) {
	unlock := c.shiftLocks.Lock(shiftID)
	defer unlock()

	shift, err := c.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, ErrShiftNotFound
	}
	if !shift.Open() {
		return nil, ErrShiftNotActive
	}
	return c.closeShift(ctx, shift, domain.StatusCompleted, reason, shift.UserID)
}

// PauseShift puts an active shift on break.
func (c *Coordinator) PauseShift(ctx context.Context, shiftID string) error {
	unlock := c.shiftLocks.Lock(shiftID)
	defer unlock()

	ok, err := c.shifts.Pause(ctx, shiftID, c.nowFn())
	if err != nil {
		return err
	}
	if !ok {
		return ErrShiftNotActive
	}
	return nil
}

// ResumeShift ends a break, folding its length into the shift's break time.
func (c *Coordinator) ResumeShift(ctx context.Context, shiftID string) error {
	unlock := c.shiftLocks.Lock(shiftID)
	defer unlock()

	ok, err := c.shifts.Resume(ctx, shiftID, c.nowFn())
	if err != nil {
		return err
	}
	if !ok {
		return ErrShiftNotActive
	}
	return nil
}

// InitiateHandover snapshots the donor's in-flight work and proposes its
// transfer to the recipient. The snapshot is frozen before the recipient is
// notified so it reflects the exact moment the ask was made.
func (c *Coordinator) InitiateHandover(ctx context.Context, fromUserID, toUserID, notes, sessionID string) (*InitiateHandoverResult, error) {
	donor, err := c.staff.GetByID(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	if donor == nil {
		return nil, sessionservice.ErrStaffNotFound
	}
	recipient, err := c.staff.GetByID(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, sessionservice.ErrStaffNotFound
	}
	if !recipient.Active() {
		return nil, sessionservice.ErrStaffDisabled
	}

	donorShift, err := c.shifts.GetOpenByUser(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	if donorShift == nil {
		return nil, ErrShiftNotActive
	}

	orders, err := c.floor.PendingOrderIDs(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	tables, err := c.floor.OccupiedTableIDs(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	cash, err := c.floor.CashSummary(ctx, fromUserID, donorShift.StartedAt)
	if err != nil {
		return nil, err
	}

	now := c.nowFn()
	h := &handoverdomain.Handover{
		ID:         uuid.New().String(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     handoverdomain.StatusPending,
		Notes:      notes,
		Payload: handoverdomain.Payload{
			DonorSessionID:  sessionID,
			PendingOrderIDs: orders,
			TableIDs:        tables,
			Cash:            *cash,
			Checklist:       handoverdomain.DefaultChecklist(),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.HandoverTimeout),
	}
	if err := c.handovers.Create(ctx, h); err != nil {
		return nil, err
	}

	c.audit.Record(ctx, &auditdomain.Event{
		EntityType: "handover",
		EntityID:   h.ID,
		Action:     "initiated",
		Actor:      fromUserID,
		Metadata:   fmt.Sprintf(`{"to":%q,"orders":%d,"tables":%d}`, toUserID, len(orders), len(tables)),
	})
	notify.Async(c.notifier, &notify.Message{
		TargetUserID: toUserID,
		Kind:         notify.KindHandoverRequested,
		Payload: map[string]string{
			"handover_id": h.ID,
			"from":        donor.Name,
			"orders":      fmt.Sprint(len(orders)),
			"tables":      fmt.Sprint(len(tables)),
			"expires_at":  h.ExpiresAt.Format(time.RFC3339),
		},
	}, c.log)

	return &InitiateHandoverResult{
		HandoverID:    h.ID,
		PendingOrders: orders,
		ActiveTables:  tables,
		Cash:          *cash,
		ExpiresAt:     h.ExpiresAt,
	}, nil
}

// AcceptHandover completes the handshake: the recipient gets a fresh session
// and shift, the donor's shift and session are closed, and the snapshot is
// returned as-frozen. Effectively all-or-nothing: on any partway failure the
// handover stays pending and freshly created recipient state is rolled back.
func (c *Coordinator) AcceptHandover(ctx context.Context, handoverID, toUserID string, device sessionservice.DeviceContext) (*AcceptHandoverResult, error) {
	unlock := c.handoverLocks.Lock(handoverID)
	defer unlock()

	h, err := c.handovers.GetByID(ctx, handoverID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrHandoverNotFound
	}
	if h.ToUserID != toUserID {
		return nil, ErrHandoverUnauthorized
	}
	if !h.Pending(c.nowFn()) {
		if h.Status != handoverdomain.StatusPending {
			return nil, ErrHandoverNotPending
		}
		return nil, ErrHandoverExpired
	}

	session, err := c.sessions.CreateSession(ctx, toUserID, device, "handover")
	if err != nil {
		return nil, err
	}

	shiftResult, err := c.StartShift(ctx, toUserID, session.SessionID)
	if err != nil {
		c.rollbackRecipient(ctx, session.SessionID, "")
		return nil, err
	}

	if c.cfg.PreserveAuxiliarySessionData && h.Payload.DonorSessionID != "" {
		if err := c.sessions.TransferData(ctx, h.Payload.DonorSessionID, session.SessionID); err != nil {
			c.rollbackRecipient(ctx, session.SessionID, shiftResult.ShiftID)
			return nil, err
		}
	}

	donorShift, err := c.shifts.GetOpenByUser(ctx, h.FromUserID)
	if err != nil {
		c.rollbackRecipient(ctx, session.SessionID, shiftResult.ShiftID)
		return nil, err
	}
	if donorShift != nil {
		if _, err := c.closeShift(ctx, donorShift, domain.StatusCompleted, domain.EndReasonHandover, toUserID); err != nil {
			c.rollbackRecipient(ctx, session.SessionID, shiftResult.ShiftID)
			return nil, err
		}
	}
	if h.Payload.DonorSessionID != "" {
		if err := c.sessions.TerminateSession(ctx, h.Payload.DonorSessionID, sessiondomain.ReasonLogout); err != nil {
			c.log.Warn("donor session terminate failed", zap.String("session_id", h.Payload.DonorSessionID), zap.Error(err))
		}
	}

	// The terminal transition happens last so a partway failure leaves the
	// handover pending. The per-handover lock keeps competing transitions out.
	ok, err := c.handovers.Complete(ctx, h.ID, c.nowFn())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHandoverNotPending
	}

	c.audit.Record(ctx, &auditdomain.Event{
		EntityType: "handover",
		EntityID:   h.ID,
		Action:     "completed",
		Actor:      toUserID,
	})

	return &AcceptHandoverResult{
		SessionID:   session.SessionID,
		Token:       session.Token,
		NewShiftID:  shiftResult.ShiftID,
		Transferred: h.Payload,
	}, nil
}

// RejectHandover declines a pending handover and tells the donor.
func (c *Coordinator) RejectHandover(ctx context.Context, handoverID, toUserID, reason string) error {
	unlock := c.handoverLocks.Lock(handoverID)
	defer unlock()

	h, err := c.handovers.GetByID(ctx, handoverID)
	if err != nil {
		return err
	}
	if h == nil {
		return ErrHandoverNotFound
	}
	if h.ToUserID != toUserID {
		return ErrHandoverUnauthorized
	}
	if h.Status != handoverdomain.StatusPending {
		return ErrHandoverNotPending
	}

	ok, err := c.handovers.Reject(ctx, h.ID, reason, c.nowFn())
	if err != nil {
		return err
	}
	if !ok {
		return ErrHandoverNotPending
	}

	c.audit.Record(ctx, &auditdomain.Event{
		EntityType: "handover",
		EntityID:   h.ID,
		Action:     "rejected",
		Actor:      toUserID,
		Metadata:   fmt.Sprintf(`{"reason":%q}`, reason),
	})
	notify.Async(c.notifier, &notify.Message{
		TargetUserID: h.FromUserID,
		Kind:         notify.KindHandoverRejected,
		Payload:      map[string]string{"handover_id": h.ID, "reason": reason},
	}, c.log)
	return nil
}

// SweepExpiredHandovers rejects pending handovers past their expiry so an
// un-acted-upon handover never blocks the donor indefinitely. The donor's
// shift and tables stay exactly as snapshotted.
func (c *Coordinator) SweepExpiredHandovers(ctx context.Context) (int, error) {
	now := c.nowFn()
	expired, err := c.handovers.ListPendingExpiredBefore(ctx, now, 0)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, h := range expired {
		unlock := c.handoverLocks.Lock(h.ID)
		ok, err := c.handovers.Reject(ctx, h.ID, handoverdomain.ExpiredReason, now)
		unlock()
		if err != nil {
			c.log.Warn("handover expiry reject failed", zap.String("handover_id", h.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue // someone else resolved it between list and lock
		}
		swept++
		c.audit.Record(ctx, &auditdomain.Event{
			EntityType: "handover",
			EntityID:   h.ID,
			Action:     "expired",
			Severity:   auditdomain.SeverityWarning,
			Metadata:   fmt.Sprintf(`{"from":%q,"to":%q}`, h.FromUserID, h.ToUserID),
		})
		notify.Async(c.notifier, &notify.Message{
			TargetUserID: h.FromUserID,
			Kind:         notify.KindHandoverExpired,
			Payload:      map[string]string{"handover_id": h.ID},
		}, c.log)
	}
	return swept, nil
}

// closeShift finalizes counters from the floor state and performs the CAS
// close. Caller must hold the relevant lock.
func (c *Coordinator) closeShift(ctx context.Context, shift *domain.Shift, status domain.Status, reason domain.EndReason, actor string) (*domain.Shift, error) {
	now := c.nowFn()
	perf := shift.Performance
	if c.floor != nil {
		metrics, err := c.floor.ShiftMetrics(ctx, shift.UserID, shift.StartedAt, now)
		if err != nil {
			return nil, err
		}
		perf = domain.Performance{
			OrdersHandled:     metrics.OrdersHandled,
			RevenueCents:      metrics.RevenueCents,
			TablesServed:      metrics.TablesServed,
			AvgServiceSeconds: metrics.AvgServiceSeconds,
			ErrorCount:        metrics.ErrorCount,
		}
	}

	ok, err := c.shifts.End(ctx, shift.ID, status, reason, now, perf)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrShiftNotActive
	}

	closed := *shift
	closed.Status = status
	closed.EndReason = reason
	closed.EndedAt = &now
	closed.PausedAt = nil
	closed.Performance = perf

	c.audit.Record(ctx, &auditdomain.Event{
		EntityType: "shift",
		EntityID:   shift.ID,
		Action:     "ended",
		Actor:      actor,
		Metadata:   fmt.Sprintf(`{"reason":%q,"orders":%d}`, reason, perf.OrdersHandled),
	})
	c.log.Info("shift ended",
		zap.String("shift_id", shift.ID),
		zap.String("reason", string(reason)),
		zap.Duration("worked", closed.Duration(now)))
	return &closed, nil
}

// rollbackRecipient undoes recipient-side state created during a failed
// accept. Best-effort; failures are logged, the handover stays pending.
func (c *Coordinator) rollbackRecipient(ctx context.Context, sessionID, shiftID string) {
	if shiftID != "" {
		if _, err := c.shifts.End(ctx, shiftID, domain.StatusInterrupted, domain.EndReasonAdministrative, c.nowFn(), domain.Performance{}); err != nil {
			c.log.Error("rollback shift failed", zap.String("shift_id", shiftID), zap.Error(err))
		}
	}
	if sessionID != "" {
		if err := c.sessions.TerminateSession(ctx, sessionID, sessiondomain.ReasonAdministrative); err != nil {
			c.log.Error("rollback session failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}
