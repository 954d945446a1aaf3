// Package service implements the session registry: creation, validation,
// extension, termination, and expiry sweeps for staff login sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	auditpkg "shiftwise/backend/internal/audit"
	auditdomain "shiftwise/backend/internal/audit/domain"
	"shiftwise/backend/internal/locker"
	"shiftwise/backend/internal/security"
	"shiftwise/backend/internal/session/cache"
	"shiftwise/backend/internal/session/domain"
	staffdomain "shiftwise/backend/internal/staff/domain"
)

// Sentinel errors for the session registry; callers branch with errors.Is.
var (
	ErrStaffNotFound        = errors.New("staff member not found")
	ErrStaffDisabled        = errors.New("staff member is disabled")
	ErrSessionLimitExceeded = errors.New("active session limit exceeded")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotActive     = errors.New("session is not active")
	ErrExtendBeyondLimit    = errors.New("extension would exceed the absolute session lifetime")
)

// SessionRepo is the persistence the registry needs. Matches session/repository.Repository.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Terminate(ctx context.Context, id string, reason domain.TerminationReason, at time.Time) (bool, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	ListExpiredActive(ctx context.Context, now, idleBefore time.Time, limit int32) ([]*domain.Session, error)
	PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetData(ctx context.Context, sessionID string) (map[string]string, error)
	SaveData(ctx context.Context, sessionID string, data map[string]string) error
}

// StaffRepo is the minimal staff directory lookup the registry needs.
type StaffRepo interface {
	GetByID(ctx context.Context, id string) (*staffdomain.Staff, error)
}

// Config carries the session policy knobs.
type Config struct {
	MaxSessionsPerUser    int
	InactivityTimeout     time.Duration
	AbsoluteTimeout       time.Duration
	WarningThreshold      time.Duration
	EvictOldestOnOverflow bool
	Retention             time.Duration
}

// DeviceContext is what the calling layer knows about the client device.
// Only a derived fingerprint is retained.
type DeviceContext struct {
	RemoteAddr      string
	ClientSignature string
}

// Profile is the public view of a staff member returned to callers for authorization.
type Profile struct {
	ID   string
	Name string
	Role string
}

// CreateSessionResult is returned by CreateSession. Token is the raw bearer
// token, surfaced exactly once.
type CreateSessionResult struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
	Warnings  []string
}

// ValidateResult is returned by ValidateSession. Invalid sessions carry a
// Reason; valid ones carry the user profile and remaining lifetime.
type ValidateResult struct {
	Valid         bool
	Reason        string
	User          *Profile
	TimeRemaining time.Duration
	Warnings      []string
}

// Invalid-session reasons reported in ValidateResult.
const (
	InvalidNotFound          = "not_found"
	InvalidTerminated        = "terminated"
	InvalidToken             = "invalid_token"
	InvalidAbsoluteTimeout   = "absolute_timeout"
	InvalidInactivityTimeout = "inactivity_timeout"
)

// SweepResult summarizes one maintenance pass over sessions.
type SweepResult struct {
	Terminated int
	Purged     int64
	Errors     int
}

// Registry owns the lifecycle of login sessions. All mutations of one session
// id are serialized through a keyed mutex; the in-memory cache is only updated
// after the corresponding durable write commits.
type Registry struct {
	repo  SessionRepo
	staff StaffRepo
	cache *cache.Cache

	// Session and user locks are separate stripe sets because create holds
	// the user's lock while eviction acquires per-session locks; sharing
	// stripes across the two would allow a self-deadlock on hash collision.
	locks     *locker.KeyedMutex
	userLocks *locker.KeyedMutex

	audit auditpkg.Recorder
	cfg   Config
	log   *zap.Logger
	nowFn func() time.Time
}

// NewRegistry returns a Registry with the given dependencies. recorder and log may be nil.
func NewRegistry(repo SessionRepo, staff StaffRepo, recorder auditpkg.Recorder, cfg Config, log *zap.Logger) *Registry {
	if recorder == nil {
		recorder = auditpkg.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		repo:      repo,
		staff:     staff,
		cache:     cache.New(),
		locks:     locker.New(0),
		userLocks: locker.New(0),
		audit:     recorder,
		cfg:       cfg,
		log:       log,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession establishes a new session for an authenticated staff member
// and returns the raw bearer token exactly once. When the user is at the
// session cap, the overflow policy either evicts the least-recently-active
// session (with a warning) or fails with ErrSessionLimitExceeded.
func (r *Registry) CreateSession(ctx context.Context, userID string, device DeviceContext, loginMethod string) (*CreateSessionResult, error) {
	member, err := r.staff.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrStaffNotFound
	}
	if !member.Active() {
		return nil, ErrStaffDisabled
	}

	// The cap check and the insert must be one critical section per user, or
	// concurrent logins can each see a count below the cap and all insert.
	unlock := r.userLocks.Lock(userID)
	defer unlock()

	active, err := r.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if len(active) >= r.cfg.MaxSessionsPerUser {
		if !r.cfg.EvictOldestOnOverflow {
			return nil, ErrSessionLimitExceeded
		}
		evicted, err := r.evictOldest(ctx, active, len(active)-r.cfg.MaxSessionsPerUser+1)
		if err != nil {
			return nil, err
		}
		if evicted > 0 {
			warnings = append(warnings, fmt.Sprintf("%d older session(s) on other devices were signed out", evicted))
		}
	}

	token, err := security.NewSessionToken()
	if err != nil {
		return nil, err
	}
	now := r.nowFn()
	sess := &domain.Session{
		ID:                uuid.New().String(),
		UserID:            userID,
		DeviceFingerprint: security.DeviceFingerprint(device.RemoteAddr, device.ClientSignature),
		TokenDigest:       security.DigestToken(token),
		LoginMethod:       loginMethod,
		Status:            domain.StatusActive,
		CreatedAt:         now,
		LastActivityAt:    now,
		ExpiresAt:         now.Add(r.cfg.AbsoluteTimeout),
	}
	if err := r.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	r.cache.Put(sess)
	r.audit.Record(ctx, &auditdomain.Event{
		EntityType: "session",
		EntityID:   sess.ID,
		Action:     "created",
		Actor:      userID,
		Metadata:   fmt.Sprintf(`{"fingerprint":%q,"login_method":%q}`, sess.DeviceFingerprint, loginMethod),
	})

	return &CreateSessionResult{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		Warnings:  warnings,
	}, nil
}

// evictOldest terminates n sessions, least recently active first, ties broken
// by earliest creation. Returns how many sessions this call transitioned.
func (r *Registry) evictOldest(ctx context.Context, active []*domain.Session, n int) (int, error) {
	sorted := make([]*domain.Session, len(active))
	copy(sorted, active)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].LastActivityAt.Equal(sorted[j].LastActivityAt) {
			return sorted[i].LastActivityAt.Before(sorted[j].LastActivityAt)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	evicted := 0
	for i := 0; i < n && i < len(sorted); i++ {
		unlock := r.locks.Lock(sorted[i].ID)
		did, err := r.terminate(ctx, sorted[i].ID, domain.ReasonSuperseded, sorted[i].UserID, auditdomain.SeverityWarning)
		unlock()
		if err != nil {
			return evicted, err
		}
		if did {
			evicted++
		}
	}
	return evicted, nil
}

// ValidateSession checks the supplied credential pair and refreshes the
// session's activity timestamp. Expected validation failures come back as an
// invalid result, not an error; errors are reserved for store failures.
func (r *Registry) ValidateSession(ctx context.Context, sessionID, token string) (*ValidateResult, error) {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	sess := r.cache.Get(sessionID)
	if sess == nil {
		var err error
		sess, err = r.repo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return &ValidateResult{Reason: InvalidNotFound}, nil
		}
	}

	if !security.TokenDigestEqual(token, sess.TokenDigest) {
		// A correct session id with a wrong token means the id leaked; kill the session.
		if _, err := r.terminate(ctx, sess.ID, domain.ReasonInvalidToken, auditpkg.SystemActor, auditdomain.SeverityCritical); err != nil {
			return nil, err
		}
		return &ValidateResult{Reason: InvalidToken}, nil
	}
	if sess.Status != domain.StatusActive {
		return &ValidateResult{Reason: InvalidTerminated}, nil
	}

	now := r.nowFn()
	if sess.ExpiredAt(now) {
		if _, err := r.terminate(ctx, sess.ID, domain.ReasonAbsoluteTimeout, auditpkg.SystemActor, auditdomain.SeverityInfo); err != nil {
			return nil, err
		}
		return &ValidateResult{Reason: InvalidAbsoluteTimeout}, nil
	}
	if sess.IdleAt(now, r.cfg.InactivityTimeout) {
		if _, err := r.terminate(ctx, sess.ID, domain.ReasonInactivityTimeout, auditpkg.SystemActor, auditdomain.SeverityInfo); err != nil {
			return nil, err
		}
		return &ValidateResult{Reason: InvalidInactivityTimeout}, nil
	}

	if err := r.repo.UpdateLastActivity(ctx, sess.ID, now); err != nil {
		// Ambiguous write: drop the cache entry rather than patch it.
		r.cache.Delete(sess.ID)
		return nil, err
	}
	sess.LastActivityAt = now
	r.cache.Put(sess)

	member, err := r.staff.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return &ValidateResult{Reason: InvalidTerminated}, nil
	}

	result := &ValidateResult{
		Valid:         true,
		User:          &Profile{ID: member.ID, Name: member.Name, Role: member.Role},
		TimeRemaining: sess.ExpiresAt.Sub(now),
	}
	if result.TimeRemaining <= r.cfg.WarningThreshold {
		mins := int((result.TimeRemaining + time.Minute - 1) / time.Minute)
		result.Warnings = append(result.Warnings, fmt.Sprintf("session expires in %d minute(s)", mins))
	}
	return result, nil
}

// ExtendSession pushes the session's expiry forward by additionalMinutes, but
// never beyond CreatedAt plus the absolute lifetime. Returns the new expiry.
func (r *Registry) ExtendSession(ctx context.Context, sessionID string, additionalMinutes int) (time.Time, error) {
	if additionalMinutes <= 0 {
		return time.Time{}, fmt.Errorf("additionalMinutes must be positive, got %d", additionalMinutes)
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	sess, err := r.loadLocked(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	if sess == nil {
		return time.Time{}, ErrSessionNotFound
	}
	if sess.Status != domain.StatusActive {
		return time.Time{}, ErrSessionNotActive
	}

	newExpiry := sess.ExpiresAt.Add(time.Duration(additionalMinutes) * time.Minute)
	ceiling := sess.CreatedAt.Add(r.cfg.AbsoluteTimeout)
	if newExpiry.After(ceiling) {
		return time.Time{}, ErrExtendBeyondLimit
	}

	ok, err := r.repo.UpdateExpiry(ctx, sess.ID, newExpiry)
	if err != nil {
		r.cache.Delete(sess.ID)
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrSessionNotActive
	}
	sess.ExpiresAt = newExpiry
	r.cache.Put(sess)
	return newExpiry, nil
}

// TerminateSession marks the session terminated with the given reason.
// Idempotent-safe: terminating an already-terminated session is a no-op
// beyond a log line.
func (r *Registry) TerminateSession(ctx context.Context, sessionID string, reason domain.TerminationReason) error {
	unlock := r.locks.Lock(sessionID)
	defer unlock()

	did, err := r.terminate(ctx, sessionID, reason, auditpkg.SystemActor, auditdomain.SeverityInfo)
	if err != nil {
		return err
	}
	if !did {
		r.log.Debug("terminate on non-active session", zap.String("session_id", sessionID), zap.String("reason", string(reason)))
	}
	return nil
}

// TerminateAllSessions ends every active session of the user, optionally
// sparing one (used on password change from within a live session).
// Returns the number of sessions this call terminated.
func (r *Registry) TerminateAllSessions(ctx context.Context, userID string, reason domain.TerminationReason, exceptSessionID string) (int, error) {
	active, err := r.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, sess := range active {
		if sess.ID == exceptSessionID {
			continue
		}
		unlock := r.locks.Lock(sess.ID)
		did, err := r.terminate(ctx, sess.ID, reason, userID, auditdomain.SeverityInfo)
		unlock()
		if err != nil {
			return count, err
		}
		if did {
			count++
		}
	}
	return count, nil
}

// SweepExpiredSessions terminates sessions past either deadline and purges
// terminated records older than the retention window. Runs on a fixed
// interval; an idle system must still reclaim expired sessions.
func (r *Registry) SweepExpiredSessions(ctx context.Context) (SweepResult, error) {
	now := r.nowFn()
	candidates, err := r.repo.ListExpiredActive(ctx, now, now.Add(-r.cfg.InactivityTimeout), 0)
	if err != nil {
		return SweepResult{}, err
	}

	var res SweepResult
	for _, sess := range candidates {
		reason := domain.ReasonInactivityTimeout
		if sess.ExpiredAt(now) {
			reason = domain.ReasonAbsoluteTimeout
		}
		unlock := r.locks.Lock(sess.ID)
		did, err := r.terminate(ctx, sess.ID, reason, auditpkg.SystemActor, auditdomain.SeverityInfo)
		unlock()
		if err != nil {
			res.Errors++
			r.log.Warn("sweep terminate failed", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		if did {
			res.Terminated++
		}
	}

	purged, err := r.repo.PurgeTerminatedBefore(ctx, now.Add(-r.cfg.Retention))
	if err != nil {
		res.Errors++
		r.log.Warn("terminated-session purge failed", zap.Error(err))
	}
	res.Purged = purged
	return res, nil
}

// TransferData copies the donor session's auxiliary data onto the recipient
// session. Used by the shift coordinator on accepted handovers.
func (r *Registry) TransferData(ctx context.Context, fromSessionID, toSessionID string) error {
	data, err := r.repo.GetData(ctx, fromSessionID)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return r.repo.SaveData(ctx, toSessionID, data)
}

// terminate performs the CAS transition and, when it wins, drops the cache
// entry and records the audit event. Caller must hold the session's lock.
func (r *Registry) terminate(ctx context.Context, sessionID string, reason domain.TerminationReason, actor string, severity auditdomain.Severity) (bool, error) {
	did, err := r.repo.Terminate(ctx, sessionID, reason, r.nowFn())
	if err != nil {
		r.cache.Delete(sessionID)
		return false, err
	}
	if !did {
		return false, nil
	}
	r.cache.Delete(sessionID)
	r.audit.Record(ctx, &auditdomain.Event{
		EntityType: "session",
		EntityID:   sessionID,
		Action:     "terminated",
		Actor:      actor,
		Severity:   severity,
		Metadata:   fmt.Sprintf(`{"reason":%q}`, reason),
	})
	return true, nil
}

// loadLocked reads through the cache to the store. Caller must hold the session's lock.
func (r *Registry) loadLocked(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sess := r.cache.Get(sessionID); sess != nil {
		return sess, nil
	}
	return r.repo.GetByID(ctx, sessionID)
}
