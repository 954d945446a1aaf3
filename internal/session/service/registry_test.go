package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	auditdomain "shiftwise/backend/internal/audit/domain"
	"shiftwise/backend/internal/session/domain"
	staffdomain "shiftwise/backend/internal/staff/domain"
)

type memSessionRepo struct {
	mu   sync.Mutex
	m    map[string]*domain.Session
	data map[string]map[string]string

	failWrites bool
	listHook   func() // runs after ListActiveByUser releases the map lock
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: make(map[string]*domain.Session), data: make(map[string]map[string]string)}
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id].Clone(), nil
}

func (r *memSessionRepo) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.UserID == userID && s.Status == domain.StatusActive {
			out = append(out, s.Clone())
		}
	}
	hook := r.listHook
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *memSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errors.New("store down")
	}
	r.m[s.ID] = s.Clone()
	return nil
}

func (r *memSessionRepo) Terminate(ctx context.Context, id string, reason domain.TerminationReason, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return false, errors.New("store down")
	}
	s, ok := r.m[id]
	if !ok || s.Status != domain.StatusActive {
		return false, nil
	}
	s.Status = domain.StatusTerminated
	s.TerminationReason = reason
	t := at
	s.TerminatedAt = &t
	return true, nil
}

func (r *memSessionRepo) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errors.New("store down")
	}
	if s, ok := r.m[id]; ok {
		s.LastActivityAt = at
	}
	return nil
}

func (r *memSessionRepo) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	if !ok || s.Status != domain.StatusActive {
		return false, nil
	}
	s.ExpiresAt = expiresAt
	return true, nil
}

func (r *memSessionRepo) ListExpiredActive(ctx context.Context, now, idleBefore time.Time, limit int32) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.Status == domain.StatusActive && (s.ExpiresAt.Before(now) || s.LastActivityAt.Before(idleBefore)) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *memSessionRepo) PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.m {
		if s.Status == domain.StatusTerminated && s.TerminatedAt != nil && s.TerminatedAt.Before(cutoff) {
			delete(r.m, id)
			delete(r.data, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) GetData(ctx context.Context, sessionID string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.data[sessionID]))
	for k, v := range r.data[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (r *memSessionRepo) SaveData(ctx context.Context, sessionID string, data map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data[sessionID] == nil {
		r.data[sessionID] = make(map[string]string)
	}
	for k, v := range data {
		r.data[sessionID][k] = v
	}
	return nil
}

// get returns the stored session without cloning, for assertions.
func (r *memSessionRepo) get(id string) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id]
}

func (r *memSessionRepo) activeCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.m {
		if s.UserID == userID && s.Status == domain.StatusActive {
			n++
		}
	}
	return n
}

type memStaffRepo struct {
	mu sync.Mutex
	m  map[string]*staffdomain.Staff
}

func (r *memStaffRepo) GetByID(ctx context.Context, id string) (*staffdomain.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id], nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*auditdomain.Event
}

func (a *recordingAudit) Record(ctx context.Context, e *auditdomain.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := *e
	a.events = append(a.events, &copied)
}

func (a *recordingAudit) countAction(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e.Action == action {
			n++
		}
	}
	return n
}

type fixture struct {
	registry *Registry
	repo     *memSessionRepo
	staff    *memStaffRepo
	audit    *recordingAudit
	now      time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.MaxSessionsPerUser == 0 {
		cfg.MaxSessionsPerUser = 3
	}
	if cfg.InactivityTimeout == 0 {
		cfg.InactivityTimeout = 30 * time.Minute
	}
	if cfg.AbsoluteTimeout == 0 {
		cfg.AbsoluteTimeout = 8 * time.Hour
	}
	if cfg.WarningThreshold == 0 {
		cfg.WarningThreshold = 5 * time.Minute
	}
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	f := &fixture{
		repo: newMemSessionRepo(),
		staff: &memStaffRepo{m: map[string]*staffdomain.Staff{
			"u1": {ID: "u1", Name: "Ana", Role: "server", Status: staffdomain.StaffStatusActive},
			"u2": {ID: "u2", Name: "Ben", Role: "server", Status: staffdomain.StaffStatusActive},
			"u3": {ID: "u3", Name: "Cleo", Role: "manager", Status: staffdomain.StaffStatusDisabled},
		}},
		audit: &recordingAudit{},
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.registry = NewRegistry(f.repo, f.staff, f.audit, cfg, nil)
	f.registry.nowFn = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestCreateAndValidate_RoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{RemoteAddr: "10.0.0.1:4000", ClientSignature: "pos/1"}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.SessionID == "" || created.Token == "" {
		t.Fatal("result must carry session id and raw token")
	}
	if stored := f.repo.get(created.SessionID); stored.TokenDigest == created.Token {
		t.Error("raw token must not be persisted")
	}

	v, err := f.registry.ValidateSession(ctx, created.SessionID, created.Token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if !v.Valid {
		t.Fatalf("session should be valid, reason = %q", v.Reason)
	}
	if v.User == nil || v.User.ID != "u1" || v.User.Role != "server" {
		t.Errorf("User = %+v, want u1 profile", v.User)
	}
	if len(v.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", v.Warnings)
	}
}

func TestCreateSession_StaffChecks(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.registry.CreateSession(ctx, "ghost", DeviceContext{}, "pin"); !errors.Is(err, ErrStaffNotFound) {
		t.Errorf("unknown staff: err = %v, want ErrStaffNotFound", err)
	}
	if _, err := f.registry.CreateSession(ctx, "u3", DeviceContext{}, "pin"); !errors.Is(err, ErrStaffDisabled) {
		t.Errorf("disabled staff: err = %v, want ErrStaffDisabled", err)
	}
}

func TestCreateSession_LimitRejects(t *testing.T) {
	f := newFixture(t, Config{MaxSessionsPerUser: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin"); err != nil {
			t.Fatalf("CreateSession %d: %v", i, err)
		}
	}
	if _, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin"); !errors.Is(err, ErrSessionLimitExceeded) {
		t.Fatalf("err = %v, want ErrSessionLimitExceeded", err)
	}
	if got := f.repo.activeCount("u1"); got != 2 {
		t.Errorf("active sessions = %d, want 2", got)
	}
}

func TestCreateSession_EvictsLeastRecentlyActive(t *testing.T) {
	f := newFixture(t, Config{MaxSessionsPerUser: 2, EvictOldestOnOverflow: true})
	ctx := context.Background()

	s1, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession s1: %v", err)
	}
	f.advance(time.Minute)
	s2, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession s2: %v", err)
	}
	f.advance(time.Minute)

	s3, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession s3: %v", err)
	}
	if len(s3.Warnings) == 0 {
		t.Error("eviction should surface a warning to the caller")
	}

	if got := f.repo.get(s1.SessionID); got.Status != domain.StatusTerminated || got.TerminationReason != domain.ReasonSuperseded {
		t.Errorf("s1 = %s/%s, want terminated/superseded", got.Status, got.TerminationReason)
	}
	for _, id := range []string{s2.SessionID, s3.SessionID} {
		if got := f.repo.get(id); got.Status != domain.StatusActive {
			t.Errorf("session %s should remain active", id)
		}
	}
	if got := f.repo.activeCount("u1"); got != 2 {
		t.Errorf("active sessions = %d, want 2", got)
	}
}

// The cap check and the insert must behave as one atomic step per user:
// concurrent logins racing through the count must never leave the user with
// more active sessions than the cap allows.
func TestCreateSession_ConcurrentCreatesRespectCap(t *testing.T) {
	f := newFixture(t, Config{MaxSessionsPerUser: 1})
	ctx := context.Background()

	// Widen the window between the count read and the insert so an
	// unserialized registry would let every goroutine through.
	f.repo.listHook = func() { time.Sleep(time.Millisecond) }

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSessionLimitExceeded):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1 with the cap at 1", succeeded)
	}
	if n := f.repo.activeCount("u1"); n != 1 {
		t.Errorf("active sessions = %d, cap is 1", n)
	}
}

func TestCreateSession_ConcurrentCreatesWithEviction(t *testing.T) {
	f := newFixture(t, Config{MaxSessionsPerUser: 1, EvictOldestOnOverflow: true})
	ctx := context.Background()
	f.repo.listHook = func() { time.Sleep(time.Millisecond) }

	const attempts = 4
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin"); err != nil {
				t.Errorf("CreateSession: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := f.repo.activeCount("u1"); n != 1 {
		t.Errorf("active sessions = %d, cap is 1", n)
	}
}

func TestValidateSession_WrongTokenTerminates(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	v, err := f.registry.ValidateSession(ctx, created.SessionID, "guessed")
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if v.Valid || v.Reason != InvalidToken {
		t.Fatalf("result = %+v, want invalid_token", v)
	}
	if got := f.repo.get(created.SessionID); got.TerminationReason != domain.ReasonInvalidToken {
		t.Errorf("reason = %q, want invalid_token", got.TerminationReason)
	}

	// The session is burnt even with the right token afterwards.
	v, err = f.registry.ValidateSession(ctx, created.SessionID, created.Token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if v.Valid {
		t.Error("terminated session must not validate")
	}
}

func TestValidateSession_ExpiryMonotonicity(t *testing.T) {
	f := newFixture(t, Config{AbsoluteTimeout: time.Hour, InactivityTimeout: time.Hour})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	f.advance(30 * time.Minute)
	v, err := f.registry.ValidateSession(ctx, created.SessionID, created.Token)
	if err != nil || !v.Valid {
		t.Fatalf("T1 validate = (%+v, %v), want valid", v, err)
	}

	f.advance(31 * time.Minute) // now past expires_at
	v, err = f.registry.ValidateSession(ctx, created.SessionID, created.Token)
	if err != nil {
		t.Fatalf("T2 validate: %v", err)
	}
	if v.Valid || v.Reason != InvalidAbsoluteTimeout {
		t.Fatalf("T2 result = %+v, want absolute_timeout", v)
	}
}

func TestValidateSession_InactivityTimeout(t *testing.T) {
	f := newFixture(t, Config{AbsoluteTimeout: 8 * time.Hour, InactivityTimeout: 30 * time.Minute})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	f.advance(31 * time.Minute)
	v, err := f.registry.ValidateSession(ctx, created.SessionID, created.Token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if v.Valid || v.Reason != InvalidInactivityTimeout {
		t.Fatalf("result = %+v, want inactivity_timeout", v)
	}
	if got := f.repo.get(created.SessionID); got.TerminationReason != domain.ReasonInactivityTimeout {
		t.Errorf("reason = %q, want inactivity_timeout", got.TerminationReason)
	}
}

func TestValidateSession_NearExpiryWarning(t *testing.T) {
	f := newFixture(t, Config{AbsoluteTimeout: time.Hour, InactivityTimeout: time.Hour, WarningThreshold: 5 * time.Minute})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	f.advance(56 * time.Minute) // 4 minutes remaining
	v, err := f.registry.ValidateSession(ctx, created.SessionID, created.Token)
	if err != nil || !v.Valid {
		t.Fatalf("validate = (%+v, %v), want valid", v, err)
	}
	if len(v.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one near-expiry warning", v.Warnings)
	}
	if v.TimeRemaining != 4*time.Minute {
		t.Errorf("TimeRemaining = %v, want 4m", v.TimeRemaining)
	}
}

func TestValidateSession_UnknownID(t *testing.T) {
	f := newFixture(t, Config{})
	v, err := f.registry.ValidateSession(context.Background(), "nope", "token")
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if v.Valid || v.Reason != InvalidNotFound {
		t.Errorf("result = %+v, want not_found", v)
	}
}

func TestExtendSession_BeyondCeilingFails(t *testing.T) {
	f := newFixture(t, Config{AbsoluteTimeout: time.Hour})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// expires_at already equals created_at + absolute timeout.
	if _, err := f.registry.ExtendSession(ctx, created.SessionID, 10); !errors.Is(err, ErrExtendBeyondLimit) {
		t.Fatalf("err = %v, want ErrExtendBeyondLimit", err)
	}
	if got := f.repo.get(created.SessionID); !got.ExpiresAt.Equal(created.ExpiresAt) {
		t.Errorf("expires_at changed on failed extend: %v -> %v", created.ExpiresAt, got.ExpiresAt)
	}
}

func TestExtendSession_WithinCeiling(t *testing.T) {
	f := newFixture(t, Config{AbsoluteTimeout: time.Hour})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	// Simulate an operator having shortened the expiry.
	shortened := created.ExpiresAt.Add(-30 * time.Minute)
	if _, err := f.repo.UpdateExpiry(ctx, created.SessionID, shortened); err != nil {
		t.Fatal(err)
	}
	f.registry.cache.Delete(created.SessionID)

	newExpiry, err := f.registry.ExtendSession(ctx, created.SessionID, 15)
	if err != nil {
		t.Fatalf("ExtendSession: %v", err)
	}
	if want := shortened.Add(15 * time.Minute); !newExpiry.Equal(want) {
		t.Errorf("newExpiry = %v, want %v", newExpiry, want)
	}
}

func TestExtendSession_Errors(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.registry.ExtendSession(ctx, "missing", 5); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing: err = %v, want ErrSessionNotFound", err)
	}
	if _, err := f.registry.ExtendSession(ctx, "x", 0); err == nil {
		t.Error("non-positive minutes should be rejected")
	}

	created, _ := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err := f.registry.TerminateSession(ctx, created.SessionID, domain.ReasonLogout); err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.ExtendSession(ctx, created.SessionID, 5); !errors.Is(err, ErrSessionNotActive) {
		t.Errorf("terminated: err = %v, want ErrSessionNotActive", err)
	}
}

func TestTerminateSession_Idempotent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := f.registry.TerminateSession(ctx, created.SessionID, domain.ReasonLogout); err != nil {
		t.Fatalf("first terminate: %v", err)
	}
	if err := f.registry.TerminateSession(ctx, created.SessionID, domain.ReasonAdministrative); err != nil {
		t.Fatalf("second terminate should be a no-op, got %v", err)
	}

	got := f.repo.get(created.SessionID)
	if got.TerminationReason != domain.ReasonLogout {
		t.Errorf("reason = %q, second call must not overwrite", got.TerminationReason)
	}
	if n := f.audit.countAction("terminated"); n != 1 {
		t.Errorf("terminated audit events = %d, want 1 (no duplicate side effects)", n)
	}
}

func TestTerminateAllSessions_ExceptOne(t *testing.T) {
	f := newFixture(t, Config{MaxSessionsPerUser: 5})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		created, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		ids = append(ids, created.SessionID)
	}

	n, err := f.registry.TerminateAllSessions(ctx, "u1", domain.ReasonPasswordChange, ids[2])
	if err != nil {
		t.Fatalf("TerminateAllSessions: %v", err)
	}
	if n != 2 {
		t.Errorf("terminated = %d, want 2", n)
	}
	if got := f.repo.get(ids[2]); got.Status != domain.StatusActive {
		t.Error("excepted session should stay active")
	}
}

func TestSweepExpiredSessions(t *testing.T) {
	f := newFixture(t, Config{AbsoluteTimeout: time.Hour, InactivityTimeout: 30 * time.Minute, Retention: 24 * time.Hour})
	ctx := context.Background()

	stale, err := f.registry.CreateSession(ctx, "u1", DeviceContext{}, "pin")
	if err != nil {
		t.Fatal(err)
	}
	f.advance(10 * time.Minute)
	fresh, err := f.registry.CreateSession(ctx, "u2", DeviceContext{}, "pin")
	if err != nil {
		t.Fatal(err)
	}

	f.advance(25 * time.Minute) // stale idle 35m, fresh idle 25m
	res, err := f.registry.SweepExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredSessions: %v", err)
	}
	if res.Terminated != 1 {
		t.Fatalf("Terminated = %d, want 1", res.Terminated)
	}
	if got := f.repo.get(stale.SessionID); got.TerminationReason != domain.ReasonInactivityTimeout {
		t.Errorf("reason = %q, want inactivity_timeout", got.TerminationReason)
	}
	if got := f.repo.get(fresh.SessionID); got.Status != domain.StatusActive {
		t.Error("fresh session should survive the sweep")
	}

	// Terminated rows past retention get purged.
	f.advance(25 * time.Hour)
	res, err = f.registry.SweepExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Purged != 1 {
		t.Errorf("Purged = %d, want 1", res.Purged)
	}
	if f.repo.get(stale.SessionID) != nil {
		t.Error("purged session should be gone from the store")
	}
}

func TestTransferData(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if err := f.repo.SaveData(ctx, "donor", map[string]string{"open_check": "37", "view": "floor"}); err != nil {
		t.Fatal(err)
	}
	if err := f.registry.TransferData(ctx, "donor", "recipient"); err != nil {
		t.Fatalf("TransferData: %v", err)
	}
	got, _ := f.repo.GetData(ctx, "recipient")
	if got["open_check"] != "37" || got["view"] != "floor" {
		t.Errorf("recipient data = %v", got)
	}
}
