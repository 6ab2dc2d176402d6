package auth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	sessionDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/session"
	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
	"github.com/thiagocrux/simcasi/internal/core/events"
)

var errStore = errors.New("store unavailable")

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*userDatamodel.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*userDatamodel.User)}
}

func (f *fakeUsers) add(u *userDatamodel.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*userDatamodel.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*userDatamodel.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

// fakeSessions mirrors the conditional soft delete of the real store.
type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*sessionDatamodel.Session
	findErr   error
	revokeErr error
	// loseRace makes SoftDelete report that another caller retired the row first.
	loseRace bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*sessionDatamodel.Session)}
}

func (f *fakeSessions) FindByID(_ context.Context, id string, includeDeleted bool) (*sessionDatamodel.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.sessions[id]
	if !ok || (!includeDeleted && s.DeletedAt != nil) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Create(_ context.Context, s *sessionDatamodel.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessions) SoftDelete(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loseRace {
		return false, nil
	}
	s, ok := f.sessions[id]
	if !ok || s.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	s.DeletedAt = &now
	return true, nil
}

func (f *fakeSessions) RevokeAllByUserID(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return 0, f.revokeErr
	}
	var n int64
	now := time.Now().UTC()
	for _, s := range f.sessions {
		if s.UserID == userID && s.DeletedAt == nil {
			s.DeletedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) get(id string) *sessionDatamodel.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (f *fakeSessions) expire(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].ExpiresAt = at
}

func (f *fakeSessions) active(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.UserID == userID && s.DeletedAt == nil {
			n++
		}
	}
	return n
}

type fakeRoles struct {
	roles map[string]*userDatamodel.Role
}

func (f *fakeRoles) FindByID(_ context.Context, id string) (*userDatamodel.Role, error) {
	if r, ok := f.roles[id]; ok && r.DeletedAt == nil {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

type fakePermissions struct {
	byRole map[string][]string
	err    error
	calls  int
}

func (f *fakePermissions) FindByRoleID(_ context.Context, roleID string) ([]userDatamodel.Permission, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	codes := append([]string(nil), f.byRole[roleID]...)
	sort.Strings(codes)
	perms := make([]userDatamodel.Permission, 0, len(codes))
	for _, c := range codes {
		perms = append(perms, userDatamodel.Permission{ID: c, Code: c})
	}
	return perms, nil
}

type fakeResetTokens struct {
	mu     sync.Mutex
	tokens map[string]*sessionDatamodel.PasswordResetToken
}

func newFakeResetTokens() *fakeResetTokens {
	return &fakeResetTokens{tokens: make(map[string]*sessionDatamodel.PasswordResetToken)}
}

func (f *fakeResetTokens) Create(_ context.Context, t *sessionDatamodel.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tokens[t.ID] = &cp
	return nil
}

func (f *fakeResetTokens) FindActiveByHash(_ context.Context, hash string, now time.Time) (*sessionDatamodel.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.TokenHash == hash && t.UsedAt == nil && t.DeletedAt == nil && t.ExpiresAt.After(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeResetTokens) InvalidateForUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, t := range f.tokens {
		if t.UserID == userID && t.UsedAt == nil && t.DeletedAt == nil {
			t.DeletedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeResetTokens) MarkUsed(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.UsedAt = &now
	return true, nil
}

func (f *fakeResetTokens) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.UsedAt == nil && t.DeletedAt == nil {
			n++
		}
	}
	return n
}

type capturedReset struct {
	userID string
	token  string
}

type fakeNotifier struct {
	sent []capturedReset
}

func (f *fakeNotifier) SendPasswordReset(_ context.Context, user PublicUser, token string, _ time.Time) error {
	f.sent = append(f.sent, capturedReset{userID: user.ID, token: token})
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*events.SecurityEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	return f.PublishSync(ctx, event)
}

func (f *fakePublisher) PublishSync(_ context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := event.(*events.SecurityEvent); ok {
		f.events = append(f.events, ev)
	}
	return f.err
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.EventType())
	}
	return out
}

// clock is a settable time source shared by the service and token provider.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
