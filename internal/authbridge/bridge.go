// Package authbridge reconciles the local session and the managed-auth session
// into a single current user.
//
// Rules:
//   - on first load the remote session wins;
//   - a local logout wins over a lingering remote session;
//   - a remote session issued after that logout is a new sign-in and wins again;
//   - writes made by the bridge never feed back into it.
package authbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Identity struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Onboarded bool   `json:"onboarded"`

	// IssuedAt is when the provider minted the session, zero for local ones.
	IssuedAt time.Time `json:"-"`
}

func (i *Identity) same(other *Identity) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.UserID == other.UserID &&
		i.Email == other.Email &&
		i.Role == other.Role &&
		i.Onboarded == other.Onboarded
}

func (i *Identity) clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Source is one side of the bridge.
type Source interface {
	Current(ctx context.Context) (*Identity, error)
	Set(ctx context.Context, id *Identity) error
	Clear(ctx context.Context) error
}

// LogoutLog remembers identities that were logged out locally, and when.
type LogoutLog interface {
	Record(ctx context.Context, id *Identity) error
	Recorded(ctx context.Context, id *Identity) (time.Time, bool, error)
	Forget(ctx context.Context, id *Identity) error
}

type Option func(*Bridge)

func WithLogoutLog(log LogoutLog) Option {
	return func(b *Bridge) { b.logouts = log }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// Bridge keeps both sources pointing at the same user. Calls are serialized.
// Sources receive a context marked by the bridge; a notification made with
// that context is the bridge's own write echoing back and is dropped.
type Bridge struct {
	local   Source
	remote  Source
	logouts LogoutLog
	logger  *zap.Logger

	op sync.Mutex

	mu      sync.Mutex
	current *Identity
	loaded  bool
}

func New(local, remote Source, opts ...Option) *Bridge {
	b := &Bridge{
		local:   local,
		remote:  remote,
		logouts: newMemoryLogoutLog(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Current returns the reconciled identity, nil when nobody is signed in.
func (b *Bridge) Current() *Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current.clone()
}

func (b *Bridge) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

type syncingKey struct{}

func (b *Bridge) enter(ctx context.Context, event string) (context.Context, bool) {
	if owner, _ := ctx.Value(syncingKey{}).(*Bridge); owner == b {
		b.logger.Debug("ignoring reentrant auth notification", zap.String("event", event))
		return ctx, false
	}
	b.op.Lock()
	return context.WithValue(ctx, syncingKey{}, b), true
}

func (b *Bridge) leave() { b.op.Unlock() }

// loggedOut reports whether id was signed in before its last local logout.
func (b *Bridge) loggedOut(ctx context.Context, id *Identity) (bool, error) {
	at, ok, err := b.logouts.Recorded(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	// Provider issue times have second precision.
	return !id.IssuedAt.After(at.Truncate(time.Second)), nil
}

func (b *Bridge) settle(id *Identity) {
	b.mu.Lock()
	b.current = id.clone()
	b.loaded = true
	b.mu.Unlock()
}

// Load runs the first reconciliation.
func (b *Bridge) Load(ctx context.Context) (*Identity, error) {
	ctx, ok := b.enter(ctx, "load")
	if !ok {
		return b.Current(), nil
	}
	defer b.leave()

	remote, err := b.remote.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("read remote session: %w", err)
	}
	local, err := b.local.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local session: %w", err)
	}

	if remote != nil {
		loggedOut, err := b.loggedOut(ctx, remote)
		if err != nil {
			return nil, fmt.Errorf("check logout: %w", err)
		}
		if loggedOut && !remote.same(local) {
			b.logger.Debug("dropping remote session logged out locally", zap.String("user_id", remote.UserID))
			if err := b.remote.Clear(ctx); err != nil {
				return nil, fmt.Errorf("clear remote session: %w", err)
			}
			remote = nil
		}
	}

	switch {
	case remote != nil:
		if !remote.same(local) {
			if err := b.local.Set(ctx, remote); err != nil {
				return nil, fmt.Errorf("adopt remote session: %w", err)
			}
		}
		b.settle(remote)
		return remote.clone(), nil
	case local != nil:
		if err := b.remote.Set(ctx, local); err != nil {
			return nil, fmt.Errorf("push local session: %w", err)
		}
		b.settle(local)
		return local.clone(), nil
	default:
		b.settle(nil)
		return nil, nil
	}
}

// LocalChanged handles a login (id != nil) or logout (id == nil) made through
// the local session.
func (b *Bridge) LocalChanged(ctx context.Context, id *Identity) error {
	ctx, ok := b.enter(ctx, "local")
	if !ok {
		return nil
	}
	defer b.leave()

	if id != nil {
		if err := b.remote.Set(ctx, id); err != nil {
			return fmt.Errorf("push local login: %w", err)
		}
		if err := b.logouts.Forget(ctx, id); err != nil {
			return fmt.Errorf("forget logout: %w", err)
		}
		b.settle(id)
		return nil
	}

	gone := b.Current()
	if gone == nil {
		remote, err := b.remote.Current(ctx)
		if err != nil {
			return fmt.Errorf("read remote session: %w", err)
		}
		gone = remote
	}

	if err := b.remote.Clear(ctx); err != nil {
		return fmt.Errorf("clear remote session: %w", err)
	}
	if gone != nil {
		if err := b.logouts.Record(ctx, gone); err != nil {
			return fmt.Errorf("record logout: %w", err)
		}
	}
	b.settle(nil)
	return nil
}

// RemoteChanged handles a login or logout reported by the managed auth provider.
func (b *Bridge) RemoteChanged(ctx context.Context, id *Identity) error {
	if !b.Loaded() {
		_, err := b.Load(ctx)
		return err
	}
	ctx, ok := b.enter(ctx, "remote")
	if !ok {
		return nil
	}
	defer b.leave()

	if id == nil {
		if err := b.local.Clear(ctx); err != nil {
			return fmt.Errorf("clear local session: %w", err)
		}
		b.settle(nil)
		return nil
	}

	loggedOut, err := b.loggedOut(ctx, id)
	if err != nil {
		return fmt.Errorf("check logout: %w", err)
	}
	if loggedOut {
		b.logger.Debug("ignoring remote login after local logout", zap.String("user_id", id.UserID))
		return nil
	}

	if id.same(b.Current()) {
		return nil
	}
	if err := b.local.Set(ctx, id); err != nil {
		return fmt.Errorf("adopt remote login: %w", err)
	}
	b.settle(id)
	return nil
}

type memoryLogoutLog struct {
	mu    sync.Mutex
	users map[string]time.Time
	now   func() time.Time
}

func newMemoryLogoutLog() *memoryLogoutLog {
	return &memoryLogoutLog{users: make(map[string]time.Time), now: time.Now}
}

func (m *memoryLogoutLog) Record(_ context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id.UserID] = m.now()
	return nil
}

func (m *memoryLogoutLog) Recorded(_ context.Context, id *Identity) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.users[id.UserID]
	return at, ok, nil
}

func (m *memoryLogoutLog) Forget(_ context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id.UserID)
	return nil
}
