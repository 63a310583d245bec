package authbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	id      *Identity
	sets    int
	clears  int
	onSet   func(context.Context, *Identity)
	onClear func(context.Context)
	err     error
}

func (f *fakeSource) Current(context.Context) (*Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.id.clone(), nil
}

func (f *fakeSource) Set(ctx context.Context, id *Identity) error {
	f.sets++
	f.id = id.clone()
	if f.onSet != nil {
		f.onSet(ctx, id)
	}
	return nil
}

func (f *fakeSource) Clear(ctx context.Context) error {
	f.clears++
	f.id = nil
	if f.onClear != nil {
		f.onClear(ctx)
	}
	return nil
}

var (
	alice = &Identity{UserID: "u-alice", Email: "alice@example.com", Role: "candidate", Onboarded: true}
	bob   = &Identity{UserID: "u-bob", Email: "bob@example.com", Role: "admin", Onboarded: true}
)

func TestLoadRemoteWins(t *testing.T) {
	tests := []struct {
		name       string
		local      *Identity
		remote     *Identity
		want       *Identity
		localSets  int
		remoteSets int
	}{
		{name: "both empty"},
		{name: "remote only", remote: alice, want: alice, localSets: 1},
		{name: "local only", local: bob, want: bob, remoteSets: 1},
		{name: "conflict", local: bob, remote: alice, want: alice, localSets: 1},
		{name: "agree", local: alice, remote: alice, want: alice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &fakeSource{id: tt.local.clone()}
			remote := &fakeSource{id: tt.remote.clone()}
			b := New(local, remote)

			got, err := b.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, b.Current())
			assert.Equal(t, tt.want, local.id)
			assert.Equal(t, tt.localSets, local.sets)
			assert.Equal(t, tt.remoteSets, remote.sets)
			assert.True(t, b.Loaded())
		})
	}
}

func TestLoadPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	b := New(&fakeSource{}, &fakeSource{err: boom})

	_, err := b.Load(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, b.Loaded())
}

func TestLocalLogoutWinsOverLingeringRemote(t *testing.T) {
	ctx := context.Background()
	local := &fakeSource{id: alice.clone()}
	remote := &fakeSource{id: alice.clone()}
	b := New(local, remote)

	_, err := b.Load(ctx)
	require.NoError(t, err)

	local.id = nil
	require.NoError(t, b.LocalChanged(ctx, nil))
	assert.Nil(t, b.Current())
	assert.Equal(t, 1, remote.clears)

	// The provider reports the stale session again.
	require.NoError(t, b.RemoteChanged(ctx, alice.clone()))
	assert.Nil(t, b.Current())
	assert.Nil(t, local.id)

	// A fresh local login lifts the mark.
	local.id = alice.clone()
	require.NoError(t, b.LocalChanged(ctx, alice.clone()))
	assert.Equal(t, alice, remote.id)
	assert.Equal(t, alice, b.Current())

	require.NoError(t, b.RemoteChanged(ctx, nil))
	require.NoError(t, b.RemoteChanged(ctx, alice.clone()))
	assert.Equal(t, alice, b.Current())
	assert.Equal(t, alice, local.id)
}

func TestLoadDropsRemoteLoggedOutLocally(t *testing.T) {
	ctx := context.Background()
	log := newMemoryLogoutLog()
	require.NoError(t, log.Record(ctx, alice))

	local := &fakeSource{}
	remote := &fakeSource{id: alice.clone()}
	b := New(local, remote, WithLogoutLog(log))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, local.id)
	assert.Equal(t, 1, remote.clears)
}

func TestRemoteLogoutClearsLocal(t *testing.T) {
	ctx := context.Background()
	local := &fakeSource{id: alice.clone()}
	remote := &fakeSource{id: alice.clone()}
	b := New(local, remote)
	_, err := b.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, b.RemoteChanged(ctx, nil))
	assert.Nil(t, local.id)
	assert.Nil(t, b.Current())

	require.NoError(t, b.RemoteChanged(ctx, bob.clone()))
	assert.Equal(t, bob, local.id)
	assert.Equal(t, bob, b.Current())
}

func TestRemoteChangedBeforeLoadRunsLoad(t *testing.T) {
	local := &fakeSource{id: bob.clone()}
	remote := &fakeSource{id: alice.clone()}
	b := New(local, remote)

	require.NoError(t, b.RemoteChanged(context.Background(), alice.clone()))
	assert.True(t, b.Loaded())
	assert.Equal(t, alice, b.Current())
	assert.Equal(t, alice, local.id)
}

func TestSourceNotificationsDoNotLoop(t *testing.T) {
	ctx := context.Background()
	local := &fakeSource{}
	remote := &fakeSource{}
	b := New(local, remote)

	// Each source echoes writes back as change notifications, the way
	// reactive session stores do.
	local.onSet = func(ctx context.Context, id *Identity) { require.NoError(t, b.LocalChanged(ctx, id)) }
	local.onClear = func(ctx context.Context) { require.NoError(t, b.LocalChanged(ctx, nil)) }
	remote.onSet = func(ctx context.Context, id *Identity) { require.NoError(t, b.RemoteChanged(ctx, id)) }
	remote.onClear = func(ctx context.Context) { require.NoError(t, b.RemoteChanged(ctx, nil)) }

	_, err := b.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, b.RemoteChanged(ctx, alice.clone()))
	require.NoError(t, b.LocalChanged(ctx, bob.clone()))
	require.NoError(t, b.LocalChanged(ctx, nil))

	assert.Equal(t, 1, local.sets)
	assert.Equal(t, 1, remote.sets)
	assert.Equal(t, 1, remote.clears)
	assert.Equal(t, 0, local.clears)
	assert.Nil(t, b.Current())
}

func TestRemoteSignInAfterLocalLogoutWins(t *testing.T) {
	ctx := context.Background()
	logoutAt := time.Date(2026, 3, 1, 12, 0, 0, 700_000_000, time.UTC)
	log := newMemoryLogoutLog()
	log.now = func() time.Time { return logoutAt }

	local := &fakeSource{}
	remote := &fakeSource{}
	b := New(local, remote, WithLogoutLog(log))
	_, err := b.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, b.RemoteChanged(ctx, alice.clone()))
	require.NoError(t, b.LocalChanged(ctx, nil))
	assert.Nil(t, b.Current())

	// Same second as the logout: could be the session that was just ended.
	stale := alice.clone()
	stale.IssuedAt = logoutAt.Truncate(time.Second)
	require.NoError(t, b.RemoteChanged(ctx, stale))
	assert.Nil(t, b.Current())

	fresh := alice.clone()
	fresh.IssuedAt = logoutAt.Truncate(time.Second).Add(time.Second)
	require.NoError(t, b.RemoteChanged(ctx, fresh))
	assert.Equal(t, alice.UserID, b.Current().UserID)
	assert.Equal(t, alice.UserID, local.id.UserID)

	// A fresh token also wins on the first load of a new request.
	remote = &fakeSource{id: fresh.clone()}
	local = &fakeSource{}
	got, err := New(local, remote, WithLogoutLog(log)).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.UserID, got.UserID)
	assert.Equal(t, 0, remote.clears)
}

// lockedSource is a fakeSource that tolerates concurrent callers.
type lockedSource struct {
	mu sync.Mutex
	fakeSource
}

func (l *lockedSource) Current(ctx context.Context) (*Identity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fakeSource.Current(ctx)
}

func (l *lockedSource) Set(ctx context.Context, id *Identity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fakeSource.Set(ctx, id)
}

func (l *lockedSource) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fakeSource.Clear(ctx)
}

func TestConcurrentNotificationsAreAllApplied(t *testing.T) {
	ctx := context.Background()
	local := &lockedSource{}
	remote := &lockedSource{}
	b := New(local, remote)
	_, err := b.Load(ctx)
	require.NoError(t, err)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := &Identity{UserID: fmt.Sprintf("u-%d", i), Role: "candidate"}
			assert.NoError(t, b.RemoteChanged(ctx, id))
		}(i)
	}
	wg.Wait()

	// Every login differs from the one before it, so none may be dropped.
	assert.Equal(t, n, local.sets)
	require.NotNil(t, b.Current())
	assert.Equal(t, local.id.UserID, b.Current().UserID)
}
