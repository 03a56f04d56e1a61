package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/pkg/adapters/memory"
	redisadapter "github.com/aretw0/wizard/pkg/adapters/redis"
	"github.com/aretw0/wizard/pkg/adapters/router"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machines"
	"github.com/aretw0/wizard/pkg/ports"
	"github.com/aretw0/wizard/pkg/session"
)

func newManager(store ports.Storage, opts ...session.Option) *session.Manager {
	reg := machines.MustDefault()
	return session.NewManager(reg.Tutorial(), reg, store, opts...)
}

func TestManager_OpenAndDrive(t *testing.T) {
	mgr := newManager(memory.NewStore())
	ctx := context.Background()

	snap, err := mgr.Open(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "idle", snap.CurrentState.String())

	_, err = mgr.SendTutorial(ctx, "alice", domain.NewEvent(domain.EventAuth), nil)
	require.NoError(t, err)
	snap, err = mgr.SendTutorial(ctx, "alice", domain.Event{Name: domain.EventContinue, Features: []string{"tools"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "active.feature", snap.CurrentState.String())
	assert.Equal(t, "wrap", snap.FeatureState.String())
	assert.Empty(t, snap.PendingNavigation, "navigation is drained after each call")

	r, ok := mgr.Router("alice")
	require.True(t, ok)
	assert.Equal(t, "/vault/tools/wrap", r.(*router.Table).Current().URL)

	snap, err = mgr.SendFeature(ctx, "alice", domain.NewEvent(domain.EventContinue), nil)
	require.NoError(t, err)
	assert.Equal(t, "lookup", snap.FeatureState.String())
	assert.Equal(t, []string{"alice"}, mgr.List())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	store := memory.NewStore()
	mgr := newManager(store)
	ctx := context.Background()

	_, err := mgr.Open(ctx, "a")
	require.NoError(t, err)
	_, err = mgr.Open(ctx, "b")
	require.NoError(t, err)
	_, err = mgr.SendTutorial(ctx, "a", domain.NewEvent(domain.EventAuth), nil)
	require.NoError(t, err)

	snapB, err := mgr.Snapshot(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "idle", snapB.CurrentState.String())

	v, err := store.Get(ctx, mgr.Keys("a").TutorialState)
	require.NoError(t, err)
	assert.Contains(t, v, "select")
	assert.Equal(t, "wizard:a:tutorial-state", mgr.Keys("a").TutorialState)
}

func TestManager_UnknownSession(t *testing.T) {
	mgr := newManager(memory.NewStore())

	_, err := mgr.SendTutorial(context.Background(), "ghost", domain.NewEvent(domain.EventAuth), nil)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = mgr.Open(context.Background(), "")
	assert.ErrorIs(t, err, session.ErrInvalidSessionID)
}

func TestManager_ResumesPersistedSession(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first := newManager(store)
	_, err := first.Open(ctx, "carol")
	require.NoError(t, err)
	_, err = first.SendTutorial(ctx, "carol", domain.NewEvent(domain.EventAuth), nil)
	require.NoError(t, err)
	_, err = first.SaveFeatures(ctx, "carol", []string{"policies"})
	require.NoError(t, err)

	// A second process sharing the backend picks the session up.
	second := newManager(store)
	snap, err := second.Snapshot(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "policies", snap.CurrentFeature)
	assert.Equal(t, "idle", snap.FeatureState.String())
}

func TestManager_FailedCallStillReturnsSnapshot(t *testing.T) {
	mgr := newManager(memory.NewStore())
	ctx := context.Background()
	_, err := mgr.Open(ctx, "dave")
	require.NoError(t, err)

	snap, err := mgr.CompleteFeature(ctx, "dave")
	assert.ErrorIs(t, err, domain.ErrNoFeatureMachine)
	assert.Equal(t, "idle", snap.CurrentState.String())
}

func TestManager_RestartAndDelete(t *testing.T) {
	store := memory.NewStore()
	mgr := newManager(store)
	ctx := context.Background()

	_, err := mgr.Open(ctx, "erin")
	require.NoError(t, err)
	snap, err := mgr.Restart(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, "active.select", snap.CurrentState.String())

	require.NoError(t, mgr.Delete(ctx, "erin"))
	assert.Zero(t, store.Len())
	assert.Empty(t, mgr.List())
}

func TestManager_ConcurrentCallsAreSerialised(t *testing.T) {
	mgr := newManager(memory.NewStore())
	ctx := context.Background()
	_, err := mgr.Open(ctx, "race")
	require.NoError(t, err)
	_, err = mgr.SendTutorial(ctx, "race", domain.NewEvent(domain.EventAuth), nil)
	require.NoError(t, err)
	_, err = mgr.SaveFeatures(ctx, "race", []string{"tools"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.SendFeature(ctx, "race", domain.NewEvent(domain.EventContinue), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := mgr.Snapshot(ctx, "race")
	require.NoError(t, err)
	// wrap -> lookup -> info -> rewrap -> unwrap, one step per call.
	assert.Equal(t, "unwrap", snap.FeatureState.String())
	assert.Equal(t, []string{"wrap", "lookup", "info", "rewrap", "unwrap"}, snap.FeatureStateHistory)
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redisadapter.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })

	locker := redisadapter.NewLocker(store.Client(), "wizard:")
	mgr := newManager(store, session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	_, err := mgr.Open(ctx, "frank")
	require.NoError(t, err)

	// Another replica holds the session.
	unlock, err := locker.Lock(ctx, "frank", time.Minute)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = mgr.SendTutorial(short, "frank", domain.NewEvent(domain.EventAuth), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, unlock(ctx))
	snap, err := mgr.SendTutorial(ctx, "frank", domain.NewEvent(domain.EventAuth), nil)
	require.NoError(t, err)
	assert.Equal(t, "active.select", snap.CurrentState.String())
	assert.False(t, mr.Exists("wizard:lock:frank"), "lock released after the call")
}

func TestManager_PersistedSeesOtherProcesses(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	writer := newManager(store)
	for _, id := range []string{"bob", "alice"} {
		_, err := writer.Open(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, store.Set(ctx, "other:carol:tutorial-state", `"idle"`))

	reader := newManager(store)
	assert.Empty(t, reader.List())

	ids, err := reader.Persisted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
}

func TestManager_ReplicasShareProgress(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redisadapter.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = store.Close() })

	locker := redisadapter.NewLocker(store.Client(), "wizard:")
	a := newManager(store, session.WithLocker(locker))
	b := newManager(store, session.WithLocker(locker))
	ctx := context.Background()

	_, err := a.Open(ctx, "gina")
	require.NoError(t, err)
	_, err = a.SendTutorial(ctx, "gina", domain.NewEvent(domain.EventAuth), nil)
	require.NoError(t, err)

	snap, err := b.SendTutorial(ctx, "gina", domain.Event{Name: domain.EventContinue, Features: []string{"tools"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "wrap", snap.FeatureState.String())

	// a still hosts the controller it built before b moved the tour.
	snap, err = a.SendFeature(ctx, "gina", domain.NewEvent(domain.EventContinue), nil)
	require.NoError(t, err)
	assert.Equal(t, "active.feature", snap.CurrentState.String())
	assert.Equal(t, "lookup", snap.FeatureState.String())
	assert.Equal(t, []string{"wrap", "lookup"}, snap.FeatureStateHistory)

	snap, err = b.Snapshot(ctx, "gina")
	require.NoError(t, err)
	assert.Equal(t, "lookup", snap.FeatureState.String())
	assert.Empty(t, snap.PendingNavigation)

	require.NoError(t, b.Delete(ctx, "gina"))
	_, err = a.Snapshot(ctx, "gina")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Empty(t, a.List())
}
