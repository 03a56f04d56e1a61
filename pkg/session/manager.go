package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/adapters/router"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
	"github.com/aretw0/wizard/pkg/persistence"
	"github.com/aretw0/wizard/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// ErrInvalidSessionID is returned for empty session IDs.
var ErrInvalidSessionID = errors.New("invalid session id")

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type hosted struct {
	ctrl   *runtime.Controller
	router ports.Router
}

// RouterFactory builds the router a new session navigates with.
type RouterFactory func(sessionID string) ports.Router

// Manager hosts controllers by session ID.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	tutorial *machine.Definition
	features runtime.FeatureSource
	storage  ports.Storage

	mu       sync.Mutex
	locks    map[string]*lockEntry
	sessions map[string]*hosted

	locker      ports.DistributedLocker
	lockTTL     time.Duration
	prefix      string
	newRouter   RouterFactory
	ctrlOptions []runtime.Option
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and its controllers.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithPrefix sets the key namespace sessions are nested under.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		m.prefix = prefix
	}
}

// WithRouterFactory replaces the per-session router.
func WithRouterFactory(f RouterFactory) Option {
	return func(m *Manager) {
		m.newRouter = f
	}
}

// WithControllerOptions passes options to every controller created.
func WithControllerOptions(opts ...runtime.Option) Option {
	return func(m *Manager) {
		m.ctrlOptions = append(m.ctrlOptions, opts...)
	}
}

// NewManager creates a session manager over one storage backend.
func NewManager(tutorial *machine.Definition, features runtime.FeatureSource, storage ports.Storage, opts ...Option) *Manager {
	m := &Manager{
		tutorial: tutorial,
		features: features,
		storage:  storage,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*hosted),
		lockTTL:  DefaultLockTTL,
		prefix:   domain.DefaultKeyPrefix,
		newRouter: func(string) ports.Router {
			return router.New()
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Keys returns the storage keys of a session.
func (m *Manager) Keys(sessionID string) persistence.Keys {
	return persistence.NewKeys(m.prefix + sessionID + ":")
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Open starts a session or resumes it from storage.
func (m *Manager) Open(ctx context.Context, sessionID string) (runtime.Snapshot, error) {
	var snap runtime.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		h, err := m.host(ctx, sessionID, true)
		if err != nil {
			return err
		}
		m.drain(ctx, sessionID, h.ctrl)
		snap = h.ctrl.Snapshot()
		return nil
	})
	return snap, err
}

// Do runs fn against the session's controller, drains deferred navigation and returns
// the resulting snapshot. Sessions persisted by another process are resumed on demand.
// The snapshot is returned even when fn fails, since a failed batch may have moved the tour.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(context.Context, *runtime.Controller) error) (runtime.Snapshot, error) {
	var snap runtime.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		h, err := m.host(ctx, sessionID, false)
		if err != nil {
			return err
		}
		err = fn(ctx, h.ctrl)
		m.drain(ctx, sessionID, h.ctrl)
		snap = h.ctrl.Snapshot()
		return err
	})
	return snap, err
}

// Snapshot returns the observable state of a session.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (runtime.Snapshot, error) {
	return m.Do(ctx, sessionID, func(context.Context, *runtime.Controller) error { return nil })
}

// SendTutorial sends event to the session's tutorial machine.
func (m *Manager) SendTutorial(ctx context.Context, sessionID string, event domain.Event, ext any) (runtime.Snapshot, error) {
	return m.Do(ctx, sessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.TransitionTutorialMachine(ctx, nil, event, ext)
	})
}

// SendFeature sends event to the session's feature machine.
func (m *Manager) SendFeature(ctx context.Context, sessionID string, event domain.Event, ext any) (runtime.Snapshot, error) {
	return m.Do(ctx, sessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.TransitionFeatureMachine(ctx, nil, event, ext)
	})
}

// SaveFeatures commits the session's feature list.
func (m *Manager) SaveFeatures(ctx context.Context, sessionID string, features []string) (runtime.Snapshot, error) {
	return m.Do(ctx, sessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.SaveFeatures(ctx, features)
	})
}

// CompleteFeature finishes the session's current feature.
func (m *Manager) CompleteFeature(ctx context.Context, sessionID string) (runtime.Snapshot, error) {
	return m.Do(ctx, sessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.CompleteFeature(ctx)
	})
}

// Restart runs the session's tour again from the feature selection.
func (m *Manager) Restart(ctx context.Context, sessionID string) (runtime.Snapshot, error) {
	return m.Do(ctx, sessionID, func(ctx context.Context, c *runtime.Controller) error {
		return c.RestartGuide(ctx)
	})
}

// Delete forgets a session and removes its persisted keys.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.forget(sessionID)

		var errs []error
		for _, key := range m.Keys(sessionID).All() {
			if err := m.storage.Remove(ctx, key); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
			}
		}
		return errors.Join(errs...)
	})
}

// List returns the IDs of the sessions hosted by this process, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Persisted returns the IDs of every session with a tutorial state in storage, sorted.
// Unlike List it sees sessions written by other processes.
func (m *Manager) Persisted(ctx context.Context) ([]string, error) {
	keys, err := m.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	const suffix = ":tutorial-state"
	var ids []string
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, m.prefix)
		if !ok {
			continue
		}
		if id, ok := strings.CutSuffix(rest, suffix); ok && id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Router returns the router of a hosted session.
func (m *Manager) Router(sessionID string) (ports.Router, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return h.router, true
}

// Storage returns the shared backend.
func (m *Manager) Storage() ports.Storage {
	return m.storage
}

// host returns the session's controller, building it from storage when this process
// has not seen the session yet. With a distributed locker a hosted controller is
// reloaded from storage on every call. Without create, a session with nothing persisted is
// reported as ErrSessionNotFound. Callers hold the session lock.
func (m *Manager) host(ctx context.Context, sessionID string, create bool) (*hosted, error) {
	m.mu.Lock()
	h, ok := m.sessions[sessionID]
	m.mu.Unlock()

	keys := m.Keys(sessionID)
	if ok && m.locker == nil {
		return h, nil
	}
	// With a locker other replicas share the session, so storage is the source of truth.
	if !create {
		if err := m.exists(ctx, sessionID, keys); err != nil {
			if ok && errors.Is(err, domain.ErrSessionNotFound) {
				m.forget(sessionID)
			}
			return nil, err
		}
	}
	if ok {
		if err := h.ctrl.Reload(ctx); err != nil {
			return nil, fmt.Errorf("failed to reload session: %w", err)
		}
		return h, nil
	}

	r := m.newRouter(sessionID)
	opts := append([]runtime.Option{
		runtime.WithLogger(m.logger.With("session_id", sessionID)),
		runtime.WithKeys(keys),
	}, m.ctrlOptions...)
	ctrl := runtime.New(m.tutorial, m.features, m.storage, r, opts...)
	if err := ctrl.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	h = &hosted{ctrl: ctrl, router: r}
	m.mu.Lock()
	m.sessions[sessionID] = h
	m.mu.Unlock()
	m.logger.Info("session hosted", "session_id", sessionID, "state", ctrl.CurrentState().String())
	return h, nil
}

func (m *Manager) exists(ctx context.Context, sessionID string, keys persistence.Keys) error {
	if _, err := m.storage.Get(ctx, keys.TutorialState); err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	return nil
}

// forget drops a hosted session another replica deleted.
func (m *Manager) forget(sessionID string) {
	m.mu.Lock()
	h, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		h.ctrl.Teardown()
	}
}

func (m *Manager) drain(ctx context.Context, sessionID string, ctrl *runtime.Controller) {
	// Navigation failures belong to the router; the tour has already moved on.
	if err := ctrl.Drain(ctx); err != nil {
		m.logger.Warn("navigation failed", "session_id", sessionID, "err", err)
	}
}
