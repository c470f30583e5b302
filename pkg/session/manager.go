package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/rsc"
)

// DefaultLockTTL bounds how long a distributed lock is held for a snapshot write.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

type managedRoot struct {
	root        *Root
	unsubscribe func()
}

// Manager hosts many session roots against one Runtime, persisting each
// resolved tree to an optional SnapshotStore.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	rt    *rsc.Runtime
	store ports.SnapshotStore

	mu    sync.Mutex            // guards locks and roots
	locks map[string]*lockEntry // per-session write locks
	roots map[string]*managedRoot

	opening singleflight.Group

	locker   ports.DistributedLocker
	lockTTL  time.Duration
	rootOpts []RootOption
	logger   *slog.Logger
	persist  sync.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

// WithStore enables snapshot persistence.
func WithStore(store ports.SnapshotStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLocker serializes snapshot writes across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRootOptions applies opts to every root the Manager opens.
func WithRootOptions(opts ...RootOption) Option {
	return func(m *Manager) {
		m.rootOpts = append(m.rootOpts, opts...)
	}
}

// NewManager creates a session Manager on top of rt.
func NewManager(rt *rsc.Runtime, opts ...Option) *Manager {
	m := &Manager{
		rt:      rt,
		locks:   make(map[string]*lockEntry),
		roots:   make(map[string]*managedRoot),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns the root for id, creating it on first use. An empty id gets a
// fresh UUID. When a stored snapshot matches (path, nil params) the root starts
// from it without a network round trip. Concurrent opens of one id share a root.
func (m *Manager) Open(ctx context.Context, id, path string, params any) (*Root, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if root, ok := m.Get(id); ok {
		return root, nil
	}

	v, err, _ := m.opening.Do(id, func() (any, error) {
		if root, ok := m.Get(id); ok {
			return root, nil
		}
		return m.open(ctx, id, path, params)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Root), nil
}

func (m *Manager) open(ctx context.Context, id, path string, params any) (*Root, error) {
	cache := rsc.NewCache()
	if params == nil {
		if snap, err := m.restore(ctx, id); err != nil {
			return nil, err
		} else if snap != nil && snap.Path == path {
			cache.Seed(path, nil, elements.Resolved(snap.Elements))
			m.logger.Debug("Session restored from snapshot", "session_id", id, "path", path)
		}
	}

	opts := append([]RootOption{}, m.rootOpts...)
	opts = append(opts,
		WithSessionID(id),
		WithInitialPath(path),
		WithInitialParams(params),
		WithCache(cache),
		WithRootLogger(m.logger),
	)
	root := NewRoot(ctx, m.rt, opts...)

	managed := &managedRoot{root: root, unsubscribe: func() {}}
	if m.store != nil {
		managed.unsubscribe = root.Subscribe(func(f *elements.Future) {
			m.schedulePersist(root, f)
		})
		m.schedulePersist(root, root.Elements())
	}

	m.mu.Lock()
	m.roots[id] = managed
	m.mu.Unlock()

	m.logger.Info("Session opened", "session_id", id, "path", path)
	return root, nil
}

func (m *Manager) restore(ctx context.Context, id string) (*ports.Snapshot, error) {
	if m.store == nil {
		return nil, nil
	}
	snap, err := m.store.Load(ctx, id)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

// schedulePersist saves f once it resolves, unless the root has moved on by then.
func (m *Manager) schedulePersist(root *Root, f *elements.Future) {
	m.persist.Add(1)
	go func() {
		defer m.persist.Done()
		ctx := context.Background()

		tree, err := f.Wait(ctx)
		if err != nil {
			m.logger.Debug("Skipping snapshot of failed tree", "session_id", root.ID(), "err", err)
			return
		}

		err = m.WithLock(ctx, root.ID(), func(ctx context.Context) error {
			if root.Elements() != f {
				return nil
			}
			return m.store.Save(ctx, root.ID(), &ports.Snapshot{
				Path:     root.Path(),
				Elements: tree,
				SavedAt:  time.Now().UTC(),
			})
		})
		if err != nil {
			m.logger.Warn("Failed to save snapshot", "session_id", root.ID(), "err", err)
		}
	}()
}

// Flush blocks until every pending snapshot write has finished.
func (m *Manager) Flush() {
	m.persist.Wait()
}

// Get returns the open root for id.
func (m *Manager) Get(id string) (*Root, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	managed, ok := m.roots[id]
	if !ok {
		return nil, false
	}
	return managed.root, true
}

// Snapshot returns the stored snapshot for id.
func (m *Manager) Snapshot(ctx context.Context, id string) (*ports.Snapshot, error) {
	if m.store == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return m.store.Load(ctx, id)
}

// Close detaches the root for id and keeps its snapshot.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	managed, ok := m.roots[id]
	delete(m.roots, id)
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionClosed
	}
	managed.unsubscribe()
	managed.root.Close()
	m.logger.Info("Session closed", "session_id", id)
	return nil
}

// Delete closes the root for id, if open, and removes its snapshot.
func (m *Manager) Delete(ctx context.Context, id string) error {
	_ = m.Close(id)
	if m.store == nil {
		return nil
	}
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List returns the IDs of open sessions and stored snapshots, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	m.mu.Lock()
	for id := range m.roots {
		seen[id] = struct{}{}
	}
	m.mu.Unlock()

	if m.store != nil {
		stored, err := m.store.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range stored {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Shutdown closes every open root and waits for pending snapshot writes.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.roots))
	for id := range m.roots {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Close(id)
	}

	done := make(chan struct{})
	go func() {
		m.persist.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
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

// WithLock executes fn while holding the write lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
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
