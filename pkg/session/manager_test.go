package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	mu    sync.Mutex
	data  map[string]*ports.Snapshot
	saves int
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, snap *ports.Snapshot) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*ports.Snapshot)
	}
	s.data[sessionID] = snap
	s.saves++
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*ports.Snapshot, error) {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.data[sessionID]; ok {
		return snap, nil
	}
	return nil, domain.ErrSnapshotNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_OpenSharesRoot(t *testing.T) {
	rt, srv := newTestRuntime(t)
	manager := session.NewManager(rt, session.WithStore(&SlowStore{}))
	ctx := context.Background()

	var wg sync.WaitGroup
	roots := make([]*session.Root, 8)
	for i := range roots {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			root, err := manager.Open(ctx, "shared", "/", nil)
			assert.NoError(t, err)
			roots[i] = root
		}(i)
	}
	wg.Wait()

	for _, root := range roots[1:] {
		assert.Same(t, roots[0], root)
	}
	_, err := roots[0].Elements().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(rootPath))
	require.NoError(t, manager.Shutdown(ctx))
}

func TestManager_OpenGeneratesID(t *testing.T) {
	rt, _ := newTestRuntime(t)
	manager := session.NewManager(rt)
	ctx := context.Background()

	a, err := manager.Open(ctx, "", "/", nil)
	require.NoError(t, err)
	b, err := manager.Open(ctx, "", "/", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID(), b.ID()}, ids)
}

func TestManager_PersistsAndRestores(t *testing.T) {
	rt, srv := newTestRuntime(t)
	store := &SlowStore{}
	manager := session.NewManager(rt, session.WithStore(store))
	ctx := context.Background()

	root, err := manager.Open(ctx, "s1", "/", nil)
	require.NoError(t, err)
	_, err = root.Refetch(ctx, "/about", nil).Wait(ctx)
	require.NoError(t, err)
	manager.Flush()

	snap, err := manager.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "/about", snap.Path)
	assert.Equal(t, domain.Elements{"App": "about", "Nav": "menu"}, snap.Elements)

	require.NoError(t, manager.Close("s1"))
	_, ok := manager.Get("s1")
	assert.False(t, ok)

	restored, err := manager.Open(ctx, "s1", "/about", nil)
	require.NoError(t, err)
	assert.NotSame(t, root, restored)
	tree, err := restored.Elements().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Elements, tree)
	assert.Equal(t, 1, srv.Hits(aboutPath), "restored session must not refetch")
	require.NoError(t, manager.Shutdown(ctx))
}

func TestManager_SnapshotPathMismatchFetches(t *testing.T) {
	rt, srv := newTestRuntime(t)
	store := &SlowStore{}
	require.NoError(t, store.Save(context.Background(), "s1", &ports.Snapshot{
		Path:     "/about",
		Elements: domain.Elements{"App": "stale"},
	}))
	manager := session.NewManager(rt, session.WithStore(store))
	ctx := context.Background()

	root, err := manager.Open(ctx, "s1", "/", nil)
	require.NoError(t, err)
	tree, err := root.Elements().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "home", tree["App"])
	assert.Equal(t, 1, srv.Hits(rootPath))
	require.NoError(t, manager.Shutdown(ctx))
}

func TestManager_DeleteRemovesSnapshot(t *testing.T) {
	rt, _ := newTestRuntime(t)
	store := &SlowStore{}
	manager := session.NewManager(rt, session.WithStore(store))
	ctx := context.Background()

	_, err := manager.Open(ctx, "gone", "/", nil)
	require.NoError(t, err)
	manager.Flush()

	require.NoError(t, manager.Delete(ctx, "gone"))
	_, err = manager.Snapshot(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	assert.ErrorIs(t, manager.Close("gone"), domain.ErrSessionClosed)
}

func TestManager_WithLockSerializes(t *testing.T) {
	rt, _ := newTestRuntime(t)
	manager := session.NewManager(rt)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, "race-test", func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
