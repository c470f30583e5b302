package ports_test

import (
	"context"
	"sort"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// MockStore is an in-memory implementation of SnapshotStore for testing purposes.
type MockStore struct {
	data map[string]*ports.Snapshot
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*ports.Snapshot),
	}
}

func (m *MockStore) Save(ctx context.Context, sessionID string, snap *ports.Snapshot) error {
	copied := *snap
	copied.Elements = snap.Elements.Clone()
	m.data[sessionID] = &copied
	return nil
}

func (m *MockStore) Load(ctx context.Context, sessionID string) (*ports.Snapshot, error) {
	snap, ok := m.data[sessionID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (m *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(m.data, sessionID)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func TestSnapshotStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, NewMockStore())
}
