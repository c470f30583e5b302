package ports

import (
	"context"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
)

// Snapshot is the last resolved tree of a session, with the path it was fetched for.
type Snapshot struct {
	Path     string          `json:"path"`
	Elements domain.Elements `json:"elements"`
	SavedAt  time.Time       `json:"saved_at"`
}

// SnapshotStore defines the interface for persisting session snapshots.
// This allows a session to be reopened without a network round trip.
type SnapshotStore interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, snap *Snapshot) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSnapshotNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*Snapshot, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
