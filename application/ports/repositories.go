package ports

import (
	"context"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
)

// NoteRepository defines the interface for note persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type NoteRepository interface {
	// Save creates or updates a note. It fails with a retryable
	// VersionConflict when the stored version differs from the note's
	// PersistedVersion, and marks the note persisted on success.
	Save(ctx context.Context, note *entities.Note) error

	// GetByID retrieves a note by its ID
	GetByID(ctx context.Context, id valueobjects.NoteID) (*entities.Note, error)

	// GetByIDs retrieves the notes that exist among ids; missing ids are skipped
	GetByIDs(ctx context.Context, ids []valueobjects.NoteID) ([]*entities.Note, error)

	// GetByUserID retrieves all notes for a user
	GetByUserID(ctx context.Context, userID string) ([]*entities.Note, error)

	// Delete removes a note
	Delete(ctx context.Context, id valueobjects.NoteID) error
}

// EdgeRepository defines the interface for edge persistence
type EdgeRepository interface {
	// Save upserts an edge; (source, target, type) is the identity
	Save(ctx context.Context, edge *aggregates.Edge) error

	// GetByUserID retrieves all edges for a user
	GetByUserID(ctx context.Context, userID string) ([]*aggregates.Edge, error)

	// GetByNoteID retrieves all edges with noteID as an endpoint
	GetByNoteID(ctx context.Context, userID, noteID string) ([]*aggregates.Edge, error)

	// DeleteByNoteID removes all edges connected to a note
	DeleteByNoteID(ctx context.Context, userID, noteID string) error
}

// RemoteNoteStore is the authoritative copy of a user's notes that sync
// reconciles against.
type RemoteNoteStore interface {
	ListByUserID(ctx context.Context, userID string) ([]*entities.Note, error)
	Put(ctx context.Context, note *entities.Note) error
	Delete(ctx context.Context, userID string, id valueobjects.NoteID) error
}

// SyncState is what a user's last successful sync agreed on.
type SyncState struct {
	UserID       string
	LastSyncTime time.Time
	// Baseline maps note id to the content hash both sides held after the
	// last sync that touched the note.
	Baseline map[string]string
}

// SyncStateStore persists SyncState per user.
type SyncStateStore interface {
	// Get returns an empty state for users that never synced
	Get(ctx context.Context, userID string) (*SyncState, error)
	Save(ctx context.Context, state *SyncState) error
}
