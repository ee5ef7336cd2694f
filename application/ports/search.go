package ports

import (
	"context"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
)

// SearchFilter narrows a search to part of a user's notes.
type SearchFilter struct {
	DirectoryID string
	// Tags must all be present on a note.
	Tags []string
}

// ScoredNote is one engine result.
type ScoredNote struct {
	NoteID    string
	Score     float64
	UpdatedAt time.Time
}

// TextDocument is what the full-text index stores for a note.
type TextDocument struct {
	NoteID      string
	UserID      string
	DirectoryID string
	Title       string
	Content     string
	Tags        []string
	UpdatedAt   time.Time
}

// TextQuery is a lexical query.
type TextQuery struct {
	UserID string
	Text   string
	Filter SearchFilter
	Limit  int
}

// FullTextIndex is a per-user inverted index.
type FullTextIndex interface {
	Index(ctx context.Context, doc TextDocument) error
	Reindex(ctx context.Context, doc TextDocument) error
	Remove(ctx context.Context, noteID string) error
	Search(ctx context.Context, q TextQuery) ([]ScoredNote, error)
	// Optimize compacts the index; concurrent searches keep working and see
	// either the old or the new state.
	Optimize(ctx context.Context) error
}

// VectorDocument carries all embeddings of a note.
type VectorDocument struct {
	NoteID      valueobjects.NoteID
	UserID      string
	DirectoryID string
	Tags        []string
	UpdatedAt   time.Time
	Embeddings  []*entities.Embedding
}

// VectorQuery asks for the notes nearest to a note or to a raw vector.
type VectorQuery struct {
	UserID string
	// NoteID, when set, uses the note's own embedding and excludes it.
	NoteID valueobjects.NoteID
	Vector valueobjects.Vector
	K      int
	Filter SearchFilter
}

// VectorIndex is the embedding store.
type VectorIndex interface {
	Index(ctx context.Context, doc VectorDocument) error
	Remove(ctx context.Context, noteID valueobjects.NoteID) error
	FindKNearest(ctx context.Context, q VectorQuery) ([]ScoredNote, error)
}
