package entities

import (
	"fmt"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// Embedding is one vector for a note, or for one chunk of it.
// The vector is always stored L2-normalized.
type Embedding struct {
	noteID     valueobjects.NoteID
	vector     valueobjects.Vector
	model      string
	chunkIndex *int
	createdAt  time.Time
}

// NewEmbedding normalizes raw model output. noteID may be zero for query
// embeddings that are never stored.
func NewEmbedding(values []float32, model string, createdAt time.Time) (*Embedding, error) {
	if model == "" {
		return nil, pkgerrors.NewValidationError("embedding model is required")
	}
	vector, err := valueobjects.NormalizeVector(values)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid embedding: %v", err))
	}
	return &Embedding{
		vector:    vector,
		model:     model,
		createdAt: createdAt,
	}, nil
}

// ForNote returns a copy attached to a note. A nil chunkIndex marks a
// whole-note embedding.
func (e *Embedding) ForNote(noteID valueobjects.NoteID, chunkIndex *int) *Embedding {
	cp := *e
	cp.noteID = noteID
	if chunkIndex != nil {
		idx := *chunkIndex
		cp.chunkIndex = &idx
	} else {
		cp.chunkIndex = nil
	}
	return &cp
}

func (e *Embedding) NoteID() valueobjects.NoteID { return e.noteID }
func (e *Embedding) Vector() valueobjects.Vector { return e.vector }
func (e *Embedding) Dimension() int              { return e.vector.Dimension() }
func (e *Embedding) Model() string               { return e.model }
func (e *Embedding) CreatedAt() time.Time        { return e.createdAt }

// ChunkIndex returns the chunk position and whether the embedding is a chunk.
func (e *Embedding) ChunkIndex() (int, bool) {
	if e.chunkIndex == nil {
		return 0, false
	}
	return *e.chunkIndex, true
}

// IsWholeNote reports whether the embedding covers the entire note.
func (e *Embedding) IsWholeNote() bool {
	return e.chunkIndex == nil
}
