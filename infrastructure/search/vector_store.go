package search

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	"github.com/artgluhovskiy/vertex-sub001/domain/services"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"go.uber.org/zap"
)

// vectorEntry holds every embedding of one note.
type vectorEntry struct {
	noteID      valueobjects.NoteID
	userID      string
	directoryID string
	tags        []string
	updatedAt   time.Time
	vectors     []valueobjects.Vector
	// probe represents the note when it is the query: the whole-note vector,
	// or the normalized centroid of its chunks.
	probe valueobjects.Vector
}

// EmbeddingStore is an exact (brute-force) cosine kNN store. Vectors are
// unit length, so cosine similarity is a dot product.
type EmbeddingStore struct {
	mu        sync.RWMutex
	byUser    map[string]map[string]*vectorEntry
	owners    map[string]string
	dimension int
	logger    *zap.Logger
}

var _ ports.VectorIndex = (*EmbeddingStore)(nil)

// NewEmbeddingStore creates a store for vectors of the given dimension. A
// dimension of 0 is fixed by the first indexed embedding.
func NewEmbeddingStore(dimension int, logger *zap.Logger) *EmbeddingStore {
	return &EmbeddingStore{
		byUser:    make(map[string]map[string]*vectorEntry),
		owners:    make(map[string]string),
		dimension: dimension,
		logger:    logger,
	}
}

// Index replaces all embeddings of a note. A document without embeddings
// removes the note.
func (s *EmbeddingStore) Index(ctx context.Context, doc ports.VectorDocument) error {
	if doc.NoteID.IsZero() || doc.UserID == "" {
		return pkgerrors.NewValidationError("vector document requires note id and user id")
	}
	if len(doc.Embeddings) == 0 {
		return s.Remove(ctx, doc.NoteID)
	}

	entry := &vectorEntry{
		noteID:      doc.NoteID,
		userID:      doc.UserID,
		directoryID: doc.DirectoryID,
		tags:        entities.NormalizeTags(doc.Tags),
		updatedAt:   doc.UpdatedAt,
	}
	var chunks []valueobjects.Vector
	dim := doc.Embeddings[0].Dimension()
	for _, emb := range doc.Embeddings {
		if emb.Dimension() != dim {
			return pkgerrors.NewValidationError("embeddings of one note must share a dimension")
		}
		entry.vectors = append(entry.vectors, emb.Vector())
		if emb.IsWholeNote() {
			entry.probe = emb.Vector()
		} else {
			chunks = append(chunks, emb.Vector())
		}
	}
	if entry.probe.IsZero() {
		centroid, err := valueobjects.Centroid(chunks)
		if err != nil {
			return pkgerrors.NewValidationError(fmt.Sprintf("cannot derive note vector: %v", err))
		}
		entry.probe = centroid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = dim
	}
	if dim != s.dimension {
		return pkgerrors.NewValidationError(fmt.Sprintf("embedding dimension %d does not match store dimension %d", dim, s.dimension))
	}
	s.removeLocked(doc.NoteID.String())
	notes, ok := s.byUser[doc.UserID]
	if !ok {
		notes = make(map[string]*vectorEntry)
		s.byUser[doc.UserID] = notes
	}
	notes[doc.NoteID.String()] = entry
	s.owners[doc.NoteID.String()] = doc.UserID
	return nil
}

// Remove deletes every embedding of a note.
func (s *EmbeddingStore) Remove(ctx context.Context, noteID valueobjects.NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(noteID.String())
	return nil
}

func (s *EmbeddingStore) removeLocked(id string) {
	userID, ok := s.owners[id]
	if !ok {
		return
	}
	delete(s.owners, id)
	if notes := s.byUser[userID]; notes != nil {
		delete(notes, id)
		if len(notes) == 0 {
			delete(s.byUser, userID)
		}
	}
}

// FindKNearest returns up to K notes by descending similarity. A candidate's
// similarity is the best match over all of its vectors. The query note, if
// any, is never returned.
func (s *EmbeddingStore) FindKNearest(ctx context.Context, q ports.VectorQuery) ([]ports.ScoredNote, error) {
	if q.K <= 0 {
		return []ports.ScoredNote{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := s.byUser[q.UserID]
	probe := q.Vector
	exclude := ""
	if !q.NoteID.IsZero() {
		exclude = q.NoteID.String()
		entry, ok := notes[exclude]
		if !ok {
			// A note without embeddings has no neighbours.
			return []ports.ScoredNote{}, nil
		}
		probe = entry.probe
	}
	if probe.IsZero() {
		return nil, pkgerrors.NewValidationError("query requires a note id or a non-zero vector")
	}
	if s.dimension != 0 && probe.Dimension() != s.dimension {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("query dimension %d does not match store dimension %d", probe.Dimension(), s.dimension))
	}
	probe, err := probe.Normalize()
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	results := make([]ports.ScoredNote, 0, min(q.K, len(notes)))
	for id, entry := range notes {
		if id == exclude || !entryMatches(entry, q.Filter) {
			continue
		}
		best, scored := 0.0, false
		for _, v := range entry.vectors {
			sim, err := probe.Dot(v)
			if err != nil {
				return nil, pkgerrors.NewValidationError(err.Error())
			}
			if !scored || sim > best {
				best, scored = sim, true
			}
		}
		if scored {
			results = append(results, ports.ScoredNote{NoteID: id, Score: best, UpdatedAt: entry.updatedAt})
		}
	}

	slices.SortFunc(results, func(a, b ports.ScoredNote) int {
		return services.CompareRanked(a.Score, b.Score, a.UpdatedAt, b.UpdatedAt, a.NoteID, b.NoteID)
	})
	if len(results) > q.K {
		results = results[:q.K]
	}
	return results, nil
}

// Has reports whether the note has embeddings.
func (s *EmbeddingStore) Has(noteID valueobjects.NoteID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owners[noteID.String()]
	return ok
}

// Count returns the number of notes with embeddings.
func (s *EmbeddingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.owners)
}

func entryMatches(entry *vectorEntry, filter ports.SearchFilter) bool {
	if filter.DirectoryID != "" && entry.directoryID != filter.DirectoryID {
		return false
	}
	for _, t := range entities.NormalizeTags(filter.Tags) {
		if _, found := slices.BinarySearch(entry.tags, t); !found {
			return false
		}
	}
	return true
}
