// Package memory provides in-process implementations of the repository
// ports, used by the local server and by tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// NoteRepository stores note snapshots keyed by id.
type NoteRepository struct {
	mu    sync.RWMutex
	notes map[string]entities.NoteData
}

var _ ports.NoteRepository = (*NoteRepository)(nil)

func NewNoteRepository() *NoteRepository {
	return &NoteRepository{notes: make(map[string]entities.NoteData)}
}

// Save stores the note if its persisted version matches the stored one.
func (r *NoteRepository) Save(ctx context.Context, note *entities.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := note.ID().String()
	stored, exists := r.notes[id]
	switch {
	case note.IsNew() && exists:
		return pkgerrors.NewVersionConflictError(fmt.Sprintf("note %s", id), 0, stored.Version)
	case !note.IsNew() && !exists:
		return pkgerrors.NewVersionConflictError(fmt.Sprintf("note %s", id), note.PersistedVersion(), 0)
	case !note.IsNew() && stored.Version != note.PersistedVersion():
		return pkgerrors.NewVersionConflictError(fmt.Sprintf("note %s", id), note.PersistedVersion(), stored.Version)
	}

	r.notes[id] = note.Snapshot()
	note.MarkPersisted()
	return nil
}

func (r *NoteRepository) GetByID(ctx context.Context, id valueobjects.NoteID) (*entities.Note, error) {
	r.mu.RLock()
	data, ok := r.notes[id.String()]
	r.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("note %s", id))
	}
	return entities.ReconstructNote(data)
}

func (r *NoteRepository) GetByIDs(ctx context.Context, ids []valueobjects.NoteID) ([]*entities.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	notes := make([]*entities.Note, 0, len(ids))
	for _, id := range ids {
		data, ok := r.notes[id.String()]
		if !ok {
			continue
		}
		note, err := entities.ReconstructNote(data)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// GetByUserID returns the user's notes ordered by id.
func (r *NoteRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var notes []*entities.Note
	for _, data := range r.notes {
		if data.UserID != userID {
			continue
		}
		note, err := entities.ReconstructNote(data)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	slices.SortFunc(notes, func(a, b *entities.Note) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return notes, nil
}

// Delete removes a note. Deleting a missing note is not an error.
func (r *NoteRepository) Delete(ctx context.Context, id valueobjects.NoteID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notes, id.String())
	return nil
}
