package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
)

// RemoteNoteStore is an in-memory stand-in for the remote copy of a
// user's notes.
type RemoteNoteStore struct {
	mu    sync.RWMutex
	notes map[string]map[string]entities.NoteData
}

var _ ports.RemoteNoteStore = (*RemoteNoteStore)(nil)

func NewRemoteNoteStore() *RemoteNoteStore {
	return &RemoteNoteStore{notes: make(map[string]map[string]entities.NoteData)}
}

func (s *RemoteNoteStore) ListByUserID(ctx context.Context, userID string) ([]*entities.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.Note, 0, len(s.notes[userID]))
	for _, data := range s.notes[userID] {
		note, err := entities.ReconstructNote(data)
		if err != nil {
			return nil, err
		}
		out = append(out, note)
	}
	slices.SortFunc(out, func(a, b *entities.Note) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out, nil
}

func (s *RemoteNoteStore) Put(ctx context.Context, note *entities.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.notes[note.UserID()]
	if !ok {
		byID = make(map[string]entities.NoteData)
		s.notes[note.UserID()] = byID
	}
	byID[note.ID().String()] = note.Snapshot()
	return nil
}

// Delete removes the remote copy. Sync detects the deletion through its
// baseline.
func (s *RemoteNoteStore) Delete(ctx context.Context, userID string, id valueobjects.NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.notes[userID]
	if byID == nil {
		return nil
	}
	delete(byID, id.String())
	return nil
}
