package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

var (
	rules = config.DefaultDomainConfig().Note
	t0    = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func TestNewNote(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		content NoteContent
		wantErr bool
	}{
		{"valid", "user-1", NoteContent{Title: "Graph theory", Tags: []string{"Math", "math ", "graphs"}}, false},
		{"missing user", "", NoteContent{Title: "x"}, true},
		{"blank title", "user-1", NoteContent{Title: "   "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, err := NewNote(valueobjects.NewNoteID(), tt.userID, tt.content, rules, t0)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, note.Version())
			assert.True(t, note.IsNew())
			assert.Equal(t, []string{"graphs", "math"}, note.Tags())
			require.Len(t, note.GetUncommittedEvents(), 1)
			assert.Equal(t, events.TypeNoteCreated, note.GetUncommittedEvents()[0].GetEventType())
		})
	}
}

func TestNote_UpdateIncrementsVersionOnlyOnChange(t *testing.T) {
	note, err := NewNote(valueobjects.NewNoteID(), "user-1", NoteContent{Title: "Draft", Content: "a"}, rules, t0)
	require.NoError(t, err)
	note.MarkPersisted()
	note.MarkEventsAsCommitted()

	changed, err := note.Update(NoteContent{Title: "Draft", Content: "a"}, rules, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, note.Version())

	changed, err = note.Update(NoteContent{Title: "Draft", Content: "b"}, rules, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, note.Version())
	assert.Equal(t, 1, note.PersistedVersion())
	assert.Equal(t, t0.Add(time.Minute), note.UpdatedAt())
	assert.Len(t, note.GetUncommittedEvents(), 1)
}

func TestNote_ContentHash(t *testing.T) {
	id := valueobjects.NewNoteID()
	a, _ := NewNote(id, "u", NoteContent{Title: "T", Content: "body", Tags: []string{"b", "a"}}, rules, t0)
	b, _ := NewNote(id, "u", NoteContent{Title: "T", Content: "body", Tags: []string{"a", "b"}}, rules, t0.Add(time.Hour))

	assert.Equal(t, a.ContentHash(), b.ContentHash())

	_, _ = b.Update(NoteContent{Title: "T", Content: "body!", Tags: []string{"a", "b"}}, rules, t0)
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())

	b.MarkDeleted(t0)
	assert.Equal(t, "deleted", b.ContentHash())
	assert.True(t, b.IsDeleted())
}

func TestNote_ApplySnapshot(t *testing.T) {
	id := valueobjects.NewNoteID()
	local, _ := NewNote(id, "u", NoteContent{Title: "Local"}, rules, t0)
	remote, _ := NewNote(id, "u", NoteContent{Title: "Remote", Content: "newer"}, rules, t0.Add(time.Hour))

	require.NoError(t, local.ApplySnapshot(remote))

	assert.Equal(t, "Remote", local.Title())
	assert.Equal(t, remote.ContentHash(), local.ContentHash())
	assert.Equal(t, t0.Add(time.Hour), local.UpdatedAt())
	assert.Equal(t, 2, local.Version())

	other, _ := NewNote(valueobjects.NewNoteID(), "u", NoteContent{Title: "Other"}, rules, t0)
	assert.Error(t, local.ApplySnapshot(other))
}

func TestImportNote(t *testing.T) {
	data := NoteData{ID: valueobjects.NewNoteID().String(), UserID: "u", Title: "Remote", Version: 4, UpdatedAt: t0}

	note, err := ImportNote(data)

	require.NoError(t, err)
	assert.True(t, note.IsNew())
	assert.Equal(t, 4, note.Version())
	assert.Len(t, note.GetUncommittedEvents(), 1)

	data.Deleted = true
	_, err = ImportNote(data)
	assert.Error(t, err)
}

func TestNewEmbedding(t *testing.T) {
	e, err := NewEmbedding([]float32{3, 4}, "m", t0)
	require.NoError(t, err)

	assert.Equal(t, 2, e.Dimension())
	assert.InDelta(t, 1.0, e.Vector().Norm(), 1e-6)
	assert.True(t, e.IsWholeNote())

	idx := 2
	chunk := e.ForNote(valueobjects.NewNoteID(), &idx)
	got, ok := chunk.ChunkIndex()
	assert.True(t, ok)
	assert.Equal(t, 2, got)
	assert.True(t, e.IsWholeNote())

	_, err = NewEmbedding([]float32{0, 0}, "m", t0)
	assert.Error(t, err)
}
