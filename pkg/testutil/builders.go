package testutil

import (
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
)

// NoteBuilder helps create test notes with default values
type NoteBuilder struct {
	data entities.NoteData
}

func NewNoteBuilder() *NoteBuilder {
	return &NoteBuilder{
		data: entities.NoteData{
			ID:        valueobjects.NewNoteID().String(),
			UserID:    "test-user-123",
			Title:     "Test Note",
			Content:   "Test content",
			Tags:      []string{"test"},
			CreatedAt: Epoch,
			UpdatedAt: Epoch,
			Version:   1,
		},
	}
}

func (b *NoteBuilder) WithID(id string) *NoteBuilder {
	b.data.ID = id
	return b
}

// WithSeq uses NoteIDString(n) as the id.
func (b *NoteBuilder) WithSeq(n int) *NoteBuilder {
	b.data.ID = NoteIDString(n)
	return b
}

func (b *NoteBuilder) WithUserID(userID string) *NoteBuilder {
	b.data.UserID = userID
	return b
}

func (b *NoteBuilder) WithTitle(title string) *NoteBuilder {
	b.data.Title = title
	return b
}

func (b *NoteBuilder) WithContent(content string) *NoteBuilder {
	b.data.Content = content
	return b
}

func (b *NoteBuilder) WithSummary(summary string) *NoteBuilder {
	b.data.Summary = summary
	return b
}

func (b *NoteBuilder) WithDirectory(directoryID string) *NoteBuilder {
	b.data.DirectoryID = directoryID
	return b
}

func (b *NoteBuilder) WithTags(tags ...string) *NoteBuilder {
	b.data.Tags = tags
	return b
}

func (b *NoteBuilder) WithUpdatedAt(t time.Time) *NoteBuilder {
	b.data.UpdatedAt = t
	if b.data.CreatedAt.After(t) {
		b.data.CreatedAt = t
	}
	return b
}

func (b *NoteBuilder) WithVersion(v int) *NoteBuilder {
	b.data.Version = v
	return b
}

// Deleted makes the built note a tombstone.
func (b *NoteBuilder) Deleted() *NoteBuilder {
	b.data.Deleted = true
	return b
}

// Build reconstructs the note as if loaded from storage.
func (b *NoteBuilder) Build() (*entities.Note, error) {
	return entities.ReconstructNote(b.data)
}

func (b *NoteBuilder) MustBuild() *entities.Note {
	note, err := b.Build()
	if err != nil {
		panic(err)
	}
	return note
}

// MustBuildNew builds a note that has never been saved, ready for a
// repository's create path.
func (b *NoteBuilder) MustBuildNew() *entities.Note {
	note, err := entities.ImportNote(b.data)
	if err != nil {
		panic(err)
	}
	note.MarkEventsAsCommitted()
	return note
}
