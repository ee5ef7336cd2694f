package commands

import "github.com/artgluhovskiy/vertex-sub001/domain/core/entities"

// CreateNoteCommand represents the command to create a new note
type CreateNoteCommand struct {
	UserID      string   `json:"user_id" validate:"required"`
	Title       string   `json:"title" validate:"required,max=512"`
	Content     string   `json:"content"`
	Summary     string   `json:"summary"`
	DirectoryID string   `json:"directory_id"`
	Tags        []string `json:"tags" validate:"max=64,dive,min=1,max=100"`
}

// NoteContent returns the note content carried by the command.
func (c CreateNoteCommand) NoteContent() entities.NoteContent {
	return entities.NoteContent{
		Title:       c.Title,
		Content:     c.Content,
		Summary:     c.Summary,
		DirectoryID: c.DirectoryID,
		Tags:        c.Tags,
	}
}

// UpdateNoteCommand replaces a note's content. ExpectedVersion, when
// positive, must match the stored version.
type UpdateNoteCommand struct {
	NoteID          string   `json:"note_id" validate:"required,uuid"`
	UserID          string   `json:"user_id" validate:"required"`
	Title           string   `json:"title" validate:"required,max=512"`
	Content         string   `json:"content"`
	Summary         string   `json:"summary"`
	DirectoryID     string   `json:"directory_id"`
	Tags            []string `json:"tags" validate:"max=64,dive,min=1,max=100"`
	ExpectedVersion int      `json:"expected_version" validate:"min=0"`
}

func (c UpdateNoteCommand) NoteContent() entities.NoteContent {
	return entities.NoteContent{
		Title:       c.Title,
		Content:     c.Content,
		Summary:     c.Summary,
		DirectoryID: c.DirectoryID,
		Tags:        c.Tags,
	}
}

// DeleteNoteCommand represents the command to delete a note
type DeleteNoteCommand struct {
	NoteID string `json:"note_id" validate:"required,uuid"`
	UserID string `json:"user_id" validate:"required"`
}

// LinkNotesCommand creates a manual link between two notes.
type LinkNotesCommand struct {
	UserID   string  `json:"user_id" validate:"required"`
	SourceID string  `json:"source_id" validate:"required,uuid"`
	TargetID string  `json:"target_id" validate:"required,uuid,nefield=SourceID"`
	Weight   float64 `json:"weight" validate:"gte=0,lte=1"`
}
