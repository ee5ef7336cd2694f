package events

import "time"

// NoteCreated is raised when a new note is created
type NoteCreated struct {
	BaseEvent
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

// NewNoteCreated creates a NoteCreated event
func NewNoteCreated(noteID, userID, title string, tags []string, timestamp time.Time) NoteCreated {
	return NoteCreated{
		BaseEvent: BaseEvent{
			AggregateID: noteID,
			EventType:   TypeNoteCreated,
			UserID:      userID,
			Timestamp:   timestamp,
			Version:     1,
		},
		Title: title,
		Tags:  tags,
	}
}

// NoteUpdated is raised on every content-affecting mutation
type NoteUpdated struct {
	BaseEvent
	Title         string `json:"title"`
	ContentChange bool   `json:"content_changed"`
	TagsChanged   bool   `json:"tags_changed"`
}

// NewNoteUpdated creates a NoteUpdated event
func NewNoteUpdated(noteID, userID, title string, version int, contentChanged, tagsChanged bool, timestamp time.Time) NoteUpdated {
	return NoteUpdated{
		BaseEvent: BaseEvent{
			AggregateID: noteID,
			EventType:   TypeNoteUpdated,
			UserID:      userID,
			Timestamp:   timestamp,
			Version:     version,
		},
		Title:         title,
		ContentChange: contentChanged,
		TagsChanged:   tagsChanged,
	}
}

// NoteDeleted is raised when a note and everything it owns is removed
type NoteDeleted struct {
	BaseEvent
}

// NewNoteDeleted creates a NoteDeleted event
func NewNoteDeleted(noteID, userID string, version int, timestamp time.Time) NoteDeleted {
	return NoteDeleted{
		BaseEvent: BaseEvent{
			AggregateID: noteID,
			EventType:   TypeNoteDeleted,
			UserID:      userID,
			Timestamp:   timestamp,
			Version:     version,
		},
	}
}
