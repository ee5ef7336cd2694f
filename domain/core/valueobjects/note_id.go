package valueobjects

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// NoteID is the stable identity of a note. Content, tags, links and
// embeddings change over a note's life; its NoteID never does.
type NoteID struct {
	value string
}

// NewNoteID creates a time-ordered NoteID (UUIDv7).
func NewNoteID() NoteID {
	id, err := uuid.NewV7()
	if err != nil {
		return NoteID{value: uuid.New().String()}
	}
	return NoteID{value: id.String()}
}

// NewNoteIDFromString creates a NoteID from an existing string
func NewNoteIDFromString(id string) (NoteID, error) {
	if id == "" {
		return NoteID{}, errors.New("note ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return NoteID{}, errors.New("note ID must be a valid UUID")
	}
	return NoteID{value: id}, nil
}

// MustNoteID panics on an invalid id. Intended for constants and tests.
func MustNoteID(id string) NoteID {
	noteID, err := NewNoteIDFromString(id)
	if err != nil {
		panic(err)
	}
	return noteID
}

func (id NoteID) String() string {
	return id.value
}

// Equals checks if two NoteIDs are equal
func (id NoteID) Equals(other NoteID) bool {
	return id.value == other.value
}

// IsZero checks if the NoteID is the zero value
func (id NoteID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NoteID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NoteID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("NoteID must be a string")
	}
	parsed, err := NewNoteIDFromString(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
