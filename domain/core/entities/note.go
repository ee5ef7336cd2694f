package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// NoteContent is the mutable part of a note.
type NoteContent struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Summary     string   `json:"summary,omitempty"`
	DirectoryID string   `json:"directory_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// NoteData is the flat persistence form of a note.
type NoteData struct {
	ID          string
	UserID      string
	DirectoryID string
	Title       string
	Content     string
	Summary     string
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int
	Deleted     bool
}

// Note is the aggregate root of the knowledge base.
// The version counter increments on every content-affecting mutation and is
// checked against persistedVersion by repositories on save.
type Note struct {
	id          valueobjects.NoteID
	userID      string
	directoryID string
	title       string
	content     string
	summary     string
	tags        []string
	createdAt   time.Time
	updatedAt   time.Time
	version     int
	deleted     bool

	persistedVersion int
	events           []events.DomainEvent
}

// NewNote creates a note with full business rule validation
func NewNote(id valueobjects.NoteID, userID string, c NoteContent, rules config.NoteRules, now time.Time) (*Note, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("note id cannot be empty")
	}
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	c.Tags = NormalizeTags(c.Tags)
	if err := c.Validate(rules); err != nil {
		return nil, err
	}

	note := &Note{
		id:          id,
		userID:      userID,
		directoryID: c.DirectoryID,
		title:       strings.TrimSpace(c.Title),
		content:     c.Content,
		summary:     c.Summary,
		tags:        c.Tags,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}
	note.addEvent(events.NewNoteCreated(id.String(), userID, note.title, note.Tags(), now))
	return note, nil
}

// ReconstructNote rebuilds a note from storage without raising events.
func ReconstructNote(data NoteData) (*Note, error) {
	id, err := valueobjects.NewNoteIDFromString(data.ID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	if data.UserID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	return &Note{
		id:               id,
		userID:           data.UserID,
		directoryID:      data.DirectoryID,
		title:            data.Title,
		content:          data.Content,
		summary:          data.Summary,
		tags:             NormalizeTags(data.Tags),
		createdAt:        data.CreatedAt,
		updatedAt:        data.UpdatedAt,
		version:          data.Version,
		deleted:          data.Deleted,
		persistedVersion: data.Version,
	}, nil
}

// ImportNote adopts a note that exists elsewhere (a remote copy) as a new
// local aggregate. Identity and timestamps are preserved.
func ImportNote(data NoteData) (*Note, error) {
	note, err := ReconstructNote(data)
	if err != nil {
		return nil, err
	}
	if note.deleted {
		return nil, pkgerrors.NewValidationError("cannot import a deleted note")
	}
	if note.version < 1 {
		note.version = 1
	}
	note.persistedVersion = 0
	note.addEvent(events.NewNoteCreated(note.id.String(), note.userID, note.title, note.Tags(), note.updatedAt))
	return note, nil
}

// NewTombstone builds a deletion marker for a note that is known to have
// been removed at the given time.
func NewTombstone(id valueobjects.NoteID, userID string, deletedAt time.Time) *Note {
	return &Note{
		id:        id,
		userID:    userID,
		createdAt: deletedAt,
		updatedAt: deletedAt,
		deleted:   true,
	}
}

// Validate checks content against the configured note rules.
func (c NoteContent) Validate(rules config.NoteRules) error {
	titleLen := utf8.RuneCountInString(strings.TrimSpace(c.Title))
	if titleLen < rules.MinTitleLength {
		return pkgerrors.NewValidationError("title is required")
	}
	if rules.MaxTitleLength > 0 && titleLen > rules.MaxTitleLength {
		return pkgerrors.NewValidationError("title is too long")
	}
	if rules.MaxContentLength > 0 && len(c.Content) > rules.MaxContentLength {
		return pkgerrors.NewValidationError("content is too long")
	}
	if rules.MaxTagsPerNote > 0 && len(c.Tags) > rules.MaxTagsPerNote {
		return pkgerrors.NewValidationError("too many tags")
	}
	return nil
}

// Getters

func (n *Note) ID() valueobjects.NoteID { return n.id }
func (n *Note) UserID() string          { return n.userID }
func (n *Note) DirectoryID() string     { return n.directoryID }
func (n *Note) Title() string           { return n.title }
func (n *Note) Content() string         { return n.content }
func (n *Note) Summary() string         { return n.summary }
func (n *Note) CreatedAt() time.Time    { return n.createdAt }
func (n *Note) UpdatedAt() time.Time    { return n.updatedAt }
func (n *Note) Version() int            { return n.version }
func (n *Note) IsDeleted() bool         { return n.deleted }

// PersistedVersion is the version the note had when it was loaded or last saved.
func (n *Note) PersistedVersion() int { return n.persistedVersion }

// IsNew reports whether the note has never been saved.
func (n *Note) IsNew() bool { return n.persistedVersion == 0 }

// Tags returns a copy of the note's normalized tags.
func (n *Note) Tags() []string {
	return slices.Clone(n.tags)
}

// HasTags reports whether the note carries every tag in want.
func (n *Note) HasTags(want []string) bool {
	for _, t := range NormalizeTags(want) {
		if _, found := slices.BinarySearch(n.tags, t); !found {
			return false
		}
	}
	return true
}

// SearchableText is the text sent to embedding models.
func (n *Note) SearchableText() string {
	if n.content == "" {
		return n.title
	}
	return n.title + "\n\n" + n.content
}

// Update applies new content. It reports false when nothing changed, in
// which case the version is left untouched.
func (n *Note) Update(c NoteContent, rules config.NoteRules, now time.Time) (bool, error) {
	if n.deleted {
		return false, pkgerrors.NewValidationError("cannot update a deleted note")
	}
	c.Tags = NormalizeTags(c.Tags)
	c.Title = strings.TrimSpace(c.Title)
	if err := c.Validate(rules); err != nil {
		return false, err
	}

	contentChanged := c.Title != n.title || c.Content != n.content || c.Summary != n.summary || c.DirectoryID != n.directoryID
	tagsChanged := !slices.Equal(c.Tags, n.tags)
	if !contentChanged && !tagsChanged {
		return false, nil
	}

	n.title = c.Title
	n.content = c.Content
	n.summary = c.Summary
	n.directoryID = c.DirectoryID
	n.tags = c.Tags
	n.touch(now)
	n.addEvent(events.NewNoteUpdated(n.id.String(), n.userID, n.title, n.version, contentChanged, tagsChanged, now))
	return true, nil
}

// ApplySnapshot overwrites this note's content with another copy of the same
// note, keeping the other copy's update time.
func (n *Note) ApplySnapshot(other *Note) error {
	if !n.id.Equals(other.id) {
		return pkgerrors.NewValidationError("snapshot belongs to a different note")
	}
	if other.deleted {
		return pkgerrors.NewValidationError("cannot apply a deleted snapshot")
	}
	if n.ContentHash() == other.ContentHash() {
		return nil
	}
	n.title = other.title
	n.content = other.content
	n.summary = other.summary
	n.directoryID = other.directoryID
	n.tags = slices.Clone(other.tags)
	n.deleted = false
	n.touch(other.updatedAt)
	n.addEvent(events.NewNoteUpdated(n.id.String(), n.userID, n.title, n.version, true, true, other.updatedAt))
	return nil
}

// MarkDeleted turns the note into a tombstone.
func (n *Note) MarkDeleted(now time.Time) {
	if n.deleted {
		return
	}
	n.deleted = true
	n.touch(now)
	n.addEvent(events.NewNoteDeleted(n.id.String(), n.userID, n.version, now))
}

// MarkPersisted records a successful save.
func (n *Note) MarkPersisted() {
	n.persistedVersion = n.version
}

// ContentHash fingerprints everything sync compares. Tombstones hash to a
// fixed marker.
func (n *Note) ContentHash() string {
	if n.deleted {
		return "deleted"
	}
	h := sha256.New()
	for _, part := range []string{n.title, n.content, n.summary, n.directoryID, strings.Join(n.tags, "\x1f")} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Snapshot returns the flat persistence form.
func (n *Note) Snapshot() NoteData {
	return NoteData{
		ID:          n.id.String(),
		UserID:      n.userID,
		DirectoryID: n.directoryID,
		Title:       n.title,
		Content:     n.content,
		Summary:     n.summary,
		Tags:        n.Tags(),
		CreatedAt:   n.createdAt,
		UpdatedAt:   n.updatedAt,
		Version:     n.version,
		Deleted:     n.deleted,
	}
}

// Clone copies the note without its pending events.
func (n *Note) Clone() *Note {
	cp := *n
	cp.tags = slices.Clone(n.tags)
	cp.events = nil
	return &cp
}

// GetUncommittedEvents returns events raised since the last commit
func (n *Note) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the pending events
func (n *Note) MarkEventsAsCommitted() {
	n.events = nil
}

func (n *Note) touch(at time.Time) {
	n.version++
	n.updatedAt = at
}

func (n *Note) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}

// NormalizeTags lowercases, trims, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
