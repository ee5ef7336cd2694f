package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest/middleware"
)

// NoteService is the note lifecycle the handler needs.
type NoteService interface {
	CreateNote(ctx context.Context, cmd commands.CreateNoteCommand) (*entities.Note, error)
	UpdateNote(ctx context.Context, cmd commands.UpdateNoteCommand) (*entities.Note, error)
	DeleteNote(ctx context.Context, cmd commands.DeleteNoteCommand) error
	GetNote(ctx context.Context, userID, noteID string) (*entities.Note, error)
	ListNotes(ctx context.Context, userID string) ([]*entities.Note, error)
}

// LinkService creates manual and suggested links.
type LinkService interface {
	LinkNotes(ctx context.Context, cmd commands.LinkNotesCommand) (*aggregates.Edge, error)
	SuggestLinks(ctx context.Context, userID, noteID string) ([]*aggregates.Edge, error)
}

// NoteHandler handles note-related HTTP requests
type NoteHandler struct {
	notes  NoteService
	links  LinkService
	logger *zap.Logger
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes NoteService, links LinkService, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, links: links, logger: logger}
}

// NoteResponse is the JSON form of a note.
type NoteResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary,omitempty"`
	DirectoryID string    `json:"directory_id,omitempty"`
	Tags        []string  `json:"tags"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toNoteResponse(n *entities.Note) NoteResponse {
	tags := n.Tags()
	if tags == nil {
		tags = []string{}
	}
	return NoteResponse{
		ID:          n.ID().String(),
		UserID:      n.UserID(),
		Title:       n.Title(),
		Content:     n.Content(),
		Summary:     n.Summary(),
		DirectoryID: n.DirectoryID(),
		Tags:        tags,
		Version:     n.Version(),
		CreatedAt:   n.CreatedAt(),
		UpdatedAt:   n.UpdatedAt(),
	}
}

// CreateNote handles POST /notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateNoteCommand
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.UserID, _ = middleware.GetUserID(r.Context())
	if err := validateStruct(cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	note, err := h.notes.CreateNote(r.Context(), cmd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, toNoteResponse(note))
}

// ListNotes handles GET /notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	notes, err := h.notes.ListNotes(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	out := make([]NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteResponse(n))
	}
	respondJSON(w, http.StatusOK, map[string]any{"notes": out, "total": len(out)})
}

// GetNote handles GET /notes/{noteID}
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	note, err := h.notes.GetNote(r.Context(), userID, chi.URLParam(r, "noteID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toNoteResponse(note))
}

// UpdateNote handles PUT /notes/{noteID}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateNoteCommand
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.UserID, _ = middleware.GetUserID(r.Context())
	cmd.NoteID = chi.URLParam(r, "noteID")
	if err := validateStruct(cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	note, err := h.notes.UpdateNote(r.Context(), cmd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, toNoteResponse(note))
}

// DeleteNote handles DELETE /notes/{noteID}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	cmd := commands.DeleteNoteCommand{UserID: userID, NoteID: chi.URLParam(r, "noteID")}
	if err := validateStruct(cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.notes.DeleteNote(r.Context(), cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkRequest is the body of POST /notes/{noteID}/links. A zero weight means 1.
type LinkRequest struct {
	TargetID string  `json:"target_id"`
	Weight   float64 `json:"weight"`
}

// LinkNotes handles POST /notes/{noteID}/links
func (h *NoteHandler) LinkNotes(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	userID, _ := middleware.GetUserID(r.Context())
	cmd := commands.LinkNotesCommand{
		UserID:   userID,
		SourceID: chi.URLParam(r, "noteID"),
		TargetID: req.TargetID,
		Weight:   req.Weight,
	}
	if err := validateStruct(cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	edge, err := h.links.LinkNotes(r.Context(), cmd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, edge)
}

// SuggestLinks handles POST /notes/{noteID}/links/suggest
func (h *NoteHandler) SuggestLinks(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	edges, err := h.links.SuggestLinks(r.Context(), userID, chi.URLParam(r, "noteID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if edges == nil {
		edges = []*aggregates.Edge{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"edges": edges, "total": len(edges)})
}
