package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/interfaces/http/rest/middleware"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// SyncService reconciles local and remote notes.
type SyncService interface {
	SyncUser(ctx context.Context, cmd commands.SyncUserCommand) (*commands.SyncResult, error)
	ResolveConflicts(ctx context.Context, cmd commands.ResolveConflictsCommand) (*commands.SyncResult, error)
}

// SyncHandler handles sync requests
type SyncHandler struct {
	syncer SyncService
	logger *zap.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncer SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, logger: logger}
}

// Sync handles POST /sync. Outstanding conflicts are part of a successful
// result; the caller resolves them through /sync/conflicts/resolve.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SyncUserCommand
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.UserID, _ = middleware.GetUserID(r.Context())
	if err := validateStruct(cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.syncer.SyncUser(r.Context(), cmd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ResolveConflictsResponse pairs the pass result with the pending signal.
type ResolveConflictsResponse struct {
	*commands.SyncResult
	Pending *ErrorResponse `json:"pending,omitempty"`
}

// ResolveConflicts handles POST /sync/conflicts/resolve. Conflicts the
// strategies could not settle answer 409 with the full result attached.
func (h *SyncHandler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ResolveConflictsCommand
	if err := decodeJSON(r, &cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	cmd.UserID, _ = middleware.GetUserID(r.Context())
	if err := validateStruct(cmd); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.syncer.ResolveConflicts(r.Context(), cmd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if pending := pkgerrors.GetAppError(result.PendingError()); pending != nil {
		respondJSON(w, pending.HTTPStatus, ResolveConflictsResponse{
			SyncResult: result,
			Pending: &ErrorResponse{
				Error:   true,
				Type:    string(pending.Type),
				Message: pending.Message,
				Details: pending.Details,
			},
		})
		return
	}
	respondJSON(w, http.StatusOK, ResolveConflictsResponse{SyncResult: result})
}
