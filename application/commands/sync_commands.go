package commands

import (
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// SyncCommand reconciles a user's local and remote notes. An empty
// ConflictStrategy leaves CONTENT and CONCURRENT_EDIT conflicts outstanding;
// DELETE_VS_EDIT conflicts are only resolved with an explicit
// DeleteVsEditStrategy.
type SyncCommand struct {
	UserID               string
	LocalNotes           []*entities.Note
	RemoteNotes          []*entities.Note
	LastSyncTime         time.Time
	ConflictStrategy     entities.ResolutionStrategy
	DeleteVsEditStrategy entities.ResolutionStrategy
	// Decisions are MANUAL decisions keyed by note id.
	Decisions map[string]entities.ManualDecision
}

// SyncUserCommand syncs a user against the stored local notes, remote notes
// and sync state. The strategy fields mean the same as in SyncCommand.
type SyncUserCommand struct {
	UserID               string                             `json:"user_id" validate:"required"`
	ConflictStrategy     entities.ResolutionStrategy        `json:"conflict_strategy" validate:"omitempty,oneof=KEEP_LOCAL KEEP_REMOTE KEEP_MOST_RECENT MANUAL"`
	DeleteVsEditStrategy entities.ResolutionStrategy        `json:"delete_vs_edit_strategy" validate:"omitempty,oneof=KEEP_LOCAL KEEP_REMOTE KEEP_MOST_RECENT MANUAL"`
	Decisions            map[string]entities.ManualDecision `json:"decisions"`
}

// ResolveConflictsCommand runs conflict detection for a user and applies
// the strategies to the conflicts only.
type ResolveConflictsCommand struct {
	UserID               string                             `json:"user_id" validate:"required"`
	Strategy             entities.ResolutionStrategy        `json:"strategy" validate:"omitempty,oneof=KEEP_LOCAL KEEP_REMOTE KEEP_MOST_RECENT MANUAL"`
	DeleteVsEditStrategy entities.ResolutionStrategy        `json:"delete_vs_edit_strategy" validate:"omitempty,oneof=KEEP_LOCAL KEEP_REMOTE KEEP_MOST_RECENT MANUAL"`
	Decisions            map[string]entities.ManualDecision `json:"decisions"`
}

// SyncFailure records one note that could not be applied.
type SyncFailure struct {
	NoteID string `json:"note_id"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

// SyncedNote is one note a pass changed.
type SyncedNote struct {
	NoteID string `json:"note_id"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// ConflictView is the caller-facing form of an outstanding conflict.
type ConflictView struct {
	NoteID        string                `json:"note_id"`
	Type          entities.ConflictType `json:"conflict_type"`
	LocalTitle    string                `json:"local_title,omitempty"`
	RemoteTitle   string                `json:"remote_title,omitempty"`
	LocalDeleted  bool                  `json:"local_deleted"`
	RemoteDeleted bool                  `json:"remote_deleted"`
	LocalUpdated  time.Time             `json:"local_updated_at"`
	RemoteUpdated time.Time             `json:"remote_updated_at"`
	DetectedAt    time.Time             `json:"detected_at"`
}

// ResolutionView is the caller-facing form of a settled conflict.
type ResolutionView struct {
	NoteID     string                      `json:"note_id"`
	Type       entities.ConflictType       `json:"conflict_type"`
	Strategy   entities.ResolutionStrategy `json:"strategy"`
	KeptSide   entities.Side               `json:"kept_side"`
	Reason     string                      `json:"reason"`
	ResolvedAt time.Time                   `json:"resolved_at"`
}

// SyncResult summarizes a sync pass.
// TotalProcessed = SuccessCount + FailureCount + ConflictCount. DeferredCount
// notes were left for the next pass by the per-pass limit.
type SyncResult struct {
	UserID         string           `json:"user_id"`
	TotalProcessed int              `json:"total_processed"`
	SuccessCount   int              `json:"success_count"`
	FailureCount   int              `json:"failure_count"`
	ConflictCount  int              `json:"conflict_count"`
	DeferredCount  int              `json:"deferred_count"`
	SyncedNotes    []SyncedNote     `json:"synced_notes"`
	Conflicts      []ConflictView   `json:"conflicts"`
	Resolutions    []ResolutionView `json:"resolutions"`
	Failures       []SyncFailure    `json:"failures"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
	LastSyncTime   time.Time        `json:"last_sync_time"`

	// OutstandingConflicts carries the full snapshots of unresolved conflicts.
	OutstandingConflicts []entities.SyncConflict `json:"-"`
	// Resolved carries the full resolutions applied in this pass.
	Resolved []*entities.ConflictResolution `json:"-"`
}

// HasOutstandingConflicts reports whether the caller still owes decisions.
func (r *SyncResult) HasOutstandingConflicts() bool {
	return r.ConflictCount > 0
}

// PendingError signals outstanding conflicts, or returns nil.
func (r *SyncResult) PendingError() error {
	if !r.HasOutstandingConflicts() {
		return nil
	}
	return pkgerrors.NewSyncConflictPendingError(r.UserID, r.ConflictCount)
}

// NewConflictView flattens a conflict for callers.
func NewConflictView(c entities.SyncConflict) ConflictView {
	v := ConflictView{NoteID: c.NoteID, Type: c.Type, DetectedAt: c.DetectedAt}
	if c.Local != nil {
		v.LocalTitle = c.Local.Title()
		v.LocalDeleted = c.Local.IsDeleted()
		v.LocalUpdated = c.Local.UpdatedAt()
	}
	if c.Remote != nil {
		v.RemoteTitle = c.Remote.Title()
		v.RemoteDeleted = c.Remote.IsDeleted()
		v.RemoteUpdated = c.Remote.UpdatedAt()
	}
	return v
}

// NewResolutionView flattens a resolution for callers.
func NewResolutionView(r *entities.ConflictResolution) ResolutionView {
	return ResolutionView{
		NoteID:     r.Conflict.NoteID,
		Type:       r.Conflict.Type,
		Strategy:   r.Strategy,
		KeptSide:   r.KeptSide,
		Reason:     r.Reason,
		ResolvedAt: r.ResolvedAt,
	}
}
