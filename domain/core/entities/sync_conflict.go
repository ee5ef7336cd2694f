package entities

import "time"

// ConflictType classifies why two copies of a note could not be merged.
type ConflictType string

const (
	// ConflictContent: both copies exist, differ, and were never reconciled.
	ConflictContent ConflictType = "CONTENT"
	// ConflictDeleteVsEdit: one side deleted the note, the other edited it.
	ConflictDeleteVsEdit ConflictType = "DELETE_VS_EDIT"
	// ConflictConcurrentEdit: both sides edited since the last sync.
	ConflictConcurrentEdit ConflictType = "CONCURRENT_EDIT"
)

// ResolutionStrategy selects how a conflict is settled.
type ResolutionStrategy string

const (
	StrategyKeepLocal      ResolutionStrategy = "KEEP_LOCAL"
	StrategyKeepRemote     ResolutionStrategy = "KEEP_REMOTE"
	StrategyKeepMostRecent ResolutionStrategy = "KEEP_MOST_RECENT"
	StrategyManual         ResolutionStrategy = "MANUAL"
)

// IsValid reports whether s is a known strategy.
func (s ResolutionStrategy) IsValid() bool {
	switch s {
	case StrategyKeepLocal, StrategyKeepRemote, StrategyKeepMostRecent, StrategyManual:
		return true
	}
	return false
}

// Side names which copy a resolution kept.
type Side string

const (
	SideLocal  Side = "LOCAL"
	SideRemote Side = "REMOTE"
	SideMerged Side = "MERGED"
)

// SyncConflict holds both snapshots of a diverged note. A side that no
// longer has the note is represented by a tombstone.
type SyncConflict struct {
	NoteID     string       `json:"note_id"`
	Local      *Note        `json:"-"`
	Remote     *Note        `json:"-"`
	Type       ConflictType `json:"conflict_type"`
	DetectedAt time.Time    `json:"detected_at"`
}

// ManualDecision is an external decision for a MANUAL resolution. Merged,
// when set, wins over Keep.
type ManualDecision struct {
	Keep   Side         `json:"keep"`
	Merged *NoteContent `json:"merged,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// ConflictResolution is the settled outcome of a conflict.
type ConflictResolution struct {
	Conflict   SyncConflict
	Strategy   ResolutionStrategy
	Resolved   *Note
	KeptSide   Side
	Reason     string
	ResolvedAt time.Time
}
