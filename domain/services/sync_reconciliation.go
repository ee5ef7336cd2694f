package services

import (
	"fmt"
	"slices"
	"time"

	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// SyncAction is what a sync pass does with one note id.
type SyncAction string

const (
	SyncActionNone         SyncAction = "NONE"
	SyncActionPull         SyncAction = "PULL"
	SyncActionPush         SyncAction = "PUSH"
	SyncActionDeleteLocal  SyncAction = "DELETE_LOCAL"
	SyncActionDeleteRemote SyncAction = "DELETE_REMOTE"
	SyncActionConflict     SyncAction = "CONFLICT"
)

// SyncDecision is the classification of one note id.
type SyncDecision struct {
	NoteID       string
	Action       SyncAction
	ConflictType entities.ConflictType
	Local        *entities.Note
	Remote       *entities.Note
	Reason       string
}

// ClassifySync decides what to do with one note id. local and remote may be
// nil (absent) or tombstones. baseHash is the content hash both sides agreed
// on at the last successful sync, if any.
func ClassifySync(local, remote *entities.Note, baseHash string, hasBase bool, lastSync time.Time) SyncDecision {
	d := SyncDecision{Local: local, Remote: remote}
	switch {
	case local != nil:
		d.NoteID = local.ID().String()
	case remote != nil:
		d.NoteID = remote.ID().String()
	}

	localPresent := local != nil && !local.IsDeleted()
	remotePresent := remote != nil && !remote.IsDeleted()
	localDeleted := (local != nil && local.IsDeleted()) || (local == nil && hasBase)
	remoteDeleted := (remote != nil && remote.IsDeleted()) || (remote == nil && hasBase)

	localChanged := localPresent && (!hasBase || local.ContentHash() != baseHash)
	remoteChanged := remotePresent && remote.UpdatedAt().After(lastSync) &&
		(!hasBase || remote.ContentHash() != baseHash)

	switch {
	case !localPresent && !remotePresent:
		return d.with(SyncActionNone, "absent on both sides")

	case localPresent && !remotePresent:
		if remoteDeleted {
			if localChanged {
				return d.conflict(entities.ConflictDeleteVsEdit, "deleted remotely, edited locally")
			}
			return d.with(SyncActionDeleteLocal, "deleted remotely, unchanged locally")
		}
		return d.with(SyncActionPush, "new local note")

	case !localPresent && remotePresent:
		if localDeleted {
			if remoteChanged {
				return d.conflict(entities.ConflictDeleteVsEdit, "deleted locally, edited remotely")
			}
			return d.with(SyncActionDeleteRemote, "deleted locally, unchanged remotely")
		}
		return d.with(SyncActionPull, "new remote note")
	}

	if local.ContentHash() == remote.ContentHash() {
		if hasBase && baseHash == local.ContentHash() {
			return d.with(SyncActionNone, "already in sync")
		}
		// Equal content nobody recorded as agreed: a pull that saved but
		// failed afterwards. Pulling again finishes it.
		return d.with(SyncActionPull, "copies match but were never reconciled")
	}
	if !remote.UpdatedAt().After(lastSync) {
		return d.with(SyncActionPush, "remote unchanged since last sync")
	}
	if !localChanged {
		return d.with(SyncActionPull, "local unchanged since last sync")
	}
	if !remoteChanged {
		return d.with(SyncActionPush, "remote content matches last sync")
	}
	if !hasBase {
		return d.conflict(entities.ConflictContent, "copies differ and were never reconciled")
	}
	return d.conflict(entities.ConflictConcurrentEdit, "both sides edited since last sync")
}

func (d SyncDecision) with(action SyncAction, reason string) SyncDecision {
	d.Action = action
	d.Reason = reason
	return d
}

func (d SyncDecision) conflict(t entities.ConflictType, reason string) SyncDecision {
	d.Action = SyncActionConflict
	d.ConflictType = t
	d.Reason = reason
	return d
}

// ClassifyAll classifies every id present locally, remotely or in the
// baseline, in id order.
func ClassifyAll(local, remote []*entities.Note, baseline map[string]string, lastSync time.Time) []SyncDecision {
	localByID := indexNotes(local)
	remoteByID := indexNotes(remote)

	ids := make([]string, 0, len(localByID)+len(remoteByID)+len(baseline))
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range localByID {
		add(id)
	}
	for id := range remoteByID {
		add(id)
	}
	for id := range baseline {
		add(id)
	}
	slices.Sort(ids)

	decisions := make([]SyncDecision, 0, len(ids))
	for _, id := range ids {
		base, hasBase := baseline[id]
		d := ClassifySync(localByID[id], remoteByID[id], base, hasBase, lastSync)
		d.NoteID = id
		decisions = append(decisions, d)
	}
	return decisions
}

func indexNotes(notes []*entities.Note) map[string]*entities.Note {
	byID := make(map[string]*entities.Note, len(notes))
	for _, n := range notes {
		if n != nil {
			byID[n.ID().String()] = n
		}
	}
	return byID
}

// NewSyncConflict builds the conflict record for a CONFLICT decision. A
// missing side becomes a tombstone stamped with lastSync, the latest moment
// it is known to have existed.
func NewSyncConflict(d SyncDecision, lastSync, detectedAt time.Time) entities.SyncConflict {
	local, remote := d.Local, d.Remote
	switch {
	case local == nil && remote != nil:
		local = entities.NewTombstone(remote.ID(), remote.UserID(), lastSync)
	case remote == nil && local != nil:
		remote = entities.NewTombstone(local.ID(), local.UserID(), lastSync)
	}
	return entities.SyncConflict{
		NoteID:     d.NoteID,
		Local:      local,
		Remote:     remote,
		Type:       d.ConflictType,
		DetectedAt: detectedAt,
	}
}

// ResolveConflict settles one conflict. It returns nil without error when
// the strategy is MANUAL and no decision was supplied: the conflict stays
// outstanding.
func ResolveConflict(
	c entities.SyncConflict,
	strategy entities.ResolutionStrategy,
	decision *entities.ManualDecision,
	rules config.NoteRules,
	now time.Time,
) (*entities.ConflictResolution, error) {
	resolution := &entities.ConflictResolution{
		Conflict:   c,
		Strategy:   strategy,
		ResolvedAt: now,
	}

	switch strategy {
	case entities.StrategyKeepLocal:
		resolution.KeptSide = entities.SideLocal
		resolution.Reason = describeKeep(c.Local, "local", strategy)

	case entities.StrategyKeepRemote:
		resolution.KeptSide = entities.SideRemote
		resolution.Reason = describeKeep(c.Remote, "remote", strategy)

	case entities.StrategyKeepMostRecent:
		localAt, remoteAt := c.Local.UpdatedAt(), c.Remote.UpdatedAt()
		switch {
		case remoteAt.After(localAt):
			resolution.KeptSide = entities.SideRemote
			resolution.Reason = fmt.Sprintf("remote copy is newer (%s > %s)", remoteAt.Format(time.RFC3339), localAt.Format(time.RFC3339))
		case localAt.After(remoteAt):
			resolution.KeptSide = entities.SideLocal
			resolution.Reason = fmt.Sprintf("local copy is newer (%s > %s)", localAt.Format(time.RFC3339), remoteAt.Format(time.RFC3339))
		default:
			resolution.KeptSide = entities.SideLocal
			resolution.Reason = "both copies updated at the same time; local copy kept"
		}

	case entities.StrategyManual:
		if decision == nil {
			return nil, nil
		}
		if decision.Merged != nil {
			merged, err := mergeInto(c, *decision.Merged, rules, now)
			if err != nil {
				return nil, err
			}
			resolution.KeptSide = entities.SideMerged
			resolution.Resolved = merged
			resolution.Reason = reasonOr(decision.Reason, "manually merged content")
			return resolution, nil
		}
		if decision.Keep != entities.SideLocal && decision.Keep != entities.SideRemote {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("manual decision for %s must keep LOCAL or REMOTE or supply merged content", c.NoteID))
		}
		resolution.KeptSide = decision.Keep
		resolution.Reason = reasonOr(decision.Reason, fmt.Sprintf("manual decision: keep %s", decision.Keep))

	default:
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown resolution strategy %q", strategy))
	}

	if resolution.KeptSide == entities.SideLocal {
		resolution.Resolved = c.Local.Clone()
	} else {
		resolution.Resolved = c.Remote.Clone()
	}
	return resolution, nil
}

func describeKeep(n *entities.Note, side string, strategy entities.ResolutionStrategy) string {
	if n.IsDeleted() {
		return fmt.Sprintf("%s deletion kept (%s)", side, strategy)
	}
	return fmt.Sprintf("%s copy kept (%s)", side, strategy)
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}

// mergeInto applies merged content on top of whichever live copy exists,
// preferring the local one.
func mergeInto(c entities.SyncConflict, merged entities.NoteContent, rules config.NoteRules, now time.Time) (*entities.Note, error) {
	base := c.Local
	if base.IsDeleted() {
		base = c.Remote
	}
	if base.IsDeleted() {
		return nil, pkgerrors.NewValidationError("cannot merge into two deleted copies")
	}
	note := base.Clone()
	if _, err := note.Update(merged, rules, now); err != nil {
		return nil, err
	}
	return note, nil
}
