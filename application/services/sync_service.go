package services

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/events"
	domainservices "github.com/artgluhovskiy/vertex-sub001/domain/services"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/observability"
	"github.com/artgluhovskiy/vertex-sub001/pkg/utils"
)

// SyncService reconciles a user's local notes with the remote store.
// Passes for one user are serialized; different users never contend.
type SyncService struct {
	notes       ports.NoteRepository
	noteService *NoteService
	remote      ports.RemoteNoteStore
	states      ports.SyncStateStore
	publisher   ports.EventPublisher
	clock       ports.Clock
	noteRules   config.NoteRules
	syncRules   config.SyncRules
	locks       *utils.KeyedMutex
	recorder    observability.Recorder
	logger      *zap.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(
	notes ports.NoteRepository,
	noteService *NoteService,
	remote ports.RemoteNoteStore,
	states ports.SyncStateStore,
	publisher ports.EventPublisher,
	clock ports.Clock,
	domainConfig *config.DomainConfig,
	recorder observability.Recorder,
	logger *zap.Logger,
) *SyncService {
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &SyncService{
		notes:       notes,
		noteService: noteService,
		remote:      remote,
		states:      states,
		publisher:   publisher,
		clock:       clock,
		noteRules:   domainConfig.Note,
		syncRules:   domainConfig.Sync,
		locks:       utils.NewKeyedMutex(),
		recorder:    recorder,
		logger:      logger,
	}
}

// syncPass is everything one pass needs.
type syncPass struct {
	userID        string
	local         []*entities.Note
	remote        []*entities.Note
	state         *ports.SyncState
	strategy      entities.ResolutionStrategy
	deleteVsEdit  entities.ResolutionStrategy
	decisions     map[string]entities.ManualDecision
	conflictsOnly bool
}

// Sync reconciles the given local and remote notes. A zero LastSyncTime
// falls back to the stored one.
func (s *SyncService) Sync(ctx context.Context, cmd commands.SyncCommand) (*commands.SyncResult, error) {
	if cmd.UserID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	unlock := s.locks.Lock(cmd.UserID)
	defer unlock()

	state, err := s.states.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	if !cmd.LastSyncTime.IsZero() {
		state.LastSyncTime = cmd.LastSyncTime
	}
	return s.run(ctx, syncPass{
		userID:       cmd.UserID,
		local:        cmd.LocalNotes,
		remote:       cmd.RemoteNotes,
		state:        state,
		strategy:     cmd.ConflictStrategy,
		deleteVsEdit: cmd.DeleteVsEditStrategy,
		decisions:    cmd.Decisions,
	})
}

// SyncUser loads the user's local notes, remote notes and sync state and
// runs a full pass.
func (s *SyncService) SyncUser(ctx context.Context, cmd commands.SyncUserCommand) (*commands.SyncResult, error) {
	if cmd.UserID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	unlock := s.locks.Lock(cmd.UserID)
	defer unlock()

	pass, err := s.load(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	pass.strategy = cmd.ConflictStrategy
	pass.deleteVsEdit = cmd.DeleteVsEditStrategy
	pass.decisions = cmd.Decisions
	return s.run(ctx, pass)
}

// ResolveConflicts runs detection over the stored state and applies the
// strategies to the conflicts only. Without a strategy or decisions it just
// reports them.
func (s *SyncService) ResolveConflicts(ctx context.Context, cmd commands.ResolveConflictsCommand) (*commands.SyncResult, error) {
	if cmd.UserID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	unlock := s.locks.Lock(cmd.UserID)
	defer unlock()

	pass, err := s.load(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	pass.strategy = cmd.Strategy
	pass.deleteVsEdit = cmd.DeleteVsEditStrategy
	pass.decisions = cmd.Decisions
	pass.conflictsOnly = true
	return s.run(ctx, pass)
}

func (s *SyncService) load(ctx context.Context, userID string) (syncPass, error) {
	local, err := s.notes.GetByUserID(ctx, userID)
	if err != nil {
		return syncPass{}, fmt.Errorf("failed to load local notes: %w", err)
	}
	remote, err := s.remote.ListByUserID(ctx, userID)
	if err != nil {
		return syncPass{}, fmt.Errorf("failed to load remote notes: %w", err)
	}
	state, err := s.states.Get(ctx, userID)
	if err != nil {
		return syncPass{}, fmt.Errorf("failed to load sync state: %w", err)
	}
	return syncPass{userID: userID, local: local, remote: remote, state: state}, nil
}

func (s *SyncService) run(ctx context.Context, pass syncPass) (result *commands.SyncResult, err error) {
	for _, strategy := range []entities.ResolutionStrategy{pass.strategy, pass.deleteVsEdit} {
		if strategy != "" && !strategy.IsValid() {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown resolution strategy %q", strategy))
		}
	}
	ctx, span := observability.StartSpan(ctx, tracerName, "SyncService.run",
		attribute.String("user.id", pass.userID),
		attribute.Bool("sync.conflicts_only", pass.conflictsOnly))
	defer func() { observability.EndSpan(span, err) }()

	startedAt := s.clock.Now()
	lastSync := pass.state.LastSyncTime
	baseline := maps.Clone(pass.state.Baseline)
	if baseline == nil {
		baseline = make(map[string]string)
	}

	result = &commands.SyncResult{
		UserID:       pass.userID,
		SyncedNotes:  []commands.SyncedNote{},
		Conflicts:    []commands.ConflictView{},
		Resolutions:  []commands.ResolutionView{},
		Failures:     []commands.SyncFailure{},
		StartedAt:    startedAt,
		LastSyncTime: lastSync,
	}

	processed := 0
	for _, d := range domainservices.ClassifyAll(pass.local, pass.remote, pass.state.Baseline, lastSync) {
		if d.Action == domainservices.SyncActionNone {
			if !pass.conflictsOnly {
				settleBaseline(baseline, d)
			}
			continue
		}
		if pass.conflictsOnly && d.Action != domainservices.SyncActionConflict {
			continue
		}
		if limit := s.syncRules.MaxNotesPerPass; limit > 0 && processed >= limit {
			result.DeferredCount++
			continue
		}
		processed++

		if d.Action == domainservices.SyncActionConflict {
			s.handleConflict(ctx, pass, d, lastSync, baseline, result)
			continue
		}
		if err := s.apply(ctx, pass.userID, d); err != nil {
			s.fail(result, d.NoteID, string(d.Action), err)
			continue
		}
		settleBaseline(baseline, d)
		result.SuccessCount++
		result.SyncedNotes = append(result.SyncedNotes, commands.SyncedNote{
			NoteID: d.NoteID,
			Action: string(d.Action),
			Reason: d.Reason,
		})
	}

	result.TotalProcessed = result.SuccessCount + result.FailureCount + result.ConflictCount
	result.CompletedAt = s.clock.Now()

	// Advancing lastSyncTime past a failed or undecided note would hide it
	// from the next pass.
	next := &ports.SyncState{UserID: pass.userID, LastSyncTime: lastSync, Baseline: baseline}
	if !pass.conflictsOnly && result.FailureCount == 0 && result.ConflictCount == 0 && result.DeferredCount == 0 {
		next.LastSyncTime = startedAt
	}
	if err := s.states.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save sync state: %w", err)
	}
	result.LastSyncTime = next.LastSyncTime

	s.recorder.ObserveSync(result.SuccessCount, result.FailureCount, result.ConflictCount, result.CompletedAt.Sub(startedAt))
	s.publisher.PublishAsync(ctx, events.NewSyncCompleted(pass.userID,
		result.TotalProcessed, result.SuccessCount, result.FailureCount, result.ConflictCount, result.CompletedAt))

	s.logger.Info("Sync pass completed",
		zap.String("userID", pass.userID),
		zap.Bool("conflictsOnly", pass.conflictsOnly),
		zap.Int("processed", result.TotalProcessed),
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount),
		zap.Int("conflicts", result.ConflictCount),
		zap.Int("deferred", result.DeferredCount),
		zap.Time("lastSyncTime", result.LastSyncTime))
	return result, nil
}

// apply carries out a non-conflict decision.
func (s *SyncService) apply(ctx context.Context, userID string, d domainservices.SyncDecision) error {
	switch d.Action {
	case domainservices.SyncActionPull:
		_, err := s.noteService.UpsertFromRemote(ctx, d.Remote)
		return err
	case domainservices.SyncActionPush:
		return s.remote.Put(ctx, d.Local)
	case domainservices.SyncActionDeleteLocal:
		return s.noteService.RemoveLocal(ctx, userID, notePresent(d.Local, d.Remote).ID())
	case domainservices.SyncActionDeleteRemote:
		return s.remote.Delete(ctx, userID, notePresent(d.Remote, d.Local).ID())
	}
	return pkgerrors.NewInternalError("unexpected sync action " + string(d.Action))
}

// handleConflict resolves a conflict when a strategy or decision applies,
// and otherwise records it as outstanding.
func (s *SyncService) handleConflict(
	ctx context.Context,
	pass syncPass,
	d domainservices.SyncDecision,
	lastSync time.Time,
	baseline map[string]string,
	result *commands.SyncResult,
) {
	conflict := domainservices.NewSyncConflict(d, lastSync, s.clock.Now())

	strategy := pass.strategy
	if d.ConflictType == entities.ConflictDeleteVsEdit {
		strategy = pass.deleteVsEdit
	}
	var decision *entities.ManualDecision
	if md, ok := pass.decisions[d.NoteID]; ok {
		decision = &md
		if strategy == "" {
			strategy = entities.StrategyManual
		}
	}

	var resolution *entities.ConflictResolution
	if strategy != "" {
		var err error
		resolution, err = domainservices.ResolveConflict(conflict, strategy, decision, s.noteRules, s.clock.Now())
		if err != nil {
			s.fail(result, d.NoteID, string(d.Action), err)
			return
		}
	}
	if resolution == nil {
		result.ConflictCount++
		result.Conflicts = append(result.Conflicts, commands.NewConflictView(conflict))
		result.OutstandingConflicts = append(result.OutstandingConflicts, conflict)
		return
	}

	hash, err := s.applyResolution(ctx, pass.userID, resolution)
	if err != nil {
		s.fail(result, d.NoteID, string(d.Action), err)
		return
	}
	if hash == "" {
		delete(baseline, d.NoteID)
	} else {
		baseline[d.NoteID] = hash
	}
	result.SuccessCount++
	result.Resolutions = append(result.Resolutions, commands.NewResolutionView(resolution))
	result.Resolved = append(result.Resolved, resolution)
	result.SyncedNotes = append(result.SyncedNotes, commands.SyncedNote{
		NoteID: d.NoteID,
		Action: "RESOLVE_" + string(resolution.KeptSide),
		Reason: resolution.Reason,
	})
}

// applyResolution makes both sides hold the resolved note, or removes it
// from both when a deletion won. A kept remote copy is not pushed back. It
// returns the agreed content hash, empty for a deletion.
func (s *SyncService) applyResolution(ctx context.Context, userID string, r *entities.ConflictResolution) (string, error) {
	resolved := r.Resolved
	if resolved.IsDeleted() {
		if err := s.noteService.RemoveLocal(ctx, userID, resolved.ID()); err != nil {
			return "", err
		}
		if err := s.remote.Delete(ctx, userID, resolved.ID()); err != nil {
			return "", err
		}
		return "", nil
	}

	local := resolved
	var indexErr error
	if r.KeptSide != entities.SideLocal {
		upserted, err := s.noteService.UpsertFromRemote(ctx, resolved)
		if upserted == nil {
			return "", err
		}
		local, indexErr = upserted, err
	}
	if r.KeptSide != entities.SideRemote {
		if err := s.remote.Put(ctx, local); err != nil {
			return "", err
		}
	}
	if indexErr != nil {
		// Both sides hold the resolved content; the next pass re-pulls it
		// to retry indexing.
		return "", indexErr
	}
	return local.ContentHash(), nil
}

func (s *SyncService) fail(result *commands.SyncResult, noteID, action string, err error) {
	result.FailureCount++
	result.Failures = append(result.Failures, commands.SyncFailure{
		NoteID: noteID,
		Action: action,
		Error:  err.Error(),
	})
	s.logger.Warn("Sync item failed",
		zap.String("noteID", noteID),
		zap.String("action", action),
		zap.Error(err))
}

// settleBaseline records what both sides agree on after a decision.
func settleBaseline(baseline map[string]string, d domainservices.SyncDecision) {
	switch d.Action {
	case domainservices.SyncActionPull:
		baseline[d.NoteID] = d.Remote.ContentHash()
	case domainservices.SyncActionPush:
		baseline[d.NoteID] = d.Local.ContentHash()
	case domainservices.SyncActionDeleteLocal, domainservices.SyncActionDeleteRemote:
		delete(baseline, d.NoteID)
	case domainservices.SyncActionNone:
		if d.Local != nil && !d.Local.IsDeleted() && d.Remote != nil && !d.Remote.IsDeleted() {
			baseline[d.NoteID] = d.Local.ContentHash()
		} else {
			delete(baseline, d.NoteID)
		}
	}
}

// notePresent returns the first non-nil note.
func notePresent(notes ...*entities.Note) *entities.Note {
	for _, n := range notes {
		if n != nil {
			return n
		}
	}
	return nil
}
