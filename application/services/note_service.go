package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/utils"
)

// NoteServiceConfig selects how saved notes reach the indexes.
type NoteServiceConfig struct {
	// AsyncIndexing leaves indexing to the subscriber of the note events
	// instead of indexing before the write returns.
	AsyncIndexing bool
}

// NoteService owns the note lifecycle: validation, optimistic locking,
// indexing and event publication. Writes to one note are serialized.
type NoteService struct {
	notes     ports.NoteRepository
	edges     ports.EdgeRepository
	indexer   *IndexingService
	publisher ports.EventPublisher
	clock     ports.Clock
	ids       ports.IDGenerator
	rules     config.NoteRules
	cfg       NoteServiceConfig
	locks     *utils.KeyedMutex
	logger    *zap.Logger
}

// NewNoteService creates a new note service
func NewNoteService(
	notes ports.NoteRepository,
	edges ports.EdgeRepository,
	indexer *IndexingService,
	publisher ports.EventPublisher,
	clock ports.Clock,
	ids ports.IDGenerator,
	domainConfig *config.DomainConfig,
	cfg NoteServiceConfig,
	logger *zap.Logger,
) *NoteService {
	return &NoteService{
		notes:     notes,
		edges:     edges,
		indexer:   indexer,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		rules:     domainConfig.Note,
		cfg:       cfg,
		locks:     utils.NewKeyedMutex(),
		logger:    logger,
	}
}

// CreateNote validates and stores a new note.
func (s *NoteService) CreateNote(ctx context.Context, cmd commands.CreateNoteCommand) (*entities.Note, error) {
	id, err := valueobjects.NewNoteIDFromString(s.ids.NewID())
	if err != nil {
		return nil, pkgerrors.NewInternalError("id generator produced an invalid note id").WithCause(err)
	}
	note, err := entities.NewNote(id, cmd.UserID, cmd.NoteContent(), s.rules, s.clock.Now())
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()
	if err := s.persist(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info("Note created",
		zap.String("noteID", id.String()),
		zap.String("userID", cmd.UserID))
	return note, nil
}

// UpdateNote replaces a note's content. A positive ExpectedVersion must
// match the stored version.
func (s *NoteService) UpdateNote(ctx context.Context, cmd commands.UpdateNoteCommand) (*entities.Note, error) {
	id, err := parseNoteID(cmd.NoteID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	note, err := s.load(ctx, cmd.UserID, id)
	if err != nil {
		return nil, err
	}
	if cmd.ExpectedVersion > 0 && cmd.ExpectedVersion != note.Version() {
		return nil, pkgerrors.NewVersionConflictError("note "+id.String(), cmd.ExpectedVersion, note.Version())
	}

	changed, err := note.Update(cmd.NoteContent(), s.rules, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return note, nil
	}
	if err := s.persist(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info("Note updated",
		zap.String("noteID", id.String()),
		zap.Int("version", note.Version()))
	return note, nil
}

// DeleteNote removes a note and cascades to the indexes and its edges.
func (s *NoteService) DeleteNote(ctx context.Context, cmd commands.DeleteNoteCommand) error {
	id, err := parseNoteID(cmd.NoteID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	note, err := s.load(ctx, cmd.UserID, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, note)
}

// GetNote returns a note owned by userID.
func (s *NoteService) GetNote(ctx context.Context, userID, noteID string) (*entities.Note, error) {
	id, err := parseNoteID(noteID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, userID, id)
}

// ListNotes returns every note of a user.
func (s *NoteService) ListNotes(ctx context.Context, userID string) ([]*entities.Note, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	return s.notes.GetByUserID(ctx, userID)
}

// UpsertFromRemote makes the local copy match snapshot: a missing note is
// imported with its identity and timestamps, an existing one takes the
// snapshot's content. When the save succeeds but synchronous indexing fails,
// the saved note is returned together with the error.
func (s *NoteService) UpsertFromRemote(ctx context.Context, snapshot *entities.Note) (*entities.Note, error) {
	id := snapshot.ID()
	unlock := s.locks.Lock(id.String())
	defer unlock()

	local, err := s.notes.GetByID(ctx, id)
	switch {
	case pkgerrors.IsNotFound(err):
		local, err = entities.ImportNote(snapshot.Snapshot())
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load note %s: %w", id, err)
	case local.UserID() != snapshot.UserID():
		return nil, pkgerrors.NewValidationError("note " + id.String() + " belongs to another user")
	default:
		if err := local.ApplySnapshot(snapshot); err != nil {
			return nil, err
		}
		if len(local.GetUncommittedEvents()) == 0 {
			// Content already matches; a previous pull may have saved it
			// without indexing it.
			if err := s.index(ctx, local); err != nil {
				return local, pkgerrors.Wrap(err, "note "+id.String()+" not indexed")
			}
			return local, nil
		}
	}

	if err := s.save(ctx, local); err != nil {
		return nil, err
	}
	indexErr := s.index(ctx, local)
	s.publishEvents(ctx, local)
	if indexErr != nil {
		return local, pkgerrors.Wrap(indexErr, "note "+id.String()+" saved but not indexed")
	}
	return local, nil
}

// RemoveLocal deletes a note if it still exists locally.
func (s *NoteService) RemoveLocal(ctx context.Context, userID string, id valueobjects.NoteID) error {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	note, err := s.load(ctx, userID, id)
	if pkgerrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.remove(ctx, note)
}

// load fetches a note and hides notes of other users.
func (s *NoteService) load(ctx context.Context, userID string, id valueobjects.NoteID) (*entities.Note, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.UserID() != userID || note.IsDeleted() {
		return nil, pkgerrors.NewNotFoundError("note " + id.String())
	}
	return note, nil
}

// persist saves the note, indexes it and publishes its events. Index and
// publish failures do not undo the save; they are logged.
func (s *NoteService) persist(ctx context.Context, note *entities.Note) error {
	if err := s.save(ctx, note); err != nil {
		return err
	}
	if err := s.index(ctx, note); err != nil {
		s.logger.Warn("Failed to index note",
			zap.String("noteID", note.ID().String()),
			zap.Error(err))
	}
	s.publishEvents(ctx, note)
	return nil
}

func (s *NoteService) save(ctx context.Context, note *entities.Note) error {
	if err := s.notes.Save(ctx, note); err != nil {
		return pkgerrors.Wrap(err, "failed to save note")
	}
	return nil
}

// index updates both indexes inline. With asynchronous indexing the
// subscriber does it after the event is published.
func (s *NoteService) index(ctx context.Context, note *entities.Note) error {
	if s.cfg.AsyncIndexing {
		return nil
	}
	return s.indexer.IndexNote(ctx, note)
}

func (s *NoteService) remove(ctx context.Context, note *entities.Note) error {
	id := note.ID()
	note.MarkDeleted(s.clock.Now())
	if err := s.notes.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "failed to delete note")
	}
	if err := s.indexer.RemoveNote(ctx, id); err != nil {
		s.logger.Warn("Failed to remove note from indexes",
			zap.String("noteID", id.String()),
			zap.Error(err))
	}
	if err := s.edges.DeleteByNoteID(ctx, note.UserID(), id.String()); err != nil {
		return pkgerrors.Wrap(err, "failed to delete note edges")
	}
	s.publishEvents(ctx, note)

	s.logger.Info("Note deleted",
		zap.String("noteID", id.String()),
		zap.String("userID", note.UserID()))
	return nil
}

func (s *NoteService) publishEvents(ctx context.Context, note *entities.Note) {
	for _, event := range note.GetUncommittedEvents() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish note event",
				zap.String("eventType", event.GetEventType()),
				zap.String("noteID", note.ID().String()),
				zap.Error(err))
		}
	}
	note.MarkEventsAsCommitted()
}

func parseNoteID(id string) (valueobjects.NoteID, error) {
	noteID, err := valueobjects.NewNoteIDFromString(id)
	if err != nil {
		return valueobjects.NoteID{}, pkgerrors.NewValidationError("invalid note id: " + id)
	}
	return noteID, nil
}
