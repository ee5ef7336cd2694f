package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
	"github.com/artgluhovskiy/vertex-sub001/pkg/observability"
)

// IndexingService keeps the full-text index and the embedding store in step
// with the note repository.
type IndexingService struct {
	notes      ports.NoteRepository
	fullText   ports.FullTextIndex
	vectors    ports.VectorIndex
	embeddings *EmbeddingService
	chunker    ports.TextChunker
	recorder   observability.Recorder
	logger     *zap.Logger
}

// NewIndexingService creates a new indexing service
func NewIndexingService(
	notes ports.NoteRepository,
	fullText ports.FullTextIndex,
	vectors ports.VectorIndex,
	embeddings *EmbeddingService,
	chunker ports.TextChunker,
	recorder observability.Recorder,
	logger *zap.Logger,
) *IndexingService {
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &IndexingService{
		notes:      notes,
		fullText:   fullText,
		vectors:    vectors,
		embeddings: embeddings,
		chunker:    chunker,
		recorder:   recorder,
		logger:     logger,
	}
}

// textDocument builds the full-text document for a note.
func textDocument(note *entities.Note) ports.TextDocument {
	return ports.TextDocument{
		NoteID:      note.ID().String(),
		UserID:      note.UserID(),
		DirectoryID: note.DirectoryID(),
		Title:       note.Title(),
		Content:     note.Content(),
		Tags:        note.Tags(),
		UpdatedAt:   note.UpdatedAt(),
	}
}

// IndexNote refreshes both indexes for a note. A deleted note is removed.
// The full-text update does not wait on the embedding provider: a provider
// outage leaves the note searchable by text.
func (s *IndexingService) IndexNote(ctx context.Context, note *entities.Note) error {
	if note.IsDeleted() {
		return s.RemoveNote(ctx, note.ID())
	}

	ftErr := s.fullText.Reindex(ctx, textDocument(note))
	s.recorder.ObserveIndexOperation("fulltext_index", ftErr)
	if ftErr != nil {
		ftErr = fmt.Errorf("full-text index: %w", ftErr)
	}

	vecErr := s.indexEmbeddings(ctx, note)
	s.recorder.ObserveIndexOperation("embedding_index", vecErr)
	if vecErr != nil {
		vecErr = fmt.Errorf("embedding index: %w", vecErr)
	}

	if err := errors.Join(ftErr, vecErr); err != nil {
		return err
	}
	s.logger.Debug("Note indexed",
		zap.String("noteID", note.ID().String()),
		zap.String("userID", note.UserID()))
	return nil
}

// indexEmbeddings regenerates the note's vectors. Text that fits one chunk
// gets a whole-note embedding; longer text gets one embedding per chunk.
func (s *IndexingService) indexEmbeddings(ctx context.Context, note *entities.Note) error {
	chunks, err := s.chunker.Split(note.SearchableText())
	if err != nil {
		return err
	}
	doc := ports.VectorDocument{
		NoteID:      note.ID(),
		UserID:      note.UserID(),
		DirectoryID: note.DirectoryID(),
		Tags:        note.Tags(),
		UpdatedAt:   note.UpdatedAt(),
	}
	if len(chunks) == 0 {
		return s.vectors.Index(ctx, doc)
	}

	generated, err := s.embeddings.GenerateBatch(ctx, chunks)
	if err != nil {
		return err
	}
	doc.Embeddings = make([]*entities.Embedding, len(generated))
	for i, emb := range generated {
		if len(chunks) == 1 {
			doc.Embeddings[i] = emb.ForNote(note.ID(), nil)
			continue
		}
		doc.Embeddings[i] = emb.ForNote(note.ID(), &i)
	}
	return s.vectors.Index(ctx, doc)
}

// IndexNoteByID loads a note and indexes it. A note that no longer exists
// is removed from the indexes instead.
func (s *IndexingService) IndexNoteByID(ctx context.Context, noteID valueobjects.NoteID) error {
	note, err := s.notes.GetByID(ctx, noteID)
	if pkgerrors.IsNotFound(err) {
		return s.RemoveNote(ctx, noteID)
	}
	if err != nil {
		return fmt.Errorf("failed to load note %s: %w", noteID, err)
	}
	return s.IndexNote(ctx, note)
}

// RemoveNote drops a note from both indexes.
func (s *IndexingService) RemoveNote(ctx context.Context, noteID valueobjects.NoteID) error {
	ftErr := s.fullText.Remove(ctx, noteID.String())
	vecErr := s.vectors.Remove(ctx, noteID)
	err := errors.Join(ftErr, vecErr)
	s.recorder.ObserveIndexOperation("remove", err)
	return err
}

// ReindexUser rebuilds the indexes for every note of a user, returning the
// number of notes indexed. Per-note failures are logged and skipped.
func (s *IndexingService) ReindexUser(ctx context.Context, userID string) (int, error) {
	notes, err := s.notes.GetByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list notes: %w", err)
	}
	indexed := 0
	for _, note := range notes {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := s.IndexNote(ctx, note); err != nil {
			s.logger.Warn("Failed to reindex note",
				zap.String("noteID", note.ID().String()),
				zap.Error(err))
			continue
		}
		indexed++
	}
	s.logger.Info("User reindexed",
		zap.String("userID", userID),
		zap.Int("notes", len(notes)),
		zap.Int("indexed", indexed))
	return indexed, nil
}

// Optimize compacts the full-text index.
func (s *IndexingService) Optimize(ctx context.Context) error {
	err := s.fullText.Optimize(ctx)
	s.recorder.ObserveIndexOperation("optimize", err)
	return err
}
