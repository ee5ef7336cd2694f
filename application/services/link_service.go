package services

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/commands"
	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/config"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	domainservices "github.com/artgluhovskiy/vertex-sub001/domain/services"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// LinkService creates links between notes, by hand or by suggestion.
type LinkService struct {
	notes   ports.NoteRepository
	edges   ports.EdgeRepository
	vectors ports.VectorIndex
	clock   ports.Clock
	rules   config.GraphRules
	logger  *zap.Logger
}

// NewLinkService creates a new link service
func NewLinkService(
	notes ports.NoteRepository,
	edges ports.EdgeRepository,
	vectors ports.VectorIndex,
	clock ports.Clock,
	domainConfig *config.DomainConfig,
	logger *zap.Logger,
) *LinkService {
	return &LinkService{
		notes:   notes,
		edges:   edges,
		vectors: vectors,
		clock:   clock,
		rules:   domainConfig.Graph,
		logger:  logger,
	}
}

// LinkNotes creates or reweights a MANUAL link. A zero weight means 1.
func (s *LinkService) LinkNotes(ctx context.Context, cmd commands.LinkNotesCommand) (*aggregates.Edge, error) {
	for _, id := range []string{cmd.SourceID, cmd.TargetID} {
		if _, err := s.ownedNote(ctx, cmd.UserID, id); err != nil {
			return nil, err
		}
	}
	weight := cmd.Weight
	if weight == 0 {
		weight = 1
	}
	edge, err := aggregates.NewEdge(cmd.UserID, cmd.SourceID, cmd.TargetID, aggregates.EdgeTypeManual, weight, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.edges.Save(ctx, edge); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to save link")
	}

	s.logger.Info("Notes linked",
		zap.String("source", cmd.SourceID),
		zap.String("target", cmd.TargetID),
		zap.Float64("weight", weight))
	return edge, nil
}

// SuggestLinks derives SEMANTIC links from embedding similarity and
// TAG_SHARED links from tag overlap, saves them and returns them strongest
// first. Existing links of the same type are reweighted.
func (s *LinkService) SuggestLinks(ctx context.Context, userID, noteID string) ([]*aggregates.Edge, error) {
	note, err := s.ownedNote(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	limit := s.rules.SuggestedLinkLimit
	now := s.clock.Now()
	var suggested []*aggregates.Edge

	neighbours, err := s.vectors.FindKNearest(ctx, ports.VectorQuery{UserID: userID, NoteID: note.ID(), K: limit})
	if err != nil {
		return nil, err
	}
	for _, n := range neighbours {
		if n.Score < s.rules.SemanticThreshold {
			continue
		}
		edge, err := aggregates.NewEdge(userID, noteID, n.NoteID, aggregates.EdgeTypeSemantic, min(n.Score, 1), now)
		if err != nil {
			return nil, err
		}
		suggested = append(suggested, edge)
	}

	if tags := note.Tags(); len(tags) > 0 {
		others, err := s.notes.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.ID().Equals(note.ID()) || other.IsDeleted() {
				continue
			}
			j := domainservices.TagJaccard(tags, other.Tags())
			if j <= 0 || j < s.rules.TagSharedMinJaccard {
				continue
			}
			edge, err := aggregates.NewEdge(userID, noteID, other.ID().String(), aggregates.EdgeTypeTagShared, j, now)
			if err != nil {
				return nil, err
			}
			suggested = append(suggested, edge)
		}
	}

	slices.SortFunc(suggested, func(a, b *aggregates.Edge) int {
		if a.Weight != b.Weight {
			if a.Weight > b.Weight {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Key(), b.Key())
	})
	if limit > 0 && len(suggested) > limit {
		suggested = suggested[:limit]
	}

	for _, edge := range suggested {
		if err := s.edges.Save(ctx, edge); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to save suggested link")
		}
	}
	s.logger.Debug("Links suggested",
		zap.String("noteID", noteID),
		zap.Int("count", len(suggested)))
	return suggested, nil
}

func (s *LinkService) ownedNote(ctx context.Context, userID, noteID string) (*entities.Note, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID is required")
	}
	id, err := parseNoteID(noteID)
	if err != nil {
		return nil, err
	}
	note, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.UserID() != userID || note.IsDeleted() {
		return nil, pkgerrors.NewNotFoundError("note " + noteID)
	}
	return note, nil
}
