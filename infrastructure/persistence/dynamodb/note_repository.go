package dynamodb

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// NoteRepository implements ports.NoteRepository with optimistic locking
// on the Version attribute.
type NoteRepository struct {
	client API
	table  TableConfig
	logger *zap.Logger
}

var _ ports.NoteRepository = (*NoteRepository)(nil)

// NewNoteRepository creates a new NoteRepository
func NewNoteRepository(client API, table TableConfig, logger *zap.Logger) *NoteRepository {
	return &NoteRepository{client: client, table: table, logger: logger}
}

// Save creates the note when it was never persisted, otherwise updates it
// on condition that the stored Version still equals the persisted one.
func (r *NoteRepository) Save(ctx context.Context, note *entities.Note) error {
	id := note.ID().String()
	item := newNoteItem(note.Snapshot())
	item.PK = notePK(id)
	item.SK = "METADATA"
	item.EntityType = entityNote
	item.GSI1PK = userPK(note.UserID())
	item.GSI1SK = noteGSI1SK(id)

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	var condition expression.ConditionBuilder
	if note.IsNew() {
		condition = expression.Name("PK").AttributeNotExists()
	} else {
		condition = expression.Name("Version").Equal(expression.Value(note.PersistedVersion()))
	}
	expr, err := expression.NewBuilder().WithCondition(condition).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(r.table.TableName),
		Item:                                av,
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if ccf, ok := isConditionalCheckFailed(err); ok {
			actual := storedVersion(ccf.Item)
			r.logger.Debug("Optimistic lock failed",
				zap.String("noteID", id),
				zap.Int("expected", note.PersistedVersion()),
				zap.Int("actual", actual))
			return pkgerrors.NewVersionConflictError("note "+id, note.PersistedVersion(), actual)
		}
		return storageError("save note", err)
	}

	note.MarkPersisted()
	return nil
}

func storedVersion(item map[string]types.AttributeValue) int {
	if n, ok := item["Version"].(*types.AttributeValueMemberN); ok {
		v, err := strconv.Atoi(n.Value)
		if err == nil {
			return v
		}
	}
	return 0
}

// GetByID retrieves a note by its ID
func (r *NoteRepository) GetByID(ctx context.Context, id valueobjects.NoteID) (*entities.Note, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table.TableName),
		Key:            keyOf(notePK(id.String()), "METADATA"),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storageError("get note", err)
	}
	if len(out.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("note " + id.String())
	}
	return r.parse(out.Item)
}

// GetByIDs loads the existing notes among ids, in the order of ids.
func (r *NoteRepository) GetByIDs(ctx context.Context, ids []valueobjects.NoteID) ([]*entities.Note, error) {
	if len(ids) == 0 {
		return []*entities.Note{}, nil
	}
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		keys = append(keys, keyOf(notePK(id.String()), "METADATA"))
	}

	items, err := batchGet(ctx, r.client, r.table.TableName, keys)
	if err != nil {
		return nil, storageError("batch get notes", err)
	}
	byID := make(map[string]*entities.Note, len(items))
	for _, item := range items {
		note, err := r.parse(item)
		if err != nil {
			return nil, err
		}
		byID[note.ID().String()] = note
	}

	notes := make([]*entities.Note, 0, len(byID))
	for _, id := range ids {
		if note, ok := byID[id.String()]; ok {
			notes = append(notes, note)
			delete(byID, id.String())
		}
	}
	return notes, nil
}

// GetByUserID retrieves all notes for a user through the user index.
func (r *NoteRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Note, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(userPK(userID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table.TableName),
		IndexName:                 aws.String(r.table.userIndex()),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, storageError("query notes", err)
	}

	notes := make([]*entities.Note, 0, len(items))
	for _, item := range items {
		note, err := r.parse(item)
		if err != nil {
			r.logger.Warn("Skipping unreadable note item", zap.String("userID", userID), zap.Error(err))
			continue
		}
		notes = append(notes, note)
	}
	slices.SortFunc(notes, func(a, b *entities.Note) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return notes, nil
}

// Delete removes a note. Deleting a missing note is not an error.
func (r *NoteRepository) Delete(ctx context.Context, id valueobjects.NoteID) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table.TableName),
		Key:       keyOf(notePK(id.String()), "METADATA"),
	})
	if err != nil {
		return storageError("delete note", err)
	}
	return nil
}

func (r *NoteRepository) parse(av map[string]types.AttributeValue) (*entities.Note, error) {
	var item noteItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal note: %w", err)
	}
	return item.toNote()
}
