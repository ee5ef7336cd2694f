package dynamodb

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/entities"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/valueobjects"
)

// RemoteNoteStore keeps the remote copy of a user's notes in the user's
// partition. It can point at a different table than the local notes.
type RemoteNoteStore struct {
	client API
	table  TableConfig
	logger *zap.Logger
}

var _ ports.RemoteNoteStore = (*RemoteNoteStore)(nil)

func NewRemoteNoteStore(client API, table TableConfig, logger *zap.Logger) *RemoteNoteStore {
	return &RemoteNoteStore{client: client, table: table, logger: logger}
}

func (s *RemoteNoteStore) ListByUserID(ctx context.Context, userID string) ([]*entities.Note, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith("REMOTE#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	items, err := queryAll(ctx, s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, storageError("query remote notes", err)
	}

	notes := make([]*entities.Note, 0, len(items))
	for _, av := range items {
		var item noteItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal remote note: %w", err)
		}
		note, err := item.toNote()
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	slices.SortFunc(notes, func(a, b *entities.Note) int {
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return notes, nil
}

func (s *RemoteNoteStore) Put(ctx context.Context, note *entities.Note) error {
	item := newNoteItem(note.Snapshot())
	item.PK = userPK(note.UserID())
	item.SK = remoteSK(note.ID().String())
	item.EntityType = entityRemote

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal remote note: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table.TableName),
		Item:      av,
	}); err != nil {
		return storageError("put remote note", err)
	}
	return nil
}

func (s *RemoteNoteStore) Delete(ctx context.Context, userID string, id valueobjects.NoteID) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table.TableName),
		Key:       keyOf(userPK(userID), remoteSK(id.String())),
	}); err != nil {
		return storageError("delete remote note", err)
	}
	s.logger.Debug("Remote note deleted", zap.String("userID", userID), zap.String("noteID", id.String()))
	return nil
}
