package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
	"github.com/artgluhovskiy/vertex-sub001/domain/core/aggregates"
)

// EdgeRepository implements ports.EdgeRepository. All of a user's edges
// share the user's partition, so per-note lookups filter a partition read.
type EdgeRepository struct {
	client API
	table  TableConfig
	logger *zap.Logger
}

var _ ports.EdgeRepository = (*EdgeRepository)(nil)

// NewEdgeRepository creates a new EdgeRepository
func NewEdgeRepository(client API, table TableConfig, logger *zap.Logger) *EdgeRepository {
	return &EdgeRepository{client: client, table: table, logger: logger}
}

// Save upserts an edge; the sort key encodes (source, target, type).
func (r *EdgeRepository) Save(ctx context.Context, edge *aggregates.Edge) error {
	av, err := attributevalue.MarshalMap(newEdgeItem(edge))
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table.TableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("Failed to save edge to DynamoDB",
			zap.Error(err),
			zap.String("edgeID", edge.ID),
			zap.String("userID", edge.UserID))
		return storageError("save edge", err)
	}
	return nil
}

// GetByUserID retrieves all edges for a user
func (r *EdgeRepository) GetByUserID(ctx context.Context, userID string) ([]*aggregates.Edge, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith("EDGE#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	items, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, storageError("query edges", err)
	}

	edges := make([]*aggregates.Edge, 0, len(items))
	for _, av := range items {
		var item edgeItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			r.logger.Warn("Failed to parse edge item", zap.Error(err))
			continue
		}
		edge, err := item.toEdge()
		if err != nil {
			r.logger.Warn("Failed to parse edge item", zap.Error(err))
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// GetByNoteID retrieves the edges with noteID as either endpoint.
func (r *EdgeRepository) GetByNoteID(ctx context.Context, userID, noteID string) ([]*aggregates.Edge, error) {
	all, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	edges := make([]*aggregates.Edge, 0)
	for _, e := range all {
		if e.Touches(noteID) {
			edges = append(edges, e)
		}
	}
	return edges, nil
}

// DeleteByNoteID removes every edge connected to a note.
func (r *EdgeRepository) DeleteByNoteID(ctx context.Context, userID, noteID string) error {
	edges, err := r.GetByNoteID(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	requests := make([]types.WriteRequest, 0, len(edges))
	for _, e := range edges {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: keyOf(userPK(userID), edgeSK(e.Key()))},
		})
	}
	if err := batchWrite(ctx, r.client, r.table.TableName, requests, r.logger); err != nil {
		return fmt.Errorf("failed to delete edges of note %s: %w", noteID, err)
	}
	r.logger.Debug("Deleted edges of note",
		zap.String("noteID", noteID),
		zap.Int("count", len(edges)))
	return nil
}
