package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/artgluhovskiy/vertex-sub001/application/ports"
)

// SyncStateRepository stores one sync baseline item per user.
type SyncStateRepository struct {
	client API
	table  TableConfig
	logger *zap.Logger
}

var _ ports.SyncStateStore = (*SyncStateRepository)(nil)

func NewSyncStateRepository(client API, table TableConfig, logger *zap.Logger) *SyncStateRepository {
	return &SyncStateRepository{client: client, table: table, logger: logger}
}

func (r *SyncStateRepository) Get(ctx context.Context, userID string) (*ports.SyncState, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table.TableName),
		Key:            keyOf(userPK(userID), entitySyncState),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storageError("get sync state", err)
	}
	state := &ports.SyncState{UserID: userID, Baseline: map[string]string{}}
	if len(out.Item) == 0 {
		return state, nil
	}

	var item syncStateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}
	if state.LastSyncTime, err = parseTime(item.LastSyncTime); err != nil {
		return nil, fmt.Errorf("invalid LastSyncTime: %w", err)
	}
	for id, hash := range item.Baseline {
		state.Baseline[id] = hash
	}
	return state, nil
}

func (r *SyncStateRepository) Save(ctx context.Context, state *ports.SyncState) error {
	baseline := state.Baseline
	if baseline == nil {
		baseline = map[string]string{}
	}
	av, err := attributevalue.MarshalMap(syncStateItem{
		PK:           userPK(state.UserID),
		SK:           entitySyncState,
		EntityType:   entitySyncState,
		UserID:       state.UserID,
		LastSyncTime: formatTime(state.LastSyncTime),
		Baseline:     baseline,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table.TableName),
		Item:      av,
	}); err != nil {
		return storageError("save sync state", err)
	}
	r.logger.Debug("Sync state saved",
		zap.String("userID", state.UserID),
		zap.Int("baselineSize", len(baseline)))
	return nil
}
