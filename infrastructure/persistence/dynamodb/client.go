// Package dynamodb stores notes, edges, sync baselines and the remote note
// copy in a single DynamoDB table.
//
// Key layout:
//
//	note        PK=NOTE#<id>    SK=METADATA          GSI1PK=USER#<user> GSI1SK=NOTE#<id>
//	edge        PK=USER#<user>  SK=EDGE#<src>#<tgt>#<type>
//	sync state  PK=USER#<user>  SK=SYNC_STATE
//	remote note PK=USER#<user>  SK=REMOTE#<id>
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	pkgerrors "github.com/artgluhovskiy/vertex-sub001/pkg/errors"
)

// API is the subset of the DynamoDB client the repositories use.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

const (
	entityNote      = "NOTE"
	entityEdge      = "EDGE"
	entitySyncState = "SYNC_STATE"
	entityRemote    = "REMOTE_NOTE"

	gsi1Name = "GSI1"

	batchWriteSize = 25
	batchGetSize   = 100
	maxBatchRetry  = 3
)

// TableConfig names the table and its user index.
type TableConfig struct {
	TableName string
	GSI1Name  string
}

func (c TableConfig) userIndex() string {
	if c.GSI1Name == "" {
		return gsi1Name
	}
	return c.GSI1Name
}

func userPK(userID string) string     { return "USER#" + userID }
func notePK(noteID string) string     { return "NOTE#" + noteID }
func remoteSK(noteID string) string   { return "REMOTE#" + noteID }
func edgeSK(key string) string        { return "EDGE#" + key }
func noteGSI1SK(noteID string) string { return "NOTE#" + noteID }

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func isConditionalCheckFailed(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}

// storageError wraps an SDK failure. Throttling and server-side faults come
// back as retryable internal errors so callers and the REST layer can tell
// them from permanent ones.
func storageError(operation string, err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded",
			"ThrottlingException", "InternalServerError", "ServiceUnavailable":
			return pkgerrors.NewInternalError("storage temporarily unavailable: " + operation).
				WithCode(ae.ErrorCode()).
				WithCause(err).
				AsTransient()
		}
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// queryAll follows LastEvaluatedKey until every page is read.
func queryAll(ctx context.Context, client API, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// batchWrite sends write requests in batches of 25, retrying unprocessed
// items with backoff.
func batchWrite(ctx context.Context, client API, table string, requests []types.WriteRequest, logger *zap.Logger) error {
	for start := 0; start < len(requests); start += batchWriteSize {
		end := min(start+batchWriteSize, len(requests))
		pending := requests[start:end]

		for retry := 0; len(pending) > 0; retry++ {
			if retry > maxBatchRetry {
				return fmt.Errorf("batch write left %d unprocessed items", len(pending))
			}
			if retry > 0 {
				backoff := time.Duration(retry*retry+1) * 100 * time.Millisecond
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
			}

			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{table: pending},
			})
			if err != nil {
				logger.Warn("Batch write failed, retrying",
					zap.Error(err),
					zap.Int("retry", retry+1))
				continue
			}
			pending = out.UnprocessedItems[table]
			if len(pending) > 0 {
				logger.Debug("Found unprocessed items, retrying", zap.Int("unprocessedCount", len(pending)))
			}
		}
	}
	return nil
}

// batchGet reads keys in batches of 100, retrying unprocessed keys.
func batchGet(ctx context.Context, client API, table string, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for start := 0; start < len(keys); start += batchGetSize {
		end := min(start+batchGetSize, len(keys))
		pending := keys[start:end]

		for retry := 0; len(pending) > 0; retry++ {
			if retry > maxBatchRetry {
				return nil, fmt.Errorf("batch get left %d unprocessed keys", len(pending))
			}
			out, err := client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					table: {Keys: pending, ConsistentRead: aws.Bool(true)},
				},
			})
			if err != nil {
				return nil, err
			}
			items = append(items, out.Responses[table]...)
			pending = out.UnprocessedKeys[table].Keys
		}
	}
	return items, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
