package dynamodb

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-memory table understanding the two condition shapes
// and the equality/prefix key conditions the repositories build.
type fakeClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	pageSize       int
	unprocessedOne bool
	puts           []*dynamodb.PutItemInput
	batchWrites    int
	getErr         error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func attrS(item map[string]types.AttributeValue, name string) (string, bool) {
	s, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func itemKey(item map[string]types.AttributeValue) string {
	pk, _ := attrS(item, "PK")
	sk, _ := attrS(item, "SK")
	return pk + "|" + sk
}

func (f *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	key := itemKey(in.Item)
	stored, exists := f.items[key]
	if in.ConditionExpression != nil {
		expected, versioned := expectedVersion(in.ExpressionAttributeValues)
		failed := exists
		if versioned {
			failed = !exists || storedVersion(stored) != expected
		}
		if failed {
			ccf := &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
			if in.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
				ccf.Item = stored
			}
			return nil, ccf
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func expectedVersion(values map[string]types.AttributeValue) (int, bool) {
	for _, v := range values {
		if n, ok := v.(*types.AttributeValueMemberN); ok {
			i, err := strconv.Atoi(n.Value)
			return i, err == nil
		}
	}
	return 0, false
}

func (f *fakeClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query matches an item when every referenced attribute equals, or starts
// with, one of the string values of the expression.
func (f *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var values []string
	for _, v := range in.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			values = append(values, s.Value)
		}
	}

	var keys []string
	for key, item := range f.items {
		matched := true
		for _, name := range in.ExpressionAttributeNames {
			attr, ok := attrS(item, name)
			if !ok || !slices.ContainsFunc(values, func(v string) bool { return strings.HasPrefix(attr, v) }) {
				matched = false
				break
			}
		}
		if matched {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		start = slices.Index(keys, itemKey(in.ExclusiveStartKey)) + 1
	}
	end := len(keys)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}
	out := &dynamodb.QueryOutput{}
	for _, key := range keys[start:end] {
		out.Items = append(out.Items, f.items[key])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = f.items[keys[end-1]]
	}
	return out, nil
}

func (f *fakeClient) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range in.RequestItems {
		for _, key := range ka.Keys {
			if item, ok := f.items[itemKey(key)]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

// BatchWriteItem applies requests; with unprocessedOne set, the last request
// of the first call is handed back unprocessed.
func (f *fakeClient) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchWrites++
	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range in.RequestItems {
		if f.unprocessedOne && len(requests) > 0 {
			f.unprocessedOne = false
			out.UnprocessedItems[table] = requests[len(requests)-1:]
			requests = requests[:len(requests)-1]
		}
		for _, r := range requests {
			switch {
			case r.DeleteRequest != nil:
				delete(f.items, itemKey(r.DeleteRequest.Key))
			case r.PutRequest != nil:
				f.items[itemKey(r.PutRequest.Item)] = r.PutRequest.Item
			}
		}
	}
	return out, nil
}
