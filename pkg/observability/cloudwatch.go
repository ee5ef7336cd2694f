package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the part of the CloudWatch client the reporter uses.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatch accepts at most 1000 datums per PutMetricData call.
const maxDatumsPerPut = 1000

// CloudWatchReporter buffers measurements and ships them on Flush. Lambda
// deployments flush at the end of an invocation; the server flushes from
// the scheduler.
type CloudWatchReporter struct {
	namespace string
	client    CloudWatchAPI
	now       func() time.Time
	logger    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum
}

var _ Recorder = (*CloudWatchReporter)(nil)

// NewCloudWatchReporter creates a reporter for the namespace
func NewCloudWatchReporter(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchReporter {
	return &CloudWatchReporter{
		namespace: namespace,
		client:    client,
		now:       time.Now,
		logger:    logger,
	}
}

func (r *CloudWatchReporter) add(name string, value float64, unit types.StandardUnit, dims ...string) {
	datum := types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(r.now()),
	}
	for i := 0; i+1 < len(dims); i += 2 {
		datum.Dimensions = append(datum.Dimensions, types.Dimension{
			Name:  aws.String(dims[i]),
			Value: aws.String(dims[i+1]),
		})
	}
	r.mu.Lock()
	r.pending = append(r.pending, datum)
	r.mu.Unlock()
}

func (r *CloudWatchReporter) ObserveSearch(searchType string, d time.Duration, hits int) {
	r.add("SearchLatency", float64(d.Milliseconds()), types.StandardUnitMilliseconds, "SearchType", searchType)
	r.add("SearchHits", float64(hits), types.StandardUnitCount, "SearchType", searchType)
}

func (r *CloudWatchReporter) ObserveTraversal(strategy string, nodes int, truncated bool) {
	r.add("TraversalNodes", float64(nodes), types.StandardUnitCount,
		"Strategy", strategy, "Truncated", fmt.Sprint(truncated))
}

func (r *CloudWatchReporter) ObserveSync(success, failure, conflicts int, d time.Duration) {
	r.add("SyncSuccess", float64(success), types.StandardUnitCount)
	r.add("SyncFailure", float64(failure), types.StandardUnitCount)
	r.add("SyncConflicts", float64(conflicts), types.StandardUnitCount)
	r.add("SyncLatency", float64(d.Milliseconds()), types.StandardUnitMilliseconds)
}

func (r *CloudWatchReporter) ObserveIndexOperation(operation string, err error) {
	r.add("IndexOperation", 1, types.StandardUnitCount, "Operation", operation, "Status", status(err))
}

func (r *CloudWatchReporter) IncProviderFailure(provider string, transient bool) {
	r.add("ProviderFailures", 1, types.StandardUnitCount,
		"Provider", provider, "Transient", fmt.Sprint(transient))
}

// Flush sends the buffered datums. Datums of a failed call are dropped so
// a CloudWatch outage cannot grow the buffer without bound.
func (r *CloudWatchReporter) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	var firstErr error
	for start := 0; start < len(batch); start += maxDatumsPerPut {
		end := min(start+maxDatumsPerPut, len(batch))
		_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: batch[start:end],
		})
		if err != nil {
			r.logger.Warn("Failed to send metrics", zap.Error(err), zap.Int("datums", end-start))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Pending returns the number of buffered datums.
func (r *CloudWatchReporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
