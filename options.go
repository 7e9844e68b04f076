package source

import (
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

// Option is used to override defaults when creating a new Consumer
type Option func(*Consumer)

// WithStore overrides the default storage
func WithStore(store Store) Option {
	return func(c *Consumer) {
		c.store = store
	}
}

// WithLogger overrides the default logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithCounter overrides the default counter
func WithCounter(counter Counter) Option {
	return func(c *Consumer) {
		c.counter = counter
	}
}

// WithClient overrides the default client
func WithClient(client KinesisAPI) Option {
	return func(c *Consumer) {
		c.client = client
	}
}

// WithShardIteratorType overrides the starting point for the consumer
func WithShardIteratorType(t types.ShardIteratorType) Option {
	return func(c *Consumer) {
		c.initialShardIteratorType = t
	}
}

// WithTimestamp overrides the starting point for the consumer
func WithTimestamp(t time.Time) Option {
	return func(c *Consumer) {
		c.initialTimestamp = &t
	}
}

// WithScanInterval overrides the scan interval for the consumer
func WithScanInterval(d time.Duration) Option {
	return func(c *Consumer) {
		c.scanInterval = d
	}
}

// WithSnapshotInterval overrides the interval at which the aggregate
// checkpoint is snapshotted and flushed to the store
func WithSnapshotInterval(d time.Duration) Option {
	return func(c *Consumer) {
		c.snapshotInterval = d
	}
}

// WithMaxRecords overrides the maximum number of records to be
// returned in a single GetRecords call for the consumer (specify a
// value of up to 10,000)
func WithMaxRecords(n int32) Option {
	return func(c *Consumer) {
		c.maxRecords = n
	}
}

func WithAggregation(a bool) Option {
	return func(c *Consumer) {
		c.isAggregated = a
	}
}

// WithParallelProcessing sets the number of worker slots the shards are
// partitioned across. Shard assignment per slot is stable for a given shard
// list and slot count.
func WithParallelProcessing(numWorkers int) Option {
	return func(c *Consumer) {
		c.numWorkers = numWorkers
	}
}
