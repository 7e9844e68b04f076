package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// New creates a kinesis consumer with default settings. Use Option to override
// any of the optional attributes.
func New(streamName string, opts ...Option) (*Consumer, error) {
	if streamName == "" {
		return nil, errors.New("must provide stream name")
	}

	c := &Consumer{
		streamName:               streamName,
		initialShardIteratorType: types.ShardIteratorTypeLatest,
		store:                    noopStore{},
		counter:                  noopCounter{},
		logger:                   slog.Default(),
		maxRecords:               10000,
		numWorkers:               1,
		scanInterval:             250 * time.Millisecond,
		snapshotInterval:         time.Minute,
	}

	// override defaults
	for _, opt := range opts {
		opt(c)
	}

	// default client
	if c.client == nil {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, errors.Wrap(err, "unable to load SDK config")
		}
		c.client = kinesis.NewFromConfig(cfg)
	}

	return c, nil
}

// Consumer wraps the interaction with the Kinesis stream
type Consumer struct {
	streamName               string
	initialShardIteratorType types.ShardIteratorType
	initialTimestamp         *time.Time
	client                   KinesisAPI
	counter                  Counter
	logger                   *slog.Logger
	store                    Store
	maxRecords               int32
	isAggregated             bool
	numWorkers               int
	scanInterval             time.Duration
	snapshotInterval         time.Duration

	readerMu sync.Mutex
	readers  []ShardPositioner
}

// Checkpoint snapshots the current positions of all live shard readers into
// an aggregate checkpoint. Before Scan has started, the result is empty.
func (c *Consumer) Checkpoint() ReaderCheckpoint {
	c.readerMu.Lock()
	defer c.readerMu.Unlock()
	return AsCurrentStateOf(c.readers)
}

// Scan reads all shards assigned to this consumer, calling fn for each
// record. The work is partitioned across worker slots by splitting the
// initial aggregate checkpoint; each slot scans the shards of its partition.
// Progress is snapshotted and flushed to the store on a regular cadence, and
// once more on the way out.
func (c *Consumer) Scan(ctx context.Context, fn ScanFunc) error {
	ckpt, err := c.initialCheckpoint(ctx)
	if err != nil {
		return err
	}
	if ckpt.Size() == 0 {
		return errors.New("no shards available")
	}

	partitions, err := ckpt.SplitInto(c.numWorkers)
	if err != nil {
		return err
	}
	counterCheckpointSplits.WithLabelValues(c.streamName).Inc()

	c.logger.Info("starting scan",
		slog.String("stream", c.streamName),
		slog.Int("shards", ckpt.Size()),
		slog.Int("partitions", len(partitions)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// build every reader up front so snapshots cover all shards from the start
	partitionReaders := make([][]*ShardReader, len(partitions))
	for i, partition := range partitions {
		for shardCkpt := range partition.All() {
			r := c.newShardReader(shardCkpt)
			partitionReaders[i] = append(partitionReaders[i], r)
		}
	}

	grp, grpCtx := errgroup.WithContext(ctx)

	workers, workerCtx := errgroup.WithContext(grpCtx)
	for _, readers := range partitionReaders {
		workers.Go(func() error {
			inner, innerCtx := errgroup.WithContext(workerCtx)
			for _, r := range readers {
				inner.Go(func() error {
					return r.Scan(innerCtx, fn)
				})
			}
			return inner.Wait()
		})
	}

	grp.Go(func() error {
		return c.snapshotLoop(grpCtx)
	})
	grp.Go(func() error {
		// once every shard is drained or stopped, shut the snapshot loop down
		defer cancel()
		return workers.Wait()
	})

	scanErr := grp.Wait()

	// flush what has been consumed so far, even on error paths; resuming from
	// a stale position only re-reads records
	if err := c.flushSnapshot(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("final checkpoint flush", slog.String("error", err.Error()))
		if scanErr == nil {
			scanErr = err
		}
	}

	return scanErr
}

// initialCheckpoint resolves the starting position for every shard currently
// in the stream: the stored position when the store has one, otherwise the
// configured initial iterator. Shard listing happens once, at startup; this
// consumer does not chase resharding.
func (c *Consumer) initialCheckpoint(ctx context.Context) (ReaderCheckpoint, error) {
	shards, err := listShards(ctx, c.client, c.streamName)
	if err != nil {
		return ReaderCheckpoint{}, err
	}

	positions := make([]ShardCheckpoint, 0, len(shards))
	for _, shard := range shards {
		shardID := *shard.ShardId

		seqNum, err := c.store.GetCheckpoint(ctx, c.streamName, shardID)
		if err != nil {
			return ReaderCheckpoint{}, errors.Wrap(err, "get checkpoint error")
		}

		if seqNum != "" {
			positions = append(positions,
				NewShardCheckpoint(c.streamName, shardID, c.initialShardIteratorType).MovedTo(seqNum, 0))
			continue
		}

		pos := NewShardCheckpoint(c.streamName, shardID, c.initialShardIteratorType)
		if c.initialTimestamp != nil {
			pos.IteratorType = types.ShardIteratorTypeAtTimestamp
			pos.Timestamp = *c.initialTimestamp
		}
		positions = append(positions, pos)
	}

	return NewReaderCheckpoint(positions), nil
}

func (c *Consumer) newShardReader(start ShardCheckpoint) *ShardReader {
	r := NewShardReader(c.client, start,
		WithReaderLogger(c.logger),
		WithReaderCounter(c.counter),
		WithReaderMaxRecords(c.maxRecords),
		WithReaderAggregation(c.isAggregated),
		WithReaderScanInterval(c.scanInterval),
	)

	c.readerMu.Lock()
	c.readers = append(c.readers, r)
	c.readerMu.Unlock()

	return r
}

// snapshotLoop periodically persists the aggregate progress of all readers.
func (c *Consumer) snapshotLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.flushSnapshot(ctx); err != nil {
				return errors.Wrap(err, "flush checkpoint error")
			}
		}
	}
}

func (c *Consumer) flushSnapshot(ctx context.Context) error {
	snapshot := c.Checkpoint()
	if err := FlushCheckpoint(ctx, c.store, snapshot); err != nil {
		return err
	}
	return snapshot.Finalize()
}
