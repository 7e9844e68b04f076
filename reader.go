package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/awslabs/kinesis-aggregation/go/v2/deaggregator"
	"github.com/pkg/errors"
)

// Record is an alias of record returned from kinesis library
type Record = types.Record

// ScanFunc is the type of the function called for each record read from the
// stream. Returning ErrSkipCheckpoint keeps the record from advancing the
// reader's position; any other non-nil error stops the scan.
type ScanFunc func(*Record) error

// ErrSkipCheckpoint is used as a return value from ScanFunc to indicate that
// the current checkpoint should be skipped. It is not returned as an error
// by any function.
var ErrSkipCheckpoint = errors.New("skip checkpoint")

// ReaderOption is used to override defaults when creating a new ShardReader
type ReaderOption func(*ShardReader)

// WithReaderLogger overrides the default logger
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *ShardReader) {
		r.logger = logger
	}
}

// WithReaderCounter overrides the default counter
func WithReaderCounter(counter Counter) ReaderOption {
	return func(r *ShardReader) {
		r.counter = counter
	}
}

// WithReaderMaxRecords overrides the maximum number of records returned by a
// single GetRecords call (up to 10,000)
func WithReaderMaxRecords(n int32) ReaderOption {
	return func(r *ShardReader) {
		r.maxRecords = n
	}
}

// WithReaderAggregation enables KPL de-aggregation of incoming records
func WithReaderAggregation(a bool) ReaderOption {
	return func(r *ShardReader) {
		r.isAggregated = a
	}
}

// WithReaderScanInterval overrides the pause between GetRecords calls
func WithReaderScanInterval(d time.Duration) ReaderOption {
	return func(r *ShardReader) {
		r.scanInterval = d
	}
}

// NewShardReader returns a reader bound to a single shard, seeded at the
// given position.
func NewShardReader(client KinesisAPI, start ShardCheckpoint, opts ...ReaderOption) *ShardReader {
	r := &ShardReader{
		client:       client,
		ckpt:         start,
		counter:      noopCounter{},
		logger:       slog.Default(),
		maxRecords:   10000,
		scanInterval: 250 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ShardReader pulls records from one shard and tracks its own consume
// position. The position is readable at any time via Checkpoint, including
// while a Scan is running.
type ShardReader struct {
	client       KinesisAPI
	counter      Counter
	logger       *slog.Logger
	maxRecords   int32
	isAggregated bool
	scanInterval time.Duration

	iterator *string

	mu   sync.RWMutex
	ckpt ShardCheckpoint
}

var _ ShardPositioner = (*ShardReader)(nil)

// Checkpoint returns the reader's current position. Safe to call concurrently
// with a running Scan.
func (r *ShardReader) Checkpoint() ShardCheckpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ckpt
}

func (r *ShardReader) advanceTo(sequenceNumber string, subSequenceNumber int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ckpt = r.ckpt.MovedTo(sequenceNumber, subSequenceNumber)
}

func (r *ShardReader) markEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ckpt = r.ckpt.Ended()
}

// refreshIterator obtains a fresh shard iterator for the current position.
// Also used to recover after a recoverable GetRecords failure, since an
// iterator cannot be reused once a call with it has errored out.
func (r *ShardReader) refreshIterator(ctx context.Context) error {
	ckpt := r.Checkpoint()

	params := &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(ckpt.StreamName),
		ShardId:           aws.String(ckpt.ShardID),
		ShardIteratorType: ckpt.IteratorType,
	}

	switch ckpt.IteratorType {
	case types.ShardIteratorTypeAtSequenceNumber, types.ShardIteratorTypeAfterSequenceNumber:
		params.StartingSequenceNumber = aws.String(ckpt.SequenceNumber)
	case types.ShardIteratorTypeAtTimestamp:
		params.Timestamp = aws.Time(ckpt.Timestamp)
	}

	resp, err := r.client.GetShardIterator(ctx, params)
	if err != nil {
		return errors.Wrap(err, "get shard iterator error")
	}

	r.iterator = resp.ShardIterator
	return nil
}

// Scan loops over the records of the shard, calling fn for each one and
// advancing the reader's position as records are acknowledged. It returns nil
// when the context is canceled or the shard is fully consumed, and an error
// only on non-recoverable failures.
func (r *ShardReader) Scan(ctx context.Context, fn ScanFunc) error {
	ckpt := r.Checkpoint()
	if ckpt.IsEnded() {
		return nil
	}

	if err := r.refreshIterator(ctx); err != nil {
		return err
	}

	r.logger.Debug("scanning shard",
		slog.String("stream", ckpt.StreamName),
		slog.String("shard", ckpt.ShardID),
	)

	scanTicker := time.NewTicker(r.scanInterval)
	defer scanTicker.Stop()

	var attempts int
	for {
		resp, err := r.client.GetRecords(ctx, &kinesis.GetRecordsInput{
			Limit:         aws.Int32(r.maxRecords),
			ShardIterator: r.iterator,
		})

		if err != nil {
			if !isRecoverableError(err) {
				return errors.Wrap(err, "get records error")
			}
			attempts++
			r.logger.Warn("get records",
				slog.String("shard", ckpt.ShardID),
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(awsWaitTimeExp(attempts)):
			}
			if err := r.refreshIterator(ctx); err != nil {
				return err
			}
		} else {
			attempts = 0
			if resp.MillisBehindLatest != nil {
				collectorMillisBehindLatest.
					WithLabelValues(ckpt.StreamName, ckpt.ShardID).
					Observe(float64(*resp.MillisBehindLatest))
			}

			records := resp.Records
			if r.isAggregated {
				records, err = deaggregator.DeaggregateRecords(records)
				if err != nil {
					return errors.Wrap(err, "deaggregate records error")
				}
			}

			// sub-sequence numbers only exist for KPL aggregated records,
			// where several records share a parent sequence number; they
			// restart at zero on each parent
			var parentSeq string
			var subSeq int64
			for i := range records {
				select {
				case <-ctx.Done():
					return nil
				default:
				}

				rec := records[i]
				if r.isAggregated {
					if seq := aws.ToString(rec.SequenceNumber); seq == parentSeq {
						subSeq++
					} else {
						parentSeq, subSeq = seq, 0
					}
				}

				err := fn(&rec)
				if err != nil && !errors.Is(err, ErrSkipCheckpoint) {
					return err
				}

				if !errors.Is(err, ErrSkipCheckpoint) {
					r.advanceTo(aws.ToString(rec.SequenceNumber), subSeq)
				}

				r.counter.Add("records", 1)
				counterEventsConsumed.WithLabelValues(ckpt.StreamName, ckpt.ShardID).Inc()
			}

			if resp.NextShardIterator == nil {
				r.markEnded()
				r.logger.Debug("shard closed", slog.String("shard", ckpt.ShardID))
				return nil
			}
			r.iterator = resp.NextShardIterator
		}

		// wait until the next interval; the ticker puts an upper bound on the
		// GetRecords call rate per shard
		select {
		case <-ctx.Done():
			return nil
		case <-scanTicker.C:
		}
	}
}
