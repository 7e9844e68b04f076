package source

import (
	"fmt"
	"iter"

	"github.com/pkg/errors"
)

// ShardPositioner exposes the current consume position of a live shard reader.
// Implementations must tolerate concurrent reads while the reader advances.
type ShardPositioner interface {
	Checkpoint() ShardCheckpoint
}

// ReaderCheckpoint is the total progress of a reader group across a set of
// shards: an ordered, immutable list of per-shard positions. The set of shards
// it covers may or may not equal the set of all shards in the stream. Each
// shard must appear at most once; that is the caller's responsibility and is
// not re-validated here.
type ReaderCheckpoint struct {
	shards []ShardCheckpoint
}

// NewReaderCheckpoint builds a checkpoint from an ordered list of per-shard
// positions. The input is copied, so the caller's slice can be reused freely
// afterward. An empty input is valid and represents a group with no shards.
func NewReaderCheckpoint(shards []ShardCheckpoint) ReaderCheckpoint {
	owned := make([]ShardCheckpoint, len(shards))
	copy(owned, shards)
	return ReaderCheckpoint{shards: owned}
}

// AsCurrentStateOf snapshots the current positions of the given live readers,
// in order. Each reader's position is read exactly once; readers may keep
// advancing concurrently, so the result is a per-shard consistent snapshot,
// not an atomic cut across shards.
func AsCurrentStateOf(readers []ShardPositioner) ReaderCheckpoint {
	shards := make([]ShardCheckpoint, len(readers))
	for i, r := range readers {
		shards[i] = r.Checkpoint()
	}
	return ReaderCheckpoint{shards: shards}
}

// SplitInto partitions the checkpoint into consecutive chunks of approximately
// equal size, preserving order. desiredSplits is an upper limit: the result
// has at most that many partitions, fewer when there are not enough shards to
// go around, since a single shard's position is never divided. Concatenating
// the partitions in order reproduces the original checkpoint.
func (c ReaderCheckpoint) SplitInto(desiredSplits int) ([]ReaderCheckpoint, error) {
	if desiredSplits <= 0 {
		return nil, errors.Errorf("desired split count must be positive, got %d", desiredSplits)
	}

	partitionSize := divideAndRoundUp(len(c.shards), desiredSplits)

	var checkpoints []ReaderCheckpoint
	for start := 0; start < len(c.shards); start += partitionSize {
		end := min(start+partitionSize, len(c.shards))
		checkpoints = append(checkpoints, NewReaderCheckpoint(c.shards[start:end]))
	}
	return checkpoints, nil
}

func divideAndRoundUp(nominator, denominator int) int {
	return (nominator + denominator - 1) / denominator
}

// All iterates the per-shard positions in stored order. The sequence is finite
// and restartable; repeated iteration yields identical results.
func (c ReaderCheckpoint) All() iter.Seq[ShardCheckpoint] {
	return func(yield func(ShardCheckpoint) bool) {
		for _, s := range c.shards {
			if !yield(s) {
				return
			}
		}
	}
}

// Size returns the number of shards the checkpoint covers.
func (c ReaderCheckpoint) Size() int {
	return len(c.shards)
}

// Finalize is the commit hook invoked once this checkpoint has been durably
// persisted. Persistence is entirely the store's concern, so there is nothing
// to do here; the method exists so callers can treat every checkpoint mark
// uniformly. It never fails.
func (c ReaderCheckpoint) Finalize() error {
	return nil
}

func (c ReaderCheckpoint) String() string {
	return fmt.Sprintf("%v", c.shards)
}
