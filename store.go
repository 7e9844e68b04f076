package source

import (
	"context"
)

// Store persists scan progress so a reader group can resume where it left off.
// Each per-shard position is stored under its stream and shard identity; how
// it is encoded and committed is entirely the store's concern.
type Store interface {
	GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error)
	SetCheckpoint(ctx context.Context, streamName, shardID, sequenceNumber string) error
}

// noopStore implements the storage interface with discard
type noopStore struct{}

func (n noopStore) GetCheckpoint(context.Context, string, string) (string, error) { return "", nil }
func (n noopStore) SetCheckpoint(context.Context, string, string, string) error   { return nil }

// FlushCheckpoint writes every position of an aggregate checkpoint to the
// store, in order. Positions that have not consumed a record yet (no sequence
// number) are skipped; resuming them repeats their configured starting point,
// which is safe under at-least-once semantics. Callers should invoke Finalize
// on the checkpoint once the flush has succeeded.
func FlushCheckpoint(ctx context.Context, store Store, ckpt ReaderCheckpoint) error {
	for sc := range ckpt.All() {
		if sc.SequenceNumber == "" {
			continue
		}
		if err := store.SetCheckpoint(ctx, sc.StreamName, sc.ShardID, sc.SequenceNumber); err != nil {
			return err
		}
		counterCheckpointsWritten.WithLabelValues(sc.StreamName, sc.ShardID).Inc()
	}
	return nil
}
