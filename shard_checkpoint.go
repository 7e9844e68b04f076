package source

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

// IteratorTypeShardEnd marks a shard whose records have been fully consumed.
// It is not a valid input to GetShardIterator; readers stop when they reach it.
const IteratorTypeShardEnd = types.ShardIteratorType("SHARD_END")

// ShardCheckpoint is the consume position on a single shard: either a concrete
// sequence number, a starting-point marker (TRIM_HORIZON, LATEST, AT_TIMESTAMP)
// or the SHARD_END sentinel. It is a plain comparable value with no behavior
// beyond deriving new positions; advancing a live reader never mutates one.
type ShardCheckpoint struct {
	StreamName        string                  `json:"stream_name"`
	ShardID           string                  `json:"shard_id"`
	IteratorType      types.ShardIteratorType `json:"iterator_type"`
	SequenceNumber    string                  `json:"sequence_number,omitempty"`
	SubSequenceNumber int64                   `json:"sub_sequence_number,omitempty"`
	Timestamp         time.Time               `json:"timestamp,omitempty"`
}

// NewShardCheckpoint returns a position at the given starting point of a shard.
// Use MovedTo to derive positions once records have been consumed.
func NewShardCheckpoint(streamName, shardID string, iteratorType types.ShardIteratorType) ShardCheckpoint {
	return ShardCheckpoint{
		StreamName:   streamName,
		ShardID:      shardID,
		IteratorType: iteratorType,
	}
}

// MovedTo returns a new position directly after the record identified by
// sequenceNumber and subSequenceNumber. The receiver is unchanged.
func (c ShardCheckpoint) MovedTo(sequenceNumber string, subSequenceNumber int64) ShardCheckpoint {
	c.IteratorType = types.ShardIteratorTypeAfterSequenceNumber
	c.SequenceNumber = sequenceNumber
	c.SubSequenceNumber = subSequenceNumber
	return c
}

// Ended returns a new position marking the shard as fully consumed.
func (c ShardCheckpoint) Ended() ShardCheckpoint {
	c.IteratorType = IteratorTypeShardEnd
	return c
}

// IsFor reports whether this position belongs to the given shard.
func (c ShardCheckpoint) IsFor(shardID string) bool {
	return c.ShardID == shardID
}

// IsEnded reports whether the shard has been consumed to its end.
func (c ShardCheckpoint) IsEnded() bool {
	return c.IteratorType == IteratorTypeShardEnd
}

func (c ShardCheckpoint) String() string {
	if c.SequenceNumber != "" {
		return fmt.Sprintf("Checkpoint{%s/%s %s %s:%d}",
			c.StreamName, c.ShardID, c.IteratorType, c.SequenceNumber, c.SubSequenceNumber)
	}
	return fmt.Sprintf("Checkpoint{%s/%s %s}", c.StreamName, c.ShardID, c.IteratorType)
}
