package source

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

func TestShardCheckpoint_MovedTo(t *testing.T) {
	start := NewShardCheckpoint("myStream", "shardId-000000000000", types.ShardIteratorTypeTrimHorizon)

	moved := start.MovedTo("firstSeqNum", 3)

	if moved.IteratorType != types.ShardIteratorTypeAfterSequenceNumber {
		t.Errorf("iterator type expected %s, got %s", types.ShardIteratorTypeAfterSequenceNumber, moved.IteratorType)
	}
	if moved.SequenceNumber != "firstSeqNum" || moved.SubSequenceNumber != 3 {
		t.Errorf("position expected firstSeqNum:3, got %s:%d", moved.SequenceNumber, moved.SubSequenceNumber)
	}

	// the original value is untouched
	if start.SequenceNumber != "" || start.IteratorType != types.ShardIteratorTypeTrimHorizon {
		t.Errorf("MovedTo mutated its receiver: %v", start)
	}
}

func TestShardCheckpoint_Ended(t *testing.T) {
	c := NewShardCheckpoint("myStream", "shardId-000000000000", types.ShardIteratorTypeLatest)
	if c.IsEnded() {
		t.Fatalf("fresh checkpoint reported as ended")
	}

	ended := c.Ended()
	if !ended.IsEnded() {
		t.Fatalf("ended checkpoint not reported as ended")
	}
	if c.IsEnded() {
		t.Fatalf("Ended mutated its receiver")
	}
}

func TestShardCheckpoint_IsFor(t *testing.T) {
	c := NewShardCheckpoint("myStream", "shardId-000000000007", types.ShardIteratorTypeLatest)
	if !c.IsFor("shardId-000000000007") {
		t.Errorf("expected checkpoint to match its own shard")
	}
	if c.IsFor("shardId-000000000008") {
		t.Errorf("expected checkpoint not to match another shard")
	}
}

func TestShardCheckpoint_Comparable(t *testing.T) {
	a := NewShardCheckpoint("myStream", "shardId-000000000000", types.ShardIteratorTypeTrimHorizon).MovedTo("seq", 1)
	b := NewShardCheckpoint("myStream", "shardId-000000000000", types.ShardIteratorTypeTrimHorizon).MovedTo("seq", 1)

	if a != b {
		t.Errorf("equal positions compare unequal")
	}
	if a == b.MovedTo("seq", 2) {
		t.Errorf("different positions compare equal")
	}
}
