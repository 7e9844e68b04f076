package source

import (
	"context"
	"crypto/md5"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	kpl "github.com/awslabs/kinesis-aggregation/go/v2/records"
	"github.com/golang/protobuf/proto"
)

type kinesisClientMock struct {
	getRecordsMock       func(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
	getShardIteratorMock func(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	listShardsMock       func(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error)
}

func (c *kinesisClientMock) GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error) {
	return c.getRecordsMock(ctx, params, optFns...)
}

func (c *kinesisClientMock) GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error) {
	return c.getShardIteratorMock(ctx, params, optFns...)
}

func (c *kinesisClientMock) ListShards(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error) {
	return c.listShardsMock(ctx, params, optFns...)
}

func singleShardClient(records []types.Record) *kinesisClientMock {
	return &kinesisClientMock{
		getShardIteratorMock: func(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error) {
			return &kinesis.GetShardIteratorOutput{
				ShardIterator: aws.String("49578481031144599192696750682534686652010819674221576194"),
			}, nil
		},
		getRecordsMock: func(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error) {
			return &kinesis.GetRecordsOutput{
				NextShardIterator: nil, // closed shard
				Records:           records,
			}, nil
		},
	}
}

func TestShardReader_Scan(t *testing.T) {
	records := []types.Record{
		{Data: []byte("firstData"), SequenceNumber: aws.String("firstSeqNum")},
		{Data: []byte("lastData"), SequenceNumber: aws.String("lastSeqNum")},
	}

	start := NewShardCheckpoint("myStream", "myShard", types.ShardIteratorTypeTrimHorizon)
	r := NewShardReader(singleShardClient(records), start)

	var resultData string
	err := r.Scan(context.TODO(), func(rec *Record) error {
		resultData += string(rec.Data)
		return nil
	})
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}

	if resultData != "firstDatalastData" {
		t.Errorf("callback error expected %s, got %s", "firstDatalastData", resultData)
	}

	ckpt := r.Checkpoint()
	if ckpt.SequenceNumber != "lastSeqNum" {
		t.Errorf("checkpoint expected %s, got %s", "lastSeqNum", ckpt.SequenceNumber)
	}
	if !ckpt.IsEnded() {
		t.Errorf("closed shard expected ended checkpoint, got %v", ckpt)
	}
}

func TestShardReader_SkipCheckpoint(t *testing.T) {
	records := []types.Record{
		{Data: []byte("firstData"), SequenceNumber: aws.String("firstSeqNum")},
	}

	start := NewShardCheckpoint("myStream", "myShard", types.ShardIteratorTypeTrimHorizon)
	r := NewShardReader(singleShardClient(records), start)

	err := r.Scan(context.TODO(), func(rec *Record) error {
		return ErrSkipCheckpoint
	})
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}

	if seq := r.Checkpoint().SequenceNumber; seq != "" {
		t.Errorf("skipped record advanced the checkpoint to %s", seq)
	}
}

func TestShardReader_CallbackErrorStopsScan(t *testing.T) {
	records := []types.Record{
		{Data: []byte("firstData"), SequenceNumber: aws.String("firstSeqNum")},
		{Data: []byte("lastData"), SequenceNumber: aws.String("lastSeqNum")},
	}

	start := NewShardCheckpoint("myStream", "myShard", types.ShardIteratorTypeTrimHorizon)
	r := NewShardReader(singleShardClient(records), start)

	wantErr := context.DeadlineExceeded
	var calls int
	err := r.Scan(context.TODO(), func(rec *Record) error {
		calls++
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("scan error expected %v, got %v", wantErr, err)
	}
	if calls != 1 {
		t.Errorf("callback calls expected 1, got %d", calls)
	}
}

func TestShardReader_EndedShardIsNoop(t *testing.T) {
	client := &kinesisClientMock{
		getShardIteratorMock: func(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error) {
			t.Fatal("GetShardIterator called for an ended shard")
			return nil, nil
		},
		getRecordsMock: func(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error) {
			t.Fatal("GetRecords called for an ended shard")
			return nil, nil
		},
	}

	start := NewShardCheckpoint("myStream", "myShard", types.ShardIteratorTypeTrimHorizon).Ended()
	r := NewShardReader(client, start)

	if err := r.Scan(context.TODO(), func(rec *Record) error { return nil }); err != nil {
		t.Fatalf("scan error: %v", err)
	}
}

var kplMagic = []byte{0xF3, 0x89, 0x9A, 0xC2}

// kplAggregate packs the payloads into the body of one KPL aggregated record:
// magic header, protobuf message, md5 checksum
func kplAggregate(t *testing.T, payloads ...string) []byte {
	t.Helper()

	agg := &kpl.AggregatedRecord{
		PartitionKeyTable: []string{"partitionKey"},
	}
	for _, p := range payloads {
		agg.Records = append(agg.Records, &kpl.Record{
			PartitionKeyIndex: proto.Uint64(0),
			Data:              []byte(p),
		})
	}

	body, err := proto.Marshal(agg)
	if err != nil {
		t.Fatalf("marshal aggregated record: %v", err)
	}

	sum := md5.Sum(body)
	out := append(append([]byte{}, kplMagic...), body...)
	return append(out, sum[:]...)
}

func TestShardReader_AggregatedSubSequenceNumbers(t *testing.T) {
	records := []types.Record{
		{Data: kplAggregate(t, "a0", "a1"), SequenceNumber: aws.String("parentOneSeqNum")},
		{Data: kplAggregate(t, "b0", "b1"), SequenceNumber: aws.String("parentTwoSeqNum")},
	}

	start := NewShardCheckpoint("myStream", "myShard", types.ShardIteratorTypeTrimHorizon)
	r := NewShardReader(singleShardClient(records), start, WithReaderAggregation(true))

	// skip the last record so the checkpoint stays on the first record of the
	// second parent
	var got []string
	err := r.Scan(context.TODO(), func(rec *Record) error {
		got = append(got, string(rec.Data))
		if string(rec.Data) == "b1" {
			return ErrSkipCheckpoint
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}

	if joined := strings.Join(got, ","); joined != "a0,a1,b0,b1" {
		t.Errorf("deaggregated records expected %s, got %s", "a0,a1,b0,b1", joined)
	}

	ckpt := r.Checkpoint()
	if ckpt.SequenceNumber != "parentTwoSeqNum" {
		t.Errorf("sequence number expected %s, got %s", "parentTwoSeqNum", ckpt.SequenceNumber)
	}
	if ckpt.SubSequenceNumber != 0 {
		t.Errorf("sub-sequence number expected to restart at 0 on a new parent record, got %d", ckpt.SubSequenceNumber)
	}
}

func TestShardReader_ResumesFromSequenceNumber(t *testing.T) {
	var gotInput *kinesis.GetShardIteratorInput
	client := singleShardClient(nil)
	inner := client.getShardIteratorMock
	client.getShardIteratorMock = func(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error) {
		gotInput = params
		return inner(ctx, params, optFns...)
	}

	start := NewShardCheckpoint("myStream", "myShard", types.ShardIteratorTypeTrimHorizon).MovedTo("resumeSeqNum", 0)
	r := NewShardReader(client, start)

	if err := r.Scan(context.TODO(), func(rec *Record) error { return nil }); err != nil {
		t.Fatalf("scan error: %v", err)
	}

	if gotInput.ShardIteratorType != types.ShardIteratorTypeAfterSequenceNumber {
		t.Errorf("iterator type expected %s, got %s", types.ShardIteratorTypeAfterSequenceNumber, gotInput.ShardIteratorType)
	}
	if aws.ToString(gotInput.StartingSequenceNumber) != "resumeSeqNum" {
		t.Errorf("starting sequence number expected %s, got %s", "resumeSeqNum", aws.ToString(gotInput.StartingSequenceNumber))
	}
}
