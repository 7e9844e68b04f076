package ddb

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

// Option is used to override defaults when creating a new Checkpoint
type Option func(*Checkpoint)

// WithMaxInterval sets the flush interval
func WithMaxInterval(maxInterval time.Duration) Option {
	return func(c *Checkpoint) {
		c.maxInterval = maxInterval
	}
}

// WithDynamoClient sets the dynamoDb client
func WithDynamoClient(svc *dynamodb.Client) Option {
	return func(c *Checkpoint) {
		c.client = svc
	}
}

// WithRetryer sets the retryer
func WithRetryer(r Retryer) Option {
	return func(c *Checkpoint) {
		c.retryer = r
	}
}

// New returns a checkpoint store that uses DynamoDB for underlying storage.
// Writes are buffered in memory and flushed on a fixed interval; call
// Shutdown to flush any in-flight positions before exiting.
func New(appName, tableName string, opts ...Option) (*Checkpoint, error) {
	ck := &Checkpoint{
		tableName:   tableName,
		appName:     appName,
		maxInterval: time.Duration(1 * time.Minute),
		done:        make(chan struct{}),
		mu:          &sync.Mutex{},
		checkpoints: map[key]string{},
		retryer:     &DefaultRetryer{},
	}

	for _, opt := range opts {
		opt(ck)
	}

	// default client
	if ck.client == nil {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, errors.Wrap(err, "unable to load SDK config")
		}
		ck.client = dynamodb.NewFromConfig(cfg)
	}

	go ck.loop()

	return ck, nil
}

// Checkpoint buffers per-shard positions and persists them to a DynamoDB table
type Checkpoint struct {
	tableName   string
	appName     string
	client      *dynamodb.Client
	maxInterval time.Duration
	mu          *sync.Mutex // protects the checkpoints
	checkpoints map[key]string
	done        chan struct{}
	retryer     Retryer
}

type key struct {
	streamName string
	shardID    string
}

type item struct {
	Namespace      string `json:"namespace" dynamodbav:"namespace"`
	ShardID        string `json:"shard_id" dynamodbav:"shard_id"`
	SequenceNumber string `json:"sequence_number" dynamodbav:"sequence_number"`
}

// GetCheckpoint determines if a checkpoint for a particular Shard exists.
// Typically used to determine whether we should start processing the shard with
// TRIM_HORIZON or AFTER_SEQUENCE_NUMBER (if checkpoint exists).
func (c *Checkpoint) GetCheckpoint(ctx context.Context, streamName, shardID string) (string, error) {
	namespace := c.appName + "-" + streamName

	params := &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"namespace": &types.AttributeValueMemberS{
				Value: namespace,
			},
			"shard_id": &types.AttributeValueMemberS{
				Value: shardID,
			},
		},
	}

	var resp *dynamodb.GetItemOutput
	for attempts := 0; ; attempts++ {
		var err error
		resp, err = c.client.GetItem(ctx, params)
		if err == nil {
			break
		}
		if !c.retryer.ShouldRetry(err) || attempts >= maxRetries {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(waitTimeExp(attempts)):
		}
	}

	var i item
	if err := attributevalue.UnmarshalMap(resp.Item, &i); err != nil {
		return "", errors.Wrap(err, "unmarshal checkpoint item")
	}
	return i.SequenceNumber, nil
}

// SetCheckpoint records a checkpoint for a shard (e.g. sequence number of the
// last record processed by the application). The write is buffered; it reaches
// DynamoDB on the next flush.
func (c *Checkpoint) SetCheckpoint(_ context.Context, streamName, shardID, sequenceNumber string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sequenceNumber == "" {
		return errors.New("sequence number should not be empty")
	}

	c.checkpoints[key{streamName: streamName, shardID: shardID}] = sequenceNumber

	return nil
}

// Shutdown the checkpoint store. Save any in-flight data.
func (c *Checkpoint) Shutdown() error {
	c.done <- struct{}{}
	return c.save()
}

func (c *Checkpoint) loop() {
	tick := time.NewTicker(c.maxInterval)
	defer tick.Stop()
	defer close(c.done)

	for {
		select {
		case <-tick.C:
			c.save()
		case <-c.done:
			return
		}
	}
}

func (c *Checkpoint) save() error {
	c.mu.Lock()
	pending := make(map[key]string, len(c.checkpoints))
	for k, v := range c.checkpoints {
		pending[k] = v
	}
	c.mu.Unlock()

	for key, sequenceNumber := range pending {
		it, err := attributevalue.MarshalMap(item{
			Namespace:      c.appName + "-" + key.streamName,
			ShardID:        key.shardID,
			SequenceNumber: sequenceNumber,
		})
		if err != nil {
			return errors.Wrap(err, "marshal checkpoint item")
		}
		if err := c.putItem(it); err != nil {
			return err
		}
	}

	return nil
}

// putItem writes one checkpoint item, retrying retryable failures with
// exponential backoff. Retries run outside the buffer lock so a throttled
// flush never blocks SetCheckpoint.
func (c *Checkpoint) putItem(it map[string]types.AttributeValue) error {
	for attempts := 0; ; attempts++ {
		_, err := c.client.PutItem(
			context.TODO(),
			&dynamodb.PutItemInput{
				TableName: aws.String(c.tableName),
				Item:      it,
			})
		if err == nil {
			return nil
		}
		if !c.retryer.ShouldRetry(err) || attempts >= maxRetries {
			return err
		}
		time.Sleep(waitTimeExp(attempts))
	}
}
