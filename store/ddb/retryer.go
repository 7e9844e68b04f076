package ddb

import (
	"errors"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Retryer interface contains one method that decides whether to retry based on error
type Retryer interface {
	ShouldRetry(error) bool
}

// maxRetries bounds retried DynamoDB calls
const maxRetries = 5

// waitTimeExp returns the wait before retry number attempts, following the
// aws exponential backoff algorithm, capped at 5 minutes.
func waitTimeExp(attempts int) time.Duration {
	return time.Duration(math.Min(100*math.Pow(2, float64(attempts)), 300000)) * time.Millisecond
}

// DefaultRetryer retries throughput-limited requests only
type DefaultRetryer struct{}

// ShouldRetry when error occurred
func (r *DefaultRetryer) ShouldRetry(err error) bool {
	var throughputErr *types.ProvisionedThroughputExceededException
	return errors.As(err, &throughputErr)
}
