package source

import (
	"errors"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

type isRecoverableErrorFunc func(error) bool

var isRecoverableErrors = []isRecoverableErrorFunc{
	kinesisIsRecoverableError,
	netIsRecoverableError,
	urlIsRecoverableError,
}

// isRecoverableError determines whether the error is recoverable
func isRecoverableError(err error) bool {
	for _, errF := range isRecoverableErrors {
		if errF(err) {
			return true
		}
	}

	return false
}

func kinesisIsRecoverableError(err error) bool {
	var throughputErr *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughputErr) {
		return true
	}

	var kmsThrottlingErr *types.KMSThrottlingException
	if errors.As(err, &kmsThrottlingErr) {
		return true
	}

	var internalErr *types.InternalFailureException
	return errors.As(err, &internalErr)
}

func urlIsRecoverableError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// awsWaitTimeExp returns the wait before retry number attempts, following the
// aws exponential backoff algorithm, capped at 5 minutes.
// http://docs.aws.amazon.com/general/latest/gr/api-retries.html
func awsWaitTimeExp(attempts int) time.Duration {
	return time.Duration(math.Min(100*math.Pow(2, float64(attempts)), 300000)) * time.Millisecond
}

func netIsRecoverableError(err error) bool {
	recoverableErrors := map[string]bool{
		"connection reset by peer": true,
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return recoverableErrors[opErr.Err.Error()]
	}

	return false
}
