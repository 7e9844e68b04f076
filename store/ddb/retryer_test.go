package ddb

import (
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func Test_ShouldRetry(t *testing.T) {
	r := &DefaultRetryer{}

	if !r.ShouldRetry(&types.ProvisionedThroughputExceededException{}) {
		t.Errorf("throughput exceeded should be retried")
	}
	if r.ShouldRetry(&types.ResourceNotFoundException{}) {
		t.Errorf("resource not found should not be retried")
	}
	if r.ShouldRetry(fmt.Errorf("boom")) {
		t.Errorf("plain error should not be retried")
	}
}
