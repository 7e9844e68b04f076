package source

import (
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/pkg/errors"
)

func Test_isRecoverableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "throughput exceeded",
			err:  &types.ProvisionedThroughputExceededException{},
			want: true,
		},
		{
			name: "wrapped throughput exceeded",
			err:  errors.Wrap(&types.ProvisionedThroughputExceededException{}, "get records"),
			want: true,
		},
		{
			name: "kms throttling",
			err:  &types.KMSThrottlingException{},
			want: true,
		},
		{
			name: "internal failure",
			err:  &types.InternalFailureException{},
			want: true,
		},
		{
			name: "url error",
			err:  &url.Error{Op: "Post", URL: "https://kinesis.us-west-2.amazonaws.com", Err: fmt.Errorf("EOF")},
			want: true,
		},
		{
			name: "connection reset",
			err:  &net.OpError{Op: "read", Err: fmt.Errorf("connection reset by peer")},
			want: true,
		},
		{
			name: "other net error",
			err:  &net.OpError{Op: "read", Err: fmt.Errorf("no route to host")},
			want: false,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			want: false,
		},
		{
			name: "expired iterator",
			err:  &types.ExpiredIteratorException{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRecoverableError(tt.err); got != tt.want {
				t.Errorf("isRecoverableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
