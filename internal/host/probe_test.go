package host

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webui-fleet/webuictl/internal/errors"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		errMsg string
		want   FailReason
	}{
		{"dial tcp 10.0.0.1:22: i/o timeout", FailTimeout},
		{"connection timeout", FailTimeout},
		{"dial tcp: connection refused", FailRefused},
		{"no route to host", FailUnreachable},
		{"network is unreachable", FailUnreachable},
		{"host is down", FailUnreachable},
		{"lookup gpu.example.com: no such host", FailDNS},
		{"ssh: unable to authenticate, attempted methods [none password]", FailAuth},
		{"ssh: no supported methods remain", FailAuth},
		{"Permission denied (publickey)", FailAuth},
		{"host key mismatch for h:22", FailHostKey},
		{"something strange happened", FailUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.errMsg, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(stderrors.New(tt.errMsg)))
		})
	}
}

func TestCategorize_Nil(t *testing.T) {
	assert.Equal(t, FailUnknown, Categorize(nil))
}

func TestCategorize_WrappedStructuredError(t *testing.T) {
	err := errors.WrapWithCode(stderrors.New("dial tcp: connection refused"),
		errors.ErrConnection, "Can't reach 'gpu-1'", "")
	assert.Equal(t, FailRefused, Categorize(err))
}

func TestFailReason_String(t *testing.T) {
	assert.Equal(t, "connection refused", FailRefused.String())
	assert.Equal(t, "authentication failed", FailAuth.String())
	assert.Equal(t, "unknown error", FailReason(99).String())
}

func TestDescribeFailure(t *testing.T) {
	assert.Empty(t, DescribeFailure(nil))
	assert.Equal(t, "connection timed out", DescribeFailure(stderrors.New("i/o timeout")))

	err := errors.WrapWithCode(stderrors.New("EOF\nmore"), errors.ErrConnection, "SSH handshake with 'gpu-1' didn't go through", "")
	assert.Equal(t, "SSH handshake with 'gpu-1' didn't go through: EOF", DescribeFailure(err))
}
