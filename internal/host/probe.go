package host

import (
	"strings"

	"github.com/webui-fleet/webuictl/internal/errors"
)

// FailReason categorizes why a server could not be reached.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailAuth
	FailHostKey
	FailDNS
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "connection timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailAuth:
		return "authentication failed"
	case FailHostKey:
		return "host key verification failed"
	case FailDNS:
		return "hostname does not resolve"
	default:
		return "unknown error"
	}
}

// Categorize maps a connection error onto a FailReason.
func Categorize(err error) FailReason {
	if err == nil {
		return FailUnknown
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return FailTimeout
	case strings.Contains(errStr, "connection refused"):
		return FailRefused
	case strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down"):
		return FailUnreachable
	case strings.Contains(errStr, "no such host"):
		return FailDNS
	case strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "authentication failed"):
		return FailAuth
	case strings.Contains(errStr, "host key"):
		return FailHostKey
	}
	return FailUnknown
}

// DescribeFailure renders a connection error as one short line for reports.
// Known causes use their category; anything else falls back to the error's
// own one-line reason.
func DescribeFailure(err error) string {
	if err == nil {
		return ""
	}
	if reason := Categorize(err); reason != FailUnknown {
		return reason.String()
	}
	return errors.Reason(err)
}
