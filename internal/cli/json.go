package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/host"
)

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound    = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeServerNotFound    = "SERVER_NOT_FOUND"
	ErrCodeSSHTimeout        = "SSH_TIMEOUT"
	ErrCodeSSHAuthFailed     = "SSH_AUTH_FAILED"
	ErrCodeSSHHostKey        = "SSH_HOST_KEY"
	ErrCodeSSHConnectionFail = "SSH_CONNECTION_FAILED"
	ErrCodeCommandFailed     = "COMMAND_FAILED"
	ErrCodeUnknown           = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: true,
		Data:    data,
	})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	})
}

func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var e *errors.Error
	if !stderrors.As(err, &e) {
		return &JSONError{
			Code:    ErrCodeUnknown,
			Message: err.Error(),
		}
	}

	out := &JSONError{
		Code:       mapErrorCode(e.Code, e.Message),
		Message:    e.Message,
		Suggestion: e.Suggestion,
	}
	if e.Code == errors.ErrConnection {
		reason := host.Categorize(err)
		out.Code = connectionCode(reason)
		out.Details = map[string]interface{}{"reason": reason.String()}
	}
	return out
}

func mapErrorCode(code, message string) string {
	switch code {
	case errors.ErrConfig:
		msg := strings.ToLower(message)
		if strings.Contains(msg, "not found") || strings.Contains(msg, "no config file") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrNotFound:
		return ErrCodeServerNotFound
	case errors.ErrConnection:
		return ErrCodeSSHConnectionFail
	case errors.ErrExec:
		return ErrCodeCommandFailed
	}
	return ErrCodeUnknown
}

func connectionCode(reason host.FailReason) string {
	switch reason {
	case host.FailTimeout:
		return ErrCodeSSHTimeout
	case host.FailAuth:
		return ErrCodeSSHAuthFailed
	case host.FailHostKey:
		return ErrCodeSSHHostKey
	}
	return ErrCodeSSHConnectionFail
}
