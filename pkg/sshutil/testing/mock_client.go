package testing

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/webui-fleet/webuictl/pkg/sshutil"
)

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error

	// Block makes Exec wait until its context is done and return ctx.Err().
	Block bool
}

// rule maps a command substring to one or more responses. When a rule holds
// several responses they are handed out in order and the last one repeats.
type rule struct {
	pattern   string
	responses []CommandResponse
	calls     int
}

func (r *rule) next() CommandResponse {
	i := r.calls
	if i >= len(r.responses) {
		i = len(r.responses) - 1
	}
	r.calls++
	return r.responses[i]
}

// MockClient simulates an SSH connection for testing.
// Commands are answered from scripted rules checked in registration order;
// the first rule whose pattern is a substring of the command wins.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	closed   bool
	rules    []*rule
	fallback CommandResponse
	commands []string
}

// NewMockClient creates a mock client that answers every command with
// empty output and exit code 0 until rules are added.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:    host,
		address: host + ":22",
	}
}

// Exec records the command and returns the scripted response.
func (m *MockClient) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, nil, -1, errors.New("connection closed")
	}
	m.commands = append(m.commands, cmd)
	resp := m.fallback
	for _, r := range m.rules {
		if strings.Contains(cmd, r.pattern) {
			resp = r.next()
			break
		}
	}
	m.mu.Unlock()

	if resp.Block {
		<-ctx.Done()
		return nil, nil, -1, ctx.Err()
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for commands containing pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.SetCommandSequence(pattern, []CommandResponse{resp})
}

// SetCommandSequence registers responses handed out one per matching call.
// Once exhausted, the last response repeats.
func (m *MockClient) SetCommandSequence(pattern string, responses []CommandResponse) {
	if len(responses) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, &rule{pattern: pattern, responses: responses})
}

// SetDefaultResponse sets the response for commands no rule matches.
func (m *MockClient) SetDefaultResponse(resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// Commands returns every command executed so far, in order.
func (m *MockClient) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.commands))
	copy(out, m.commands)
	return out
}

// CommandsContaining returns the executed commands that contain substr.
func (m *MockClient) CommandsContaining(substr string) []string {
	var out []string
	for _, cmd := range m.Commands() {
		if strings.Contains(cmd, substr) {
			out = append(out, cmd)
		}
	}
	return out
}

// Closed reports whether Close has been called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reopen clears the closed flag so the same client can be dialed again.
func (m *MockClient) Reopen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = false
}

// Reset clears recorded commands and reopens the connection. Rules are kept.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
	m.closed = false
	for _, r := range m.rules {
		r.calls = 0
	}
}

// Stdout is shorthand for a successful response printing s.
func Stdout(s string) CommandResponse {
	return CommandResponse{Stdout: []byte(s)}
}

// Verify MockClient implements SSHClient interface
var _ sshutil.SSHClient = (*MockClient)(nil)
