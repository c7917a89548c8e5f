package sshutil

import "context"

// SSHClient defines the interface for SSH command execution.
// Both the real Client and the scripted mock in sshutil/testing satisfy it,
// so code that drives remote hosts can be tested without a network.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the name used to connect (server name or hostname).
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}
