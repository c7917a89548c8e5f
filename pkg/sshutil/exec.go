package sshutil

import (
	"bytes"
	"context"
	"fmt"

	"github.com/webui-fleet/webuictl/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
//
// If ctx is cancelled while the command runs, the session is closed and
// ctx.Err() is returned. Detached (nohup ... &) commands are unaffected.
func (c *Client) Exec(ctx context.Context, cmd string) (stdout, stderr []byte, exitCode int, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, -1, err
	}

	session, err := c.Client.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Failed to open SSH session on '%s'", c.Host),
			"Connection may have been closed. Try again.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		session.Close()
		return nil, nil, -1, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitErr.ExitStatus(), nil
		}
		if _, ok := err.(*ssh.ExitMissingError); ok {
			return stdoutBuf.Bytes(), stderrBuf.Bytes(), -1, errors.WrapWithCode(err, errors.ErrConnection,
				fmt.Sprintf("Connection to '%s' dropped while running a command", c.Host),
				"The server may have been stopped or rebooted.")
		}
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command on '%s'", c.Host),
			"Check if the command exists on the remote host.")
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), 0, nil
}
