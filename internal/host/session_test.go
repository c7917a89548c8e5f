package host

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/logger"
	"github.com/webui-fleet/webuictl/pkg/sshutil"
	sstesting "github.com/webui-fleet/webuictl/pkg/sshutil/testing"
)

type dialerFunc func(ctx context.Context, s config.Server) (sshutil.SSHClient, error)

func (f dialerFunc) Dial(ctx context.Context, s config.Server) (sshutil.SSHClient, error) {
	return f(ctx, s)
}

func mockDialer(m *sstesting.MockClient) Dialer {
	return dialerFunc(func(ctx context.Context, s config.Server) (sshutil.SSHClient, error) {
		return m, nil
	})
}

var gpu1 = config.Server{Name: "gpu-1", User: "root", Host: "h1", Port: 22}

func TestConnect(t *testing.T) {
	mock := sstesting.NewMockClient("gpu-1")

	sess, err := Connect(context.Background(), mockDialer(mock), gpu1)
	require.NoError(t, err)
	assert.Equal(t, Connected, sess.State())
	assert.Equal(t, "gpu-1", sess.Server.Name)
}

func TestConnect_DialFailure(t *testing.T) {
	d := dialerFunc(func(ctx context.Context, s config.Server) (sshutil.SSHClient, error) {
		return nil, stderrors.New("dial tcp: connection refused")
	})

	_, err := Connect(context.Background(), d, gpu1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
	assert.Contains(t, err.Error(), "root@h1:22")
}

func TestConnect_StructuredErrorPassesThrough(t *testing.T) {
	d := dialerFunc(func(ctx context.Context, s config.Server) (sshutil.SSHClient, error) {
		return nil, errors.New(errors.ErrConfig, "Private key for 'gpu-1' is encrypted", "")
	})

	_, err := Connect(context.Background(), d, gpu1)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestConnect_CancelledContext(t *testing.T) {
	called := false
	d := dialerFunc(func(ctx context.Context, s config.Server) (sshutil.SSHClient, error) {
		called = true
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, d, gpu1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestSession_Run(t *testing.T) {
	mock := sstesting.NewMockClient("gpu-1")
	mock.SetCommandResponse("ls", sstesting.CommandResponse{Stdout: []byte("a\n"), Stderr: []byte("warn\n")})
	mock.SetCommandResponse("false", sstesting.CommandResponse{ExitCode: 1, Stderr: []byte("nope")})

	sess, err := Connect(context.Background(), mockDialer(mock), gpu1)
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Run(context.Background(), "ls")
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "a\nwarn\n", res.Output())

	res, err = sess.Run(context.Background(), "false")
	require.NoError(t, err, "non-zero exit is not an error")
	assert.Equal(t, 1, res.ExitStatus)
	assert.False(t, res.OK())
}

func TestSession_RunTransportError(t *testing.T) {
	mock := sstesting.NewMockClient("gpu-1")
	mock.SetDefaultResponse(sstesting.CommandResponse{ExitCode: -1, Error: stderrors.New("EOF")})

	sess, err := Connect(context.Background(), mockDialer(mock), gpu1)
	require.NoError(t, err)

	_, err = sess.Run(context.Background(), "ls")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
}

func TestSession_RunCancelled(t *testing.T) {
	mock := sstesting.NewMockClient("gpu-1")
	sess, err := Connect(context.Background(), mockDialer(mock), gpu1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sess.Run(ctx, "ls")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.Commands(), "nothing is sent after cancellation")
}

func TestSession_CloseIdempotent(t *testing.T) {
	mock := sstesting.NewMockClient("gpu-1")
	sess, err := Connect(context.Background(), mockDialer(mock), gpu1)
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, Closed, sess.State())
	assert.True(t, mock.Closed())

	_, err = sess.Run(context.Background(), "ls")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
}

func TestSession_RedactsLoggedCommands(t *testing.T) {
	buf := logger.NewBufferLogger()
	prev := logger.Default()
	logger.SetDefault(buf)
	defer logger.SetDefault(prev)

	mock := sstesting.NewMockClient("gpu-1")
	sess, err := Connect(context.Background(), mockDialer(mock), gpu1)
	require.NoError(t, err)
	sess.Redact("s3cret", "")

	_, err = sess.Run(context.Background(), "export http_proxy=http://u:s3cret@h:22")
	require.NoError(t, err)

	require.NotEmpty(t, buf.Messages)
	for _, m := range buf.Messages {
		assert.NotContains(t, m.Message, "s3cret")
	}
	assert.Contains(t, mock.Commands()[0], "s3cret", "the real command is unchanged")
}

func TestTargetFor(t *testing.T) {
	pw := config.Server{Name: "a", Host: "h", Port: 2222, User: "u", Auth: config.AuthPassword, Password: "pw", PrivateKey: "ignored"}
	target := TargetFor(pw, "/kh")
	assert.Equal(t, "pw", target.Password)
	assert.Empty(t, target.PrivateKey)
	assert.Equal(t, "/kh", target.KnownHosts)
	assert.Equal(t, 2222, target.Port)

	key := config.Server{Name: "b", Host: "h", User: "u", Auth: config.AuthKey, PrivateKey: "PEM", Passphrase: "pp"}
	target = TargetFor(key, "")
	assert.Empty(t, target.Password)
	assert.Equal(t, []byte("PEM"), target.PrivateKey)
	assert.Equal(t, "pp", target.Passphrase)

	agent := config.Server{Name: "c", Host: "h", User: "u", Auth: config.AuthAgent}
	target = TargetFor(agent, "")
	assert.Empty(t, target.Password)
	assert.Empty(t, target.PrivateKey)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "closed", Closed.String())
}

func TestSession_RedactsErrors(t *testing.T) {
	mock := sstesting.NewMockClient("gpu-1")
	mock.SetDefaultResponse(sstesting.CommandResponse{
		ExitCode: -1,
		Error: errors.WrapWithCode(stderrors.New("exec http://u:s3cret@h:22 failed"), errors.ErrExec,
			"Failed to run export http_proxy=http://u:s3cret@h:22", ""),
	})

	sess, err := Connect(context.Background(), mockDialer(mock), gpu1)
	require.NoError(t, err)
	sess.Redact("s3cret")

	_, err = sess.Run(context.Background(), "export http_proxy=http://u:s3cret@h:22")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.NotContains(t, err.Error(), "s3cret")
	assert.Contains(t, err.Error(), "***")
}
