package sshutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webui-fleet/webuictl/internal/errors"
	"golang.org/x/crypto/ssh"
)

func testKeyPEM(t *testing.T, passphrase string) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)
	return pem.EncodeToMemory(block)
}

func TestTargetAddress(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Target{Host: "region-1.example.com", Port: 40022}, "region-1.example.com:40022"},
		{Target{Host: "10.0.0.5"}, "10.0.0.5:22"},
		{Target{Host: "::1", Port: 2222}, "[::1]:2222"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.target.address())
	}
}

func TestTargetLabel(t *testing.T) {
	assert.Equal(t, "gpu-1", Target{Name: "gpu-1", Host: "h"}.label())
	assert.Equal(t, "h", Target{Host: "h"}.label())
}

func TestAuthMethodsFor_Password(t *testing.T) {
	methods, err := authMethodsFor(Target{Host: "h", Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, methods, 2, "password and keyboard-interactive")
}

func TestAuthMethodsFor_PrivateKey(t *testing.T) {
	methods, err := authMethodsFor(Target{Host: "h", PrivateKey: testKeyPEM(t, "")})
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestAuthMethodsFor_EncryptedKey(t *testing.T) {
	key := testKeyPEM(t, "hunter2")

	t.Run("without passphrase", func(t *testing.T) {
		_, err := authMethodsFor(Target{Name: "gpu-1", Host: "h", PrivateKey: key})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
		assert.Contains(t, err.Error(), "encrypted")
	})

	t.Run("with passphrase", func(t *testing.T) {
		methods, err := authMethodsFor(Target{Host: "h", PrivateKey: key, Passphrase: "hunter2"})
		require.NoError(t, err)
		assert.Len(t, methods, 1)
	})
}

func TestAuthMethodsFor_GarbageKey(t *testing.T) {
	_, err := authMethodsFor(Target{Name: "gpu-1", Host: "h", PrivateKey: []byte("not a key")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "couldn't be parsed")
}

func TestAuthMethodsFor_NoCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SSH_AUTH_SOCK", "")

	_, err := authMethodsFor(Target{Name: "gpu-1", Host: "h"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "No credentials for 'gpu-1'")
}

func TestAuthMethodsFor_DefaultKeyFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SSH_AUTH_SOCK", "")
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "id_ed25519"), testKeyPEM(t, ""), 0600))

	methods, err := authMethodsFor(Target{Host: "h"})
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestParsePrivateKey(t *testing.T) {
	signer, err := parsePrivateKey(testKeyPEM(t, ""), "")
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	_, err = parsePrivateKey(testKeyPEM(t, "pw"), "")
	var encErr *EncryptedKeyError
	assert.ErrorAs(t, err, &encErr)

	_, err = parsePrivateKey(testKeyPEM(t, "pw"), "wrong")
	assert.Error(t, err)
}

func TestIdentityFileFrom(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(`
Host gpu-box
  HostName region-1.example.com
  IdentityFile ~/.ssh/id_gpu

Match host other
  IdentityFile ~/.ssh/id_other
`), 0600))

	assert.Equal(t, filepath.Join(home, ".ssh", "id_gpu"), identityFileFrom(path, "gpu-box"))
	assert.Empty(t, identityFileFrom(path, "unknown"))
	assert.Empty(t, identityFileFrom(filepath.Join(t.TempDir(), "missing"), "gpu-box"))
}

func TestPreprocessSSHConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("Host a\n  User x\nMatch all\n  User y\n"), 0600))

	content, matchLine, err := preprocessSSHConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, matchLine)
	assert.NotContains(t, string(content), "User y")
}

func TestExpandPath(t *testing.T) {
	home := homeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/test", home + "/test"},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, expandPath(tt.input), tt.input)
	}
}

func TestSuggestionForDialError(t *testing.T) {
	tests := []struct {
		errMsg   string
		contains string
	}{
		{"connection refused", "powered off"},
		{"no route to host", "Can't route"},
		{"i/o timeout", "timed out"},
		{"lookup foo: no such host", "doesn't resolve"},
		{"random error", "reachable"},
	}

	for _, tt := range tests {
		t.Run(tt.errMsg, func(t *testing.T) {
			assert.Contains(t, suggestionForDialError(stringError(tt.errMsg)), tt.contains)
		})
	}
}

func TestSuggestionForHandshakeError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		target   Target
		contains string
	}{
		{"password rejected", "ssh: unable to authenticate", Target{Password: "pw"}, "Password was rejected"},
		{"key rejected", "ssh: unable to authenticate", Target{}, "authorized_keys"},
		{"host key", "ssh: host key mismatch", Target{}, "known_hosts"},
		{"other", "EOF", Target{}, "ssh -p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, suggestionForHandshakeError(stringError(tt.errMsg), tt.target), tt.contains)
		})
	}
}

func TestHostKeyMismatchError_Suggestion(t *testing.T) {
	err := &HostKeyMismatchError{
		Hostname:     "region-1.example.com:40022",
		ReceivedType: "ssh-ed25519",
		KnownHosts:   "/home/u/.ssh/known_hosts",
	}

	assert.Contains(t, err.Error(), "region-1.example.com:40022")
	suggestion := err.Suggestion()
	assert.Contains(t, suggestion, "Known types: unknown")
	assert.Contains(t, suggestion, "ssh-keygen -f /home/u/.ssh/known_hosts -R region-1.example.com")
}

func TestCreateHostKeyCallback_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "known_hosts")

	cb, err := createHostKeyCallback(path)
	require.NoError(t, err)
	assert.NotNil(t, cb)
	assert.FileExists(t, path)
}

func TestDial_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, Target{Host: "127.0.0.1", Port: 1, Password: "pw"}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
}

func TestDial_HandshakeFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("not ssh\r\n"))
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	_, err = Dial(context.Background(), Target{Name: "gpu-1", Host: "127.0.0.1", Port: addr.Port, Password: "pw"}, 2*time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnection))
	assert.True(t, strings.Contains(err.Error(), "gpu-1"))
}

func TestDial_BadCredentialIsConfigError(t *testing.T) {
	_, err := Dial(context.Background(), Target{Host: "127.0.0.1", Port: 1, PrivateKey: []byte("junk")}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig), "credential problems surface before any dial")
}

type stringError string

func (e stringError) Error() string { return string(e) }
