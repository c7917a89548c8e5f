package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The name used to connect
	Address string // The resolved address (host:port)
}

// Target describes where and how to connect. Exactly one of Password or
// PrivateKey is normally set; when both are empty the SSH agent and the
// IdentityFile from ~/.ssh/config are tried instead.
type Target struct {
	Name       string // Label used in messages, e.g. the server name
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey []byte
	Passphrase string

	// KnownHosts enables host key verification against this file.
	// Empty accepts any host key.
	KnownHosts string
}

// address returns the host:port string for dialing.
func (t Target) address() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Host
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// Dial establishes an SSH connection to the target.
// The TCP dial honours ctx; the handshake is bounded by timeout.
func Dial(ctx context.Context, target Target, timeout time.Duration) (*Client, error) {
	config, err := buildSSHConfig(target, timeout)
	if err != nil {
		var wErr *errors.Error
		if stderrors.As(err, &wErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Couldn't set up SSH for '%s'", target.label()),
			"Check the credentials configured for this server")
	}

	address := target.address()
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Can't reach '%s' at %s", target.label(), address),
			suggestionForDialError(err))
	}

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrConnection,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", target.label()),
			suggestionForHandshakeError(err, target))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    target.label(),
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the name used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// buildSSHConfig creates an SSH client config with the configured credential.
func buildSSHConfig(target Target, timeout time.Duration) (*ssh.ClientConfig, error) {
	authMethods, err := authMethodsFor(target)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // rented hosts rotate keys; opt in with known_hosts
	if target.KnownHosts != "" {
		hostKeyCallback, err = createHostKeyCallback(expandPath(target.KnownHosts))
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            target.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// authMethodsFor picks the credential the target declares: a password, an
// in-memory private key, or (when neither is set) the agent and key files.
func authMethodsFor(target Target) ([]ssh.AuthMethod, error) {
	if target.Password != "" {
		password := target.Password
		return []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		}, nil
	}

	if len(target.PrivateKey) > 0 {
		signer, err := parsePrivateKey(target.PrivateKey, target.Passphrase)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				return nil, errors.New(errors.ErrConfig,
					fmt.Sprintf("Private key for '%s' is encrypted", target.label()),
					"Set 'passphrase' for this server in webuictl.yaml")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Private key for '%s' couldn't be parsed", target.label()),
				"Check private_key holds a PEM or OpenSSH private key")
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	var authMethods []ssh.AuthMethod
	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	keyFiles := []string{}
	if identity := identityFileFor(target.Host); identity != "" {
		keyFiles = append(keyFiles, identity)
	}
	keyFiles = append(keyFiles,
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	)

	var encryptedKeys []string
	for _, keyPath := range keyFiles {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			continue
		}
		signer, err := parsePrivateKey(data, "")
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				encryptedKeys = append(encryptedKeys, keyPath)
			}
			continue
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if len(authMethods) == 0 {
		msg := fmt.Sprintf("No credentials for '%s'", target.label())
		if len(encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(encryptedKeys, ", "))
		}
		return nil, errors.New(errors.ErrConfig, msg,
			"Set password or private_key for this server, or load a key into ssh-agent")
	}

	return authMethods, nil
}

// parsePrivateKey parses PEM/OpenSSH key bytes, decrypting with passphrase
// when one is given. Returns EncryptedKeyError if a passphrase is needed.
func parsePrivateKey(key []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{}
		}
		return nil, err
	}
	return signer, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// identityFileFor looks up IdentityFile for host in ~/.ssh/config.
func identityFileFor(host string) string {
	return identityFileFrom(filepath.Join(homeDir(), ".ssh", "config"), host)
}

func identityFileFrom(configPath, host string) string {
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return ""
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	identity, _ := cfg.Get(host, "IdentityFile")
	// ssh_config reports the built-in default when nothing matches.
	if identity == "" || identity == "~/.ssh/identity" {
		if matchLine > 0 {
			matchWarningOnce.Do(func() {
				logger.Default().Warn("Host '%s' not found in SSH config before the Match block at line %d; entries after it are ignored", host, matchLine)
			})
		}
		return ""
	}
	return expandPath(identity)
}

// Helper functions

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? The instance may be powered off."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. The instance might be stopped or the port changed."
	}
	if strings.Contains(errStr, "no such host") {
		return "The hostname doesn't resolve. Check 'host' in webuictl.yaml."
	}
	return "Make sure the host is reachable and the port is right."
}

func suggestionForHandshakeError(err error, target Target) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if target.Password != "" {
			return "Password was rejected. Rented instances often reset it; update webuictl.yaml."
		}
		return "Key was rejected. Check the key is in the server's authorized_keys."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Check ssh.known_hosts or clear it for re-rented hosts."
	}
	return "Something went wrong during SSH setup. Try connecting with ssh -p <port> <user>@<host>."
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	if e.Path == "" {
		return "SSH key is encrypted (passphrase protected)"
	}
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the instance was re-rented, remove the old entry:\n"+
			"    ssh-keygen -f %s -R %s",
		wantStr, e.ReceivedType, e.KnownHosts, host)
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// kevinburke/ssh_config doesn't support Match, so later entries are dropped.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
