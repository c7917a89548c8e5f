package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/logger"
	"github.com/webui-fleet/webuictl/pkg/sshutil"
)

// Dialer opens an SSH connection to a configured server.
type Dialer interface {
	Dial(ctx context.Context, server config.Server) (sshutil.SSHClient, error)
}

// SSHDialer dials real servers with golang.org/x/crypto/ssh.
type SSHDialer struct {
	Timeout    time.Duration
	KnownHosts string
}

// NewSSHDialer creates a dialer from the ssh section of the config.
func NewSSHDialer(cfg config.SSHConfig) *SSHDialer {
	return &SSHDialer{Timeout: cfg.Timeout, KnownHosts: cfg.KnownHosts}
}

// Dial connects using whichever credential the server has configured.
func (d *SSHDialer) Dial(ctx context.Context, server config.Server) (sshutil.SSHClient, error) {
	client, err := sshutil.Dial(ctx, TargetFor(server, d.KnownHosts), d.Timeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// TargetFor maps a server descriptor onto an sshutil dial target.
func TargetFor(server config.Server, knownHosts string) sshutil.Target {
	target := sshutil.Target{
		Name:       server.Name,
		Host:       server.Host,
		Port:       server.Port,
		User:       server.User,
		KnownHosts: knownHosts,
	}
	switch server.Auth {
	case config.AuthPassword:
		target.Password = server.Password
	case config.AuthKey:
		target.PrivateKey = []byte(server.PrivateKey)
		target.Passphrase = server.Passphrase
	}
	return target
}

// State is the lifecycle state of a Session.
type State int

const (
	Disconnected State = iota
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// CommandResult is the captured outcome of one remote command.
type CommandResult struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Output returns stdout followed by stderr.
func (r CommandResult) Output() string {
	return r.Stdout + r.Stderr
}

// OK reports whether the command exited with status 0.
func (r CommandResult) OK() bool {
	return r.ExitStatus == 0
}

// Runner executes shell commands on one server.
type Runner interface {
	Run(ctx context.Context, cmd string) (CommandResult, error)
}

// Session is one live connection to a server. Sessions are opened per
// operation and closed by the caller; they are never pooled.
type Session struct {
	Server config.Server

	mu       sync.Mutex
	client   sshutil.SSHClient
	state    State
	redactor *strings.Replacer
	log      logger.Logger
}

// Connect dials server and returns a connected session.
func Connect(ctx context.Context, dialer Dialer, server config.Server) (*Session, error) {
	log := logger.Named(logger.Default(), "host")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	client, err := dialer.Dial(ctx, server)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Can't connect to '%s' (%s)", server.Name, server.Address()),
			"Check the host, port and credentials in webuictl.yaml")
	}
	log.Debug("connected to %s (%s) in %s", server.Name, server.Address(), time.Since(start).Round(time.Millisecond))

	return &Session{
		Server: server,
		client: client,
		state:  Connected,
		log:    log,
	}, nil
}

// Redact masks secrets wherever they appear in logged commands.
func (s *Session) Redact(secrets ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pairs []string
	for _, secret := range secrets {
		if secret != "" {
			pairs = append(pairs, secret, "***")
		}
	}
	if len(pairs) > 0 {
		s.redactor = strings.NewReplacer(pairs...)
	}
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes cmd and captures its output. A non-zero exit status is not an
// error; errors mean the command could not be run or its result was lost.
func (s *Session) Run(ctx context.Context, cmd string) (CommandResult, error) {
	s.mu.Lock()
	state, client, redactor := s.state, s.client, s.redactor
	s.mu.Unlock()

	if state != Connected {
		return CommandResult{}, errors.New(errors.ErrConnection,
			fmt.Sprintf("Session to '%s' is %s", s.Server.Name, state),
			"Open a new session before running commands")
	}
	if err := ctx.Err(); err != nil {
		return CommandResult{}, err
	}

	shown := cmd
	if redactor != nil {
		shown = redactor.Replace(cmd)
	}
	s.log.Debug("[%s] $ %s", s.Server.Name, shown)

	stdout, stderr, exitCode, err := client.Exec(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return CommandResult{}, ctxErr
		}
		var structured *errors.Error
		if stderrors.As(err, &structured) {
			return CommandResult{}, redactError(structured, redactor)
		}
		return CommandResult{}, errors.WrapWithCode(err, errors.ErrConnection,
			fmt.Sprintf("Lost the command on '%s'", s.Server.Name),
			"The connection may have dropped. Try again.")
	}

	result := CommandResult{
		Stdout:     string(stdout),
		Stderr:     string(stderr),
		ExitStatus: exitCode,
	}
	if !result.OK() {
		s.log.Debug("[%s] exit %d: %s", s.Server.Name, exitCode, strings.TrimSpace(result.Stderr))
	}
	return result, nil
}

// redactError returns a copy of err with registered secrets masked. The
// cause is flattened to text so masked values cannot leak through it.
func redactError(err *errors.Error, redactor *strings.Replacer) error {
	if redactor == nil {
		return err
	}
	masked := *err
	masked.Message = redactor.Replace(err.Message)
	masked.Suggestion = redactor.Replace(err.Suggestion)
	if err.Cause != nil {
		masked.Cause = stderrors.New(redactor.Replace(err.Cause.Error()))
	}
	return &masked
}

// Close releases the connection. Calling Close more than once is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed {
		return nil
	}
	s.state = Closed
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
