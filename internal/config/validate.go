package config

import (
	"fmt"
	"strings"

	"github.com/webui-fleet/webuictl/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
// It does not require a download section: a missing proxy_server is reported
// by the download command itself so list/status keep working.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but webuictl only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade webuictl")
	}

	for i, s := range cfg.Servers {
		if err := validateServer(i, s); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'servers' section in your webuictl.yaml.")
		}
	}

	if cfg.SSH.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			"ssh.timeout must be positive",
			"Try something like 10s.")
	}

	if cfg.Status.Parallelism < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("status.parallelism must be at least 1, got %d", cfg.Status.Parallelism),
			"Use 1 to probe servers one at a time.")
	}

	if err := validateDownload(cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'download' section in your webuictl.yaml.")
	}

	return nil
}

func validateServer(i int, s Server) error {
	label := s.Name
	if label == "" {
		label = fmt.Sprintf("#%d", i+1)
	}

	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("server %s: name is required", label)
	}
	if s.Host == "" {
		return fmt.Errorf("server '%s': host is required", label)
	}
	if s.User == "" {
		return fmt.Errorf("server '%s': user is required", label)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server '%s': port %d is out of range", label, s.Port)
	}

	switch s.Auth {
	case AuthPassword:
		if s.Password == "" {
			return fmt.Errorf("server '%s': auth is 'password' but no password is set", label)
		}
	case AuthKey:
		if s.PrivateKey == "" {
			return fmt.Errorf("server '%s': auth is 'key' but neither private_key nor private_key_file is set", label)
		}
	case AuthAgent:
	default:
		return fmt.Errorf("server '%s': unknown auth '%s' (use password, key or agent)", label, s.Auth)
	}

	return nil
}

func validateDownload(cfg *Config) error {
	d := cfg.Download

	if d.Server != "" && !hasServer(cfg, d.Server) {
		return fmt.Errorf("download.server '%s' is not a configured server", d.Server)
	}
	if d.ProxyServer != "" && !hasServer(cfg, d.ProxyServer) {
		return fmt.Errorf("download.proxy_server '%s' is not a configured server", d.ProxyServer)
	}
	if d.ProxyPort < 0 || d.ProxyPort > 65535 {
		return fmt.Errorf("download.proxy_port %d is out of range", d.ProxyPort)
	}
	if !strings.HasPrefix(d.Dir, "/") {
		return fmt.Errorf("download.dir must be an absolute path, got '%s'", d.Dir)
	}
	if d.LogFile == "" || strings.Contains(d.LogFile, "/") {
		return fmt.Errorf("download.log_file must be a plain file name, got '%s'", d.LogFile)
	}
	if d.PollInterval <= 0 {
		return fmt.Errorf("download.poll_interval must be positive")
	}
	if d.Timeout < d.PollInterval {
		return fmt.Errorf("download.timeout (%s) must be at least poll_interval (%s)", d.Timeout, d.PollInterval)
	}
	if d.Retries < 1 {
		return fmt.Errorf("download.retries must be at least 1")
	}
	if d.AttemptTimeout <= 0 {
		return fmt.Errorf("download.attempt_timeout must be positive")
	}
	if d.LogLines < 1 {
		return fmt.Errorf("download.log_lines must be at least 1")
	}

	return nil
}

func hasServer(cfg *Config, name string) bool {
	for _, s := range cfg.Servers {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Warnings returns non-fatal issues worth surfacing, such as duplicate names.
// Lookups use the first server with a given name.
func Warnings(cfg *Config) []string {
	var warnings []string
	seen := make(map[string]bool)
	for _, s := range cfg.Servers {
		if seen[s.Name] {
			warnings = append(warnings, fmt.Sprintf("server name '%s' is used more than once; only the first entry is reachable by name", s.Name))
			continue
		}
		seen[s.Name] = true
	}
	return warnings
}
