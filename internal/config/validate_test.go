package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webui-fleet/webuictl/internal/errors"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Servers = []Server{
		{Name: "gpu-1", User: "root", Host: "h1", Port: 22, Auth: AuthPassword, Password: "pw", WebUIPath: DefaultWebUIPath},
		{Name: "gpu-2", User: "root", Host: "h2", Port: 22, Auth: AuthKey, PrivateKey: "KEY", WebUIPath: DefaultWebUIPath},
	}
	cfg.Download.ProxyServer = "gpu-1"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "empty registry is valid",
			mutate: func(c *Config) { c.Servers = nil; c.Download.ProxyServer = "" },
		},
		{
			name:    "future version",
			mutate:  func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			wantErr: "from the future",
		},
		{
			name:    "missing name",
			mutate:  func(c *Config) { c.Servers[0].Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Servers[0].Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "missing user",
			mutate:  func(c *Config) { c.Servers[1].User = "" },
			wantErr: "user is required",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Servers[0].Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "password auth without password",
			mutate:  func(c *Config) { c.Servers[0].Password = "" },
			wantErr: "no password is set",
		},
		{
			name:    "key auth without key",
			mutate:  func(c *Config) { c.Servers[1].PrivateKey = "" },
			wantErr: "neither private_key nor private_key_file",
		},
		{
			name:    "unknown auth",
			mutate:  func(c *Config) { c.Servers[0].Auth = "kerberos" },
			wantErr: "unknown auth",
		},
		{
			name:    "unknown proxy server",
			mutate:  func(c *Config) { c.Download.ProxyServer = "nope" },
			wantErr: "download.proxy_server 'nope'",
		},
		{
			name:    "unknown download target",
			mutate:  func(c *Config) { c.Download.Server = "nope" },
			wantErr: "download.server 'nope'",
		},
		{
			name:    "relative download dir",
			mutate:  func(c *Config) { c.Download.Dir = "tmp/dl" },
			wantErr: "absolute path",
		},
		{
			name:    "log file with slash",
			mutate:  func(c *Config) { c.Download.LogFile = "a/b.log" },
			wantErr: "plain file name",
		},
		{
			name:    "timeout shorter than interval",
			mutate:  func(c *Config) { c.Download.Timeout = 5 * time.Second },
			wantErr: "at least poll_interval",
		},
		{
			name:    "zero retries",
			mutate:  func(c *Config) { c.Download.Retries = 0 },
			wantErr: "retries",
		},
		{
			name:    "zero log lines",
			mutate:  func(c *Config) { c.Download.LogLines = 0 },
			wantErr: "log_lines",
		},
		{
			name:    "zero parallelism",
			mutate:  func(c *Config) { c.Status.Parallelism = 0 },
			wantErr: "parallelism",
		},
		{
			name:    "zero ssh timeout",
			mutate:  func(c *Config) { c.SSH.Timeout = 0 },
			wantErr: "ssh.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Warnings(cfg))

	cfg.Servers = append(cfg.Servers, Server{Name: "gpu-1", User: "u", Host: "h3", Port: 22, Auth: AuthAgent})
	warnings := Warnings(cfg)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "gpu-1")
}
