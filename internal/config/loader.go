package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"github.com/webui-fleet/webuictl/internal/errors"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "webuictl.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/webuictl"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides (WEBUICTL_DOWNLOAD_PROXY_SERVER, ...).
	EnvPrefix = "WEBUICTL"
)

// Load reads config from the specified path, applies defaults and
// environment overrides, and resolves every server into a fully populated
// value (private key files read, auth mode inferred).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'webuictl init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. webuictl.yaml in current directory
// 3. ~/.config/webuictl/config.yaml (global)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, _ := os.UserHomeDir(); home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	for i := range cfg.Servers {
		resolved, err := resolveServer(cfg.Servers[i], filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		cfg.Servers[i] = resolved
	}

	return cfg, nil
}

// setDefaults registers defaults with viper so environment overrides apply
// to keys that are absent from the file.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("version", def.Version)
	v.SetDefault("ssh.timeout", def.SSH.Timeout.String())
	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("status.parallelism", def.Status.Parallelism)
	v.SetDefault("download.server", "")
	v.SetDefault("download.proxy_server", "")
	v.SetDefault("download.proxy_port", 0)
	v.SetDefault("download.dir", def.Download.Dir)
	v.SetDefault("download.log_file", def.Download.LogFile)
	v.SetDefault("download.model_dir", "")
	v.SetDefault("download.poll_interval", def.Download.PollInterval.String())
	v.SetDefault("download.timeout", def.Download.Timeout.String())
	v.SetDefault("download.retries", def.Download.Retries)
	v.SetDefault("download.attempt_timeout", def.Download.AttemptTimeout.String())
	v.SetDefault("download.log_lines", def.Download.LogLines)
}

// resolveServer fills defaults and loads key material so the core never has
// to deal with optional fields.
func resolveServer(s Server, baseDir string) (Server, error) {
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.WebUIPath == "" {
		s.WebUIPath = DefaultWebUIPath
	}
	s.WebUIPath = strings.TrimRight(s.WebUIPath, "/")
	if s.ProcessPattern == "" {
		s.ProcessPattern = fingerprintFromLaunch(s.LaunchCommand)
	}

	if s.PrivateKey == "" && s.PrivateKeyFile != "" {
		keyPath := expandHome(s.PrivateKeyFile)
		if !filepath.IsAbs(keyPath) {
			keyPath = filepath.Join(baseDir, keyPath)
		}
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return s, errors.WrapWithCode(err, errors.ErrConfig,
				"Can't read private key for server '"+s.Name+"'",
				"Check private_key_file points to a readable key")
		}
		s.PrivateKey = string(data)
	}

	s.Auth = strings.ToLower(strings.TrimSpace(s.Auth))
	if s.Auth == "" {
		switch {
		case s.PrivateKey != "":
			s.Auth = AuthKey
		case s.Password != "":
			s.Auth = AuthPassword
		default:
			s.Auth = AuthAgent
		}
	}

	return s, nil
}

var scriptPattern = regexp.MustCompile(`[\w./-]+\.py\b`)

// fingerprintFromLaunch picks the script name out of a launch command, so
// "python launch.py --listen" is recognised by "launch.py".
func fingerprintFromLaunch(launch string) string {
	if m := scriptPattern.FindString(launch); m != "" {
		return filepath.Base(m)
	}
	return DefaultProcessPattern
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
