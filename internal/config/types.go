package config

import (
	"path"
	"strconv"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Auth modes for Server.Auth.
const (
	AuthPassword = "password"
	AuthKey      = "key"
	AuthAgent    = "agent"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultWebUIPath      = "~/autodl-tmp/stable-diffusion-webui"
	DefaultProcessPattern = "launch.py"
	DefaultModelSubdir    = "models/Stable-diffusion"
	DefaultPort           = 22
)

// Config represents the complete webuictl.yaml configuration file.
type Config struct {
	Version  int            `yaml:"version" mapstructure:"version"`
	Servers  []Server       `yaml:"servers" mapstructure:"servers"`
	SSH      SSHConfig      `yaml:"ssh" mapstructure:"ssh"`
	Status   StatusConfig   `yaml:"status" mapstructure:"status"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
}

// Server describes one managed GPU server. Values are read once at load time
// and treated as immutable afterwards.
type Server struct {
	// Name is the unique key used by restart and download --server.
	Name string `yaml:"name" mapstructure:"name"`
	User string `yaml:"user" mapstructure:"user"`
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`

	// Auth selects the credential: "password", "key" or "agent".
	// Inferred from whichever of Password/PrivateKey is set when empty.
	Auth           string `yaml:"auth,omitempty" mapstructure:"auth"`
	Password       string `yaml:"password,omitempty" mapstructure:"password"`
	PrivateKey     string `yaml:"private_key,omitempty" mapstructure:"private_key"`
	PrivateKeyFile string `yaml:"private_key_file,omitempty" mapstructure:"private_key_file"`
	Passphrase     string `yaml:"passphrase,omitempty" mapstructure:"passphrase"`

	// WebUIPath is the web UI checkout on the remote (outputs/ and models/ live under it).
	WebUIPath string `yaml:"webui_path" mapstructure:"webui_path"`

	// URL is the public address of the web UI, shown in status and restart output.
	URL string `yaml:"url,omitempty" mapstructure:"url"`

	// LaunchCommand is run from WebUIPath by restart, detached with nohup.
	LaunchCommand string `yaml:"launch_command,omitempty" mapstructure:"launch_command"`

	// ProcessPattern is matched against `ps` args to find the running service.
	ProcessPattern string `yaml:"process_pattern,omitempty" mapstructure:"process_pattern"`
}

// Address returns the user@host:port form used by list.
func (s Server) Address() string {
	return s.User + "@" + s.Host + ":" + strconv.Itoa(s.Port)
}

// SSHConfig controls connection behaviour shared by every server.
type SSHConfig struct {
	// Timeout bounds the TCP dial and SSH handshake.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// KnownHosts enables host key verification against this file when set.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`
}

// StatusConfig controls the status aggregator.
type StatusConfig struct {
	// Parallelism is the number of servers probed at once. 1 probes sequentially.
	Parallelism int `yaml:"parallelism" mapstructure:"parallelism"`
}

// DownloadConfig holds the global settings of the download supervisor.
type DownloadConfig struct {
	// Server is the default download target. Empty means the first registered server.
	Server string `yaml:"server" mapstructure:"server"`

	// ProxyServer names the egress server whose credentials build the proxy URL.
	ProxyServer string `yaml:"proxy_server" mapstructure:"proxy_server"`

	// ProxyPort overrides the egress server's SSH port in the proxy URL.
	ProxyPort int `yaml:"proxy_port" mapstructure:"proxy_port"`

	// Dir is where wget runs and writes its log on the target.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// LogFile is the wget log name inside Dir.
	LogFile string `yaml:"log_file" mapstructure:"log_file"`

	// ModelDir receives finished downloads. Empty means <webui_path>/models/Stable-diffusion.
	ModelDir string `yaml:"model_dir" mapstructure:"model_dir"`

	PollInterval   time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries        int           `yaml:"retries" mapstructure:"retries"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`

	// LogLines is N in the head/tail window read from the wget log.
	LogLines int `yaml:"log_lines" mapstructure:"log_lines"`
}

// LogPath returns the absolute path of the wget log on the target.
func (d DownloadConfig) LogPath() string {
	return path.Join(d.Dir, d.LogFile)
}

// ModelDirFor returns the model directory for the given target server.
func (d DownloadConfig) ModelDirFor(s Server) string {
	if d.ModelDir != "" {
		return d.ModelDir
	}
	return path.Join(s.WebUIPath, DefaultModelSubdir)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Servers: []Server{},
		SSH: SSHConfig{
			Timeout: 10 * time.Second,
		},
		Status: StatusConfig{
			Parallelism: 1,
		},
		Download: DownloadConfig{
			Dir:            "/tmp/webui-download",
			LogFile:        "wget.log",
			PollInterval:   20 * time.Second,
			Timeout:        600 * time.Second,
			Retries:        3,
			AttemptTimeout: 60 * time.Second,
			LogLines:       10,
		},
	}
}
