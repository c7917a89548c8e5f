package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// The template mirrors Config but spells durations as strings, since yaml.v3
// would otherwise write time.Duration as nanoseconds.
type templateDoc struct {
	Version  int              `yaml:"version"`
	Servers  []Server         `yaml:"servers"`
	SSH      templateSSH      `yaml:"ssh"`
	Status   StatusConfig     `yaml:"status"`
	Download templateDownload `yaml:"download"`
}

type templateSSH struct {
	Timeout    string `yaml:"timeout"`
	KnownHosts string `yaml:"known_hosts"`
}

type templateDownload struct {
	Server         string `yaml:"server"`
	ProxyServer    string `yaml:"proxy_server"`
	ProxyPort      int    `yaml:"proxy_port"`
	Dir            string `yaml:"dir"`
	LogFile        string `yaml:"log_file"`
	ModelDir       string `yaml:"model_dir"`
	PollInterval   string `yaml:"poll_interval"`
	Timeout        string `yaml:"timeout"`
	Retries        int    `yaml:"retries"`
	AttemptTimeout string `yaml:"attempt_timeout"`
	LogLines       int    `yaml:"log_lines"`
}

// keyComments are attached above the matching keys in the rendered template.
var keyComments = map[string]string{
	"servers":      "Servers are listed and probed in this order.",
	"ssh":          "Leave known_hosts empty to accept any host key (rented hosts change keys on re-rent).",
	"status":       "parallelism > 1 probes that many servers at once.",
	"proxy_server": "Egress server: its user, password and host form the http(s)_proxy URL for wget.",
	"model_dir":    "Empty means <webui_path>/models/Stable-diffusion on the target.",
}

// Template renders a starter webuictl.yaml with one example server.
func Template() ([]byte, error) {
	def := DefaultConfig()
	doc := templateDoc{
		Version: CurrentConfigVersion,
		Servers: []Server{
			{
				Name:          "gpu-1",
				User:          "root",
				Host:          "region-1.example.com",
				Port:          22,
				Password:      "change-me",
				WebUIPath:     DefaultWebUIPath,
				URL:           "https://gpu-1.example.com",
				LaunchCommand: "python launch.py --listen --port 6006 --xformers",
			},
		},
		SSH: templateSSH{
			Timeout: def.SSH.Timeout.String(),
		},
		Status: def.Status,
		Download: templateDownload{
			ProxyServer:    "gpu-1",
			Dir:            def.Download.Dir,
			LogFile:        def.Download.LogFile,
			PollInterval:   def.Download.PollInterval.String(),
			Timeout:        def.Download.Timeout.String(),
			Retries:        def.Download.Retries,
			AttemptTimeout: def.Download.AttemptTimeout.String(),
			LogLines:       def.Download.LogLines,
		},
	}

	var root yaml.Node
	if err := root.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	root.HeadComment = "webuictl configuration"
	annotate(&root)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes the starter config to path. An existing file is only
// replaced when overwrite is true.
func WriteTemplate(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := Template()
	if err != nil {
		return err
	}

	// Credentials live in this file.
	return os.WriteFile(path, data, 0600)
}

// annotate walks mapping nodes and attaches keyComments to matching keys.
func annotate(node *yaml.Node) {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if c, ok := keyComments[key.Value]; ok {
				key.HeadComment = c
			}
			annotate(node.Content[i+1])
		}
		return
	}
	for _, child := range node.Content {
		annotate(child)
	}
}
