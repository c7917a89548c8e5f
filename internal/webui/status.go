// Package webui probes and restarts the web UI service on a server and
// aggregates per-server status for the fleet.
package webui

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/host"
	"github.com/webui-fleet/webuictl/internal/util"
)

// Placeholders used in reports.
const (
	NoImages      = "no images found"
	NotRunning    = "not running, consider restart"
	EmptyRegistry = "no configured servers"
)

// imageDirs are the output folders, relative to the web UI path, that hold
// one YYYY-MM-DD subdirectory per day of generated images.
var imageDirs = []string{
	"outputs/txt2img-images",
	"outputs/img2img-images",
}

// StatusReport is the probed state of one server.
type StatusReport struct {
	ServerName string `json:"server"`
	Address    string `json:"address"`
	Running    bool   `json:"running"`
	RunStatus  string `json:"status"`
	LastUsed   string `json:"last_used"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the server could not be probed at all.
func (r StatusReport) Failed() bool {
	return r.Error != ""
}

// Border returns the "==== name ====" header line.
func Border(name string) string {
	return fmt.Sprintf("==== %s ====", name)
}

// Block renders the report as plain text.
func (r StatusReport) Block() string {
	lines := []string{Border(r.ServerName)}
	if r.Failed() {
		lines = append(lines, "error: "+r.Error)
		return strings.Join(lines, "\n")
	}
	lines = append(lines,
		"status: "+r.RunStatus,
		"last used: "+r.LastUsed,
	)
	if r.URL != "" {
		lines = append(lines, "url: "+r.URL)
	}
	return strings.Join(lines, "\n")
}

// Probe connects to server and reports whether the web UI is running and
// when it last produced an image. The error is only ever a connection
// failure; later steps degrade to placeholders.
func Probe(ctx context.Context, dialer host.Dialer, server config.Server, finder host.ProcessFinder) (*StatusReport, error) {
	sess, err := host.Connect(ctx, dialer, server)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	lastUsed := LastUsed(ctx, sess, server.WebUIPath)
	status := runStatus(ctx, sess, finder, server.ProcessPattern)
	return &StatusReport{
		ServerName: server.Name,
		Address:    server.Address(),
		URL:        server.URL,
		LastUsed:   lastUsed,
		RunStatus:  status,
		Running:    IsRunning(status),
	}, nil
}

// LastUsed finds the newest generated image under webUIPath.
func LastUsed(ctx context.Context, r host.Runner, webUIPath string) string {
	var dirs []string
	for _, d := range imageDirs {
		cmd := fmt.Sprintf("find %s -maxdepth 1 -type d -name '????-??-??'",
			util.ShellQuotePreserveTilde(path.Join(webUIPath, d)))
		res, err := r.Run(ctx, cmd)
		if err != nil {
			return unknown(err)
		}
		if latest := LatestDateDir(res.Stdout); latest != "" {
			dirs = append(dirs, latest)
		}
	}
	if len(dirs) == 0 {
		return NoImages
	}

	quoted := make([]string, len(dirs))
	for i, d := range dirs {
		quoted[i] = util.ShellQuote(d)
	}
	cmd := fmt.Sprintf("find %s -type f -exec stat -c '%%y|%%n' {} + | sort -r | head -n 1", strings.Join(quoted, " "))
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return unknown(err)
	}
	if last, ok := ParseLastUsed(res.Stdout); ok {
		return last
	}
	return NoImages
}

func runStatus(ctx context.Context, r host.Runner, finder host.ProcessFinder, fingerprint string) string {
	procs, err := finder.Find(ctx, r, fingerprint)
	if err != nil {
		return unknown(err)
	}
	if len(procs) == 0 {
		return NotRunning
	}
	return fmt.Sprintf("running (up %s)", procs[0].Elapsed)
}

// IsRunning reports whether a RunStatus string describes a live service.
func IsRunning(status string) bool {
	return strings.HasPrefix(status, "running")
}

func unknown(err error) string {
	return fmt.Sprintf("unknown (%s)", errors.Reason(err))
}
