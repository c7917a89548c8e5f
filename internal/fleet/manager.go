// Package fleet is the front-end facing entry point: it ties the config,
// registry and dialer together behind the four fleet operations.
package fleet

import (
	"context"
	"strings"

	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/download"
	"github.com/webui-fleet/webuictl/internal/host"
	"github.com/webui-fleet/webuictl/internal/logger"
	"github.com/webui-fleet/webuictl/internal/webui"
)

// Manager runs fleet operations. Every operation opens its own sessions and
// closes them before returning.
type Manager struct {
	Config   *config.Config
	Registry *host.Registry
	Dialer   host.Dialer
	Finder   host.ProcessFinder
	Logger   logger.Logger

	// Wait is used between download polls. Defaults to download.Sleep.
	Wait download.WaitFunc
}

// NewManager builds a manager that dials real servers.
func NewManager(cfg *config.Config, log logger.Logger) *Manager {
	return &Manager{
		Config:   cfg,
		Registry: host.NewRegistry(cfg.Servers),
		Dialer:   host.NewSSHDialer(cfg.SSH),
		Finder:   host.PSFinder{},
		Logger:   log,
		Wait:     download.Sleep,
	}
}

func (m *Manager) log() logger.Logger {
	if m.Logger == nil {
		return logger.Noop()
	}
	return m.Logger
}

// List returns one "name: user@host:port" line per server.
func (m *Manager) List() string {
	servers := m.Registry.All()
	if len(servers) == 0 {
		return webui.EmptyRegistry
	}
	lines := make([]string, len(servers))
	for i, s := range servers {
		lines[i] = s.Name + ": " + s.Address()
	}
	return strings.Join(lines, "\n")
}

// Status probes every server and renders the blocks in registration order.
func (m *Manager) Status(ctx context.Context) string {
	return webui.AggregateStatus(ctx, m.Dialer, m.Registry, m.Finder, m.parallelism())
}

// StatusReports probes every server and returns the structured reports.
func (m *Manager) StatusReports(ctx context.Context) []webui.StatusReport {
	return webui.ProbeAll(ctx, m.Dialer, m.Registry.All(), m.Finder, m.parallelism())
}

func (m *Manager) parallelism() int {
	if m.Config == nil || m.Config.Status.Parallelism < 1 {
		return 1
	}
	return m.Config.Status.Parallelism
}

// Restart restarts the web UI on the named server.
func (m *Manager) Restart(ctx context.Context, name string) (string, error) {
	return webui.Restart(ctx, m.Dialer, m.Registry, name, m.Finder)
}

// DownloadRequest describes one download.
type DownloadRequest struct {
	URL        string
	OutputName string
	// Server overrides download.server.
	Server string
	// Progress receives every supervisor update. May be nil.
	Progress func(download.Update)
}

// Download fetches a model onto the target server through the egress proxy
// and moves it into the model directory. Config problems are reported
// before any connection is made.
func (m *Manager) Download(ctx context.Context, req DownloadRequest) (string, error) {
	res, err := m.DownloadResult(ctx, req)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// DownloadResult is Download returning the structured result.
func (m *Manager) DownloadResult(ctx context.Context, req DownloadRequest) (download.Result, error) {
	target, egress, err := download.ResolveServers(m.Registry.All(), m.Config.Download, req.Server)
	if err != nil {
		return download.Result{}, err
	}
	settings := download.NewSettings(m.Config.Download, target, egress)

	sess, err := host.Connect(ctx, m.Dialer, target)
	if err != nil {
		return download.Result{}, err
	}
	defer sess.Close()
	sess.Redact(settings.ProxyURL, egress.Password)

	opts := []download.Option{download.WithLogger(logger.Named(m.log(), "download"))}
	if req.Progress != nil {
		opts = append(opts, download.WithProgress(req.Progress))
	}
	sup := download.NewSupervisor(sess, m.Finder, target.Name, settings, req.URL, req.OutputName, opts...)

	wait := m.Wait
	if wait == nil {
		wait = download.Sleep
	}
	return download.Run(ctx, sup, wait)
}
