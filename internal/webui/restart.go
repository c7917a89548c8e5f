package webui

import (
	"context"
	"fmt"
	"strings"

	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/host"
	"github.com/webui-fleet/webuictl/internal/logger"
	"github.com/webui-fleet/webuictl/internal/util"
)

// LogFile receives the relaunched service's output, relative to the web UI path.
const LogFile = "webui.log"

// LaunchCommand starts the service detached so it outlives the SSH session.
// Only the nohup is backgrounded: a backgrounded && chain would keep the
// channel's stdout open until the service exits, and would hide a failed cd.
func LaunchCommand(server config.Server) string {
	return fmt.Sprintf("cd %s && { nohup %s > %s 2>&1 < /dev/null & }",
		util.ShellQuotePreserveTilde(server.WebUIPath), server.LaunchCommand, LogFile)
}

// KillCommand terminates procs.
func KillCommand(procs []host.Process) string {
	return "kill " + strings.Join(host.PIDs(procs), " ")
}

// Restart stops the web UI on the named server, if it is running, and
// launches it again. It returns as soon as the launch is issued.
func Restart(ctx context.Context, dialer host.Dialer, registry *host.Registry, name string, finder host.ProcessFinder) (string, error) {
	log := logger.Named(logger.Default(), "webui")

	server, err := registry.Lookup(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(server.LaunchCommand) == "" {
		return "", errors.New(errors.ErrConfig,
			fmt.Sprintf("Server '%s' has no launch_command", name),
			"Set launch_command for this server in webuictl.yaml")
	}

	sess, err := host.Connect(ctx, dialer, server)
	if err != nil {
		return "", err
	}
	defer sess.Close()

	procs, err := finder.Find(ctx, sess, server.ProcessPattern)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("couldn't look up the running service on %s: %s", name, errors.Reason(err))
	case len(procs) == 0:
		log.Info("%s: service not running, nothing to stop", name)
	default:
		res, err := sess.Run(ctx, KillCommand(procs))
		if err != nil {
			return "", err
		}
		if !res.OK() {
			log.Warn("kill on %s exited %d: %s", name, res.ExitStatus, strings.TrimSpace(res.Stderr))
		}
	}

	res, err := sess.Run(ctx, LaunchCommand(server))
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", errors.New(errors.ErrExec,
			fmt.Sprintf("Launch on '%s' exited %d: %s", name, res.ExitStatus, strings.TrimSpace(res.Output())),
			"Check webui_path and launch_command for this server")
	}

	msg := fmt.Sprintf("restarting %s, wait about a minute", name)
	if server.URL != "" {
		msg += "\n" + server.URL
	}
	return msg, nil
}
