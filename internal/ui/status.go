package ui

import (
	"fmt"
	"strings"

	"github.com/webui-fleet/webuictl/internal/util"
	"github.com/webui-fleet/webuictl/internal/webui"
)

// RenderStatus renders status reports as styled blocks in the given order.
func RenderStatus(reports []webui.StatusReport) string {
	if len(reports) == 0 {
		return MutedStyle().Render(webui.EmptyRegistry)
	}
	blocks := make([]string, len(reports))
	for i, r := range reports {
		blocks[i] = renderReport(r)
	}
	return strings.Join(blocks, "\n\n")
}

func renderReport(r webui.StatusReport) string {
	lines := []string{HeaderStyle().Render(webui.Border(r.ServerName))}
	if r.Failed() {
		lines = append(lines, ErrorStyle().Render(SymbolFail+" "+r.Error))
		return strings.Join(lines, "\n")
	}

	lines = append(lines,
		statusSymbol(r)+" "+r.RunStatus,
		MutedStyle().Render("last used: ")+r.LastUsed,
	)
	if r.URL != "" {
		lines = append(lines, MutedStyle().Render("url: ")+r.URL)
	}
	return strings.Join(lines, "\n")
}

func statusSymbol(r webui.StatusReport) string {
	switch {
	case r.Running:
		return SuccessStyle().Render(SymbolSuccess)
	case r.RunStatus == webui.NotRunning:
		return WarningStyle().Render(SymbolPending)
	default:
		return WarningStyle().Render(SymbolWarning)
	}
}

// Summary returns e.g. "2 of 3 servers running".
func Summary(reports []webui.StatusReport) string {
	running := 0
	for _, r := range reports {
		if r.Running {
			running++
		}
	}
	return MutedStyle().Render(fmt.Sprintf("%d of %d %s running",
		running, len(reports), util.Pluralize(len(reports), "server", "servers")))
}
