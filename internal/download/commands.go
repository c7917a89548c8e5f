package download

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/webui-fleet/webuictl/internal/util"
)

// SuccessMarker is what wget writes once the file is fully saved.
const SuccessMarker = " saved ["

// proxyVars are exported for the wget process. wget reads the lower-case
// ones; the upper-case pair covers other tools.
var proxyVars = []string{"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY"}

// StartCommand launches wget detached from the SSH session. The log of an
// earlier run is removed first so polls never read a stale log. Only the
// nohup is backgrounded, so a failed mkdir or cd shows in the exit status.
func StartCommand(s Settings, rawURL, outputName string) string {
	dir := util.ShellQuote(s.Dir)

	var b strings.Builder
	fmt.Fprintf(&b, "mkdir -p %s && cd %s && rm -f %s && ", dir, dir, util.ShellQuote(s.LogPath()))
	if s.ProxyURL != "" {
		proxy := util.ShellQuote(s.ProxyURL)
		exports := make([]string, len(proxyVars))
		for i, v := range proxyVars {
			exports[i] = v + "=" + proxy
		}
		fmt.Fprintf(&b, "export %s && ", strings.Join(exports, " "))
	}
	fmt.Fprintf(&b, "{ nohup wget -t %d -T %d", s.Retries, int(s.AttemptTimeout.Seconds()))
	if outputName != "" {
		fmt.Fprintf(&b, " -O %s", util.ShellQuote(outputName))
	}
	fmt.Fprintf(&b, " -o %s %s > /dev/null 2>&1 < /dev/null & }", util.ShellQuote(s.LogPath()), util.ShellQuote(rawURL))
	return b.String()
}

// LineCountCommand prints the number of lines in the log.
func LineCountCommand(s Settings) string {
	return "wc -l < " + util.ShellQuote(s.LogPath())
}

// WindowCommand reads the whole log when it has at most 2n lines, otherwise
// the first and last n lines separated by a "..." line.
func WindowCommand(s Settings, total, n int) string {
	log := util.ShellQuote(s.LogPath())
	if total <= 2*n {
		return "cat " + log
	}
	return fmt.Sprintf("head -n %d %s && echo '...' && tail -n %d %s", n, log, n, log)
}

// MoveCommand moves the downloaded file into the model directory.
func MoveCommand(src, modelDir string) string {
	dst := util.ShellQuotePreserveTilde(modelDir)
	return fmt.Sprintf("mkdir -p %s && mv -f -- %s %s/", dst, util.ShellQuote(src), dst)
}

// ParseLineCount parses wc -l output.
func ParseLineCount(out string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(out))
}

// HasSuccessMarker reports whether the log excerpt shows a completed save.
func HasSuccessMarker(excerpt string) bool {
	return strings.Contains(excerpt, SuccessMarker)
}

// savingTo matches wget's "Saving to: 'file'" line. Depending on locale
// wget uses ASCII quotes, curly quotes or double quotes.
var savingTo = regexp.MustCompile("Saving to: ['‘“\"`]([^'’”\"`\n]+)['’”\"`]")

// SavedPath extracts the file wget saved to. When wget retried and logged
// several destinations, the last one wins. Relative paths are resolved
// against dir.
func SavedPath(excerpt, dir string) (string, bool) {
	matches := savingTo.FindAllStringSubmatch(excerpt, -1)
	if len(matches) == 0 {
		return "", false
	}
	p := strings.TrimSpace(matches[len(matches)-1][1])
	if p == "" {
		return "", false
	}
	if !path.IsAbs(p) {
		p = path.Join(dir, p)
	}
	return p, true
}
