package webui

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

var dateDirName = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// LatestDateDir picks the newest YYYY-MM-DD directory from find output.
// Lines whose basename is not a date are ignored. Returns "" when none match.
func LatestDateDir(out string) string {
	var dirs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !dateDirName.MatchString(path.Base(line)) {
			continue
		}
		dirs = append(dirs, line)
	}
	if len(dirs) == 0 {
		return ""
	}
	sort.Slice(dirs, func(i, j int) bool {
		bi, bj := path.Base(dirs[i]), path.Base(dirs[j])
		if bi != bj {
			return bi > bj
		}
		return dirs[i] > dirs[j]
	})
	return dirs[0]
}

// timestampWidth keeps "YYYY-MM-DD HH:MM" from stat's %y output.
const timestampWidth = 16

// ParseLastUsed turns one line of `stat -c '%y|%n'` output into
// "YYYY-MM-DD HH:MM <basename>". Returns false when there is nothing to parse.
func ParseLastUsed(out string) (string, bool) {
	var line string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return "", false
	}

	ts, name, ok := strings.Cut(line, "|")
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	ts = strings.TrimSpace(ts)
	if len(ts) > timestampWidth {
		ts = ts[:timestampWidth]
	}
	return ts + " " + path.Base(strings.TrimSpace(name)), true
}
