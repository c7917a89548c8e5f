package host

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/webui-fleet/webuictl/internal/errors"
)

// PSCommand lists every process with its pid, elapsed time and full command line.
const PSCommand = "ps -eo pid=,etime=,args="

// Process is one row of ps output.
type Process struct {
	PID     int
	Elapsed string
	Args    string
}

// ParsePS parses PSCommand output. Blank and malformed rows are skipped.
func ParsePS(out string) []Process {
	var procs []Process
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid <= 0 {
			continue
		}
		procs = append(procs, Process{
			PID:     pid,
			Elapsed: fields[1],
			Args:    strings.Join(fields[2:], " "),
		})
	}
	return procs
}

// Match returns the processes whose command line contains fingerprint.
// The ps invocation itself is never matched.
func Match(procs []Process, fingerprint string) []Process {
	var out []Process
	for _, p := range procs {
		if strings.HasPrefix(p.Args, "ps -eo ") {
			continue
		}
		if strings.Contains(p.Args, fingerprint) {
			out = append(out, p)
		}
	}
	return out
}

// PIDs returns the pids of procs as strings.
func PIDs(procs []Process) []string {
	pids := make([]string, len(procs))
	for i, p := range procs {
		pids[i] = strconv.Itoa(p.PID)
	}
	return pids
}

// ProcessFinder finds live processes on a server by a command-line fingerprint.
type ProcessFinder interface {
	Find(ctx context.Context, r Runner, fingerprint string) ([]Process, error)
}

// PSFinder finds processes by running ps and filtering locally, so the
// search never matches its own shell.
type PSFinder struct{}

// Find implements ProcessFinder.
func (PSFinder) Find(ctx context.Context, r Runner, fingerprint string) ([]Process, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, errors.New(errors.ErrConfig,
			"Empty process fingerprint",
			"Set process_pattern for the server")
	}

	res, err := r.Run(ctx, PSCommand)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, errors.New(errors.ErrExec,
			fmt.Sprintf("ps exited with status %d: %s", res.ExitStatus, strings.TrimSpace(res.Stderr)),
			"The server needs a procps-compatible ps")
	}
	return Match(ParsePS(res.Stdout), fingerprint), nil
}
