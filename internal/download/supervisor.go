package download

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/host"
	"github.com/webui-fleet/webuictl/internal/logger"
)

// Phase is a state of the download state machine.
type Phase int

const (
	Idle Phase = iota
	CheckingExisting
	Rejected
	Starting
	Polling
	Succeeded
	Failed
	TimedOut
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case CheckingExisting:
		return "checking-existing"
	case Rejected:
		return "rejected"
	case Starting:
		return "starting"
	case Polling:
		return "polling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed-out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	switch p {
	case Rejected, Succeeded, Failed, TimedOut, Cancelled:
		return true
	}
	return false
}

// Job is one supervised download.
type Job struct {
	URL        string
	OutputName string
	StartedAt  time.Time
	Elapsed    time.Duration
	Phase      Phase
}

// Update is sent to the progress sink after every state change and poll.
type Update struct {
	Server  string
	Phase   Phase
	Tick    int
	Elapsed time.Duration
	Timeout time.Duration
	Excerpt string
}

// Result is the outcome of a finished supervisor.
type Result struct {
	Server     string
	Phase      Phase
	Excerpt    string
	SavedPath  string
	ModelDir   string
	MoveOutput string
	Message    string
	Elapsed    time.Duration
}

// String renders the result for the user.
func (r Result) String() string {
	var b strings.Builder
	switch r.Phase {
	case Rejected:
		fmt.Fprintf(&b, "a download is already running on %s", r.Server)
	case Succeeded:
		fmt.Fprintf(&b, "download finished on %s, moved %s to %s", r.Server, path.Base(r.SavedPath), r.ModelDir)
	case Failed:
		fmt.Fprintf(&b, "download failed on %s", r.Server)
	case TimedOut:
		fmt.Fprintf(&b, "download still running on %s after %s, check again later", r.Server, r.Elapsed)
	case Cancelled:
		fmt.Fprintf(&b, "stopped watching the download on %s; it keeps running remotely", r.Server)
	default:
		fmt.Fprintf(&b, "download on %s is %s", r.Server, r.Phase)
	}
	if r.Message != "" {
		b.WriteString(": " + r.Message)
	}
	if r.Excerpt != "" {
		b.WriteString("\n" + strings.TrimRight(r.Excerpt, "\n"))
	}
	if out := strings.TrimSpace(r.MoveOutput); out != "" {
		b.WriteString("\n" + out)
	}
	return b.String()
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithProgress sets the sink that receives updates.
func WithProgress(fn func(Update)) Option {
	return func(s *Supervisor) { s.progress = fn }
}

// WithLogger sets the supervisor's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// WithClock overrides time.Now for StartedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// Supervisor drives one download through its phases. Begin must be called
// once; Tick is then called after every poll interval until the phase is
// terminal. Elapsed time is counted in whole poll intervals so the timeout
// is reached after Timeout/PollInterval polls regardless of wall time.
type Supervisor struct {
	runner   host.Runner
	finder   host.ProcessFinder
	server   string
	settings Settings
	job      Job
	ticks    int
	result   Result
	progress func(Update)
	log      logger.Logger
	now      func() time.Time
}

// NewSupervisor creates a supervisor in the Idle phase.
func NewSupervisor(runner host.Runner, finder host.ProcessFinder, server string, settings Settings, rawURL, outputName string, opts ...Option) *Supervisor {
	s := &Supervisor{
		runner:   runner,
		finder:   finder,
		server:   server,
		settings: settings,
		job:      Job{URL: rawURL, OutputName: outputName, Phase: Idle},
		progress: func(Update) {},
		log:      logger.Noop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Job returns a snapshot of the job.
func (s *Supervisor) Job() Job {
	return s.job
}

// Phase returns the current phase.
func (s *Supervisor) Phase() Phase {
	return s.job.Phase
}

// Interval is the wait between polls.
func (s *Supervisor) Interval() time.Duration {
	return s.settings.PollInterval
}

// Result returns the outcome. It is only meaningful in a terminal phase.
func (s *Supervisor) Result() Result {
	r := s.result
	r.Server = s.server
	r.Phase = s.job.Phase
	r.Elapsed = s.job.Elapsed
	return r
}

func (s *Supervisor) transition(p Phase) {
	s.log.Debug("download on %s: %s -> %s", s.server, s.job.Phase, p)
	s.job.Phase = p
	s.emit()
}

func (s *Supervisor) emit() {
	s.progress(Update{
		Server:  s.server,
		Phase:   s.job.Phase,
		Tick:    s.ticks,
		Elapsed: s.job.Elapsed,
		Timeout: s.settings.Timeout,
		Excerpt: s.result.Excerpt,
	})
}

// Begin checks for a live download and, if there is none, starts one.
func (s *Supervisor) Begin(ctx context.Context) (Phase, error) {
	if s.job.Phase != Idle {
		return s.job.Phase, nil
	}

	s.transition(CheckingExisting)
	running, err := s.findRunning(ctx)
	if err != nil {
		return s.job.Phase, err
	}
	if len(running) > 0 {
		s.result.Message = fmt.Sprintf("pid %s, wait for it to finish", strings.Join(host.PIDs(running), ", "))
		s.transition(Rejected)
		return s.job.Phase, nil
	}

	s.transition(Starting)
	res, err := s.runner.Run(ctx, StartCommand(s.settings, s.job.URL, s.job.OutputName))
	if err != nil {
		return s.job.Phase, err
	}
	if !res.OK() {
		s.result.Message = fmt.Sprintf("could not start wget (exit %d)", res.ExitStatus)
		s.result.Excerpt = strings.TrimSpace(res.Output())
		s.transition(Failed)
		return s.job.Phase, nil
	}

	s.job.StartedAt = s.now()
	s.log.Info("download started on %s: %s", s.server, s.job.URL)
	s.transition(Polling)
	return s.job.Phase, nil
}

// Tick performs one poll. It is a no-op outside the Polling phase.
func (s *Supervisor) Tick(ctx context.Context) (Phase, error) {
	if s.job.Phase != Polling {
		return s.job.Phase, nil
	}

	running, err := s.findRunning(ctx)
	if err != nil {
		return s.job.Phase, err
	}
	s.ticks++

	excerpt, err := s.readWindow(ctx)
	if err != nil {
		return s.job.Phase, err
	}
	s.result.Excerpt = excerpt

	if len(running) > 0 {
		s.job.Elapsed += s.settings.PollInterval
		if s.job.Elapsed >= s.settings.Timeout {
			s.transition(TimedOut)
			return s.job.Phase, nil
		}
		s.emit()
		return s.job.Phase, nil
	}

	return s.finish(ctx, excerpt)
}

func (s *Supervisor) finish(ctx context.Context, excerpt string) (Phase, error) {
	if !HasSuccessMarker(excerpt) {
		s.result.Message = "wget exited without saving the file"
		s.transition(Failed)
		return s.job.Phase, nil
	}

	saved, ok := SavedPath(excerpt, s.settings.Dir)
	if !ok {
		s.result.Message = "wget reports a saved file but the log does not say where"
		s.transition(Failed)
		return s.job.Phase, nil
	}
	s.result.SavedPath = saved
	s.result.ModelDir = s.settings.ModelDir

	res, err := s.runner.Run(ctx, MoveCommand(saved, s.settings.ModelDir))
	if err != nil {
		return s.job.Phase, err
	}
	s.result.MoveOutput = res.Output()
	if !res.OK() {
		s.result.Message = fmt.Sprintf("downloaded to %s but moving it failed (exit %d)", saved, res.ExitStatus)
		s.transition(Failed)
		return s.job.Phase, nil
	}

	s.log.Info("download on %s finished: %s", s.server, saved)
	s.transition(Succeeded)
	return s.job.Phase, nil
}

// cancel stops supervision. The remote wget is left running.
func (s *Supervisor) cancel() {
	if s.job.Phase.Terminal() {
		return
	}
	s.transition(Cancelled)
}

// findRunning returns wget processes writing to our log file.
func (s *Supervisor) findRunning(ctx context.Context) ([]host.Process, error) {
	procs, err := s.finder.Find(ctx, s.runner, s.settings.LogPath())
	if err != nil {
		return nil, err
	}
	var out []host.Process
	for _, p := range procs {
		if isWget(p.Args) {
			out = append(out, p)
		}
	}
	return out, nil
}

func isWget(args string) bool {
	fields := strings.Fields(args)
	return len(fields) > 0 && path.Base(fields[0]) == "wget"
}

// readWindow returns the head and tail of the log. A missing or unreadable
// log yields an empty excerpt.
func (s *Supervisor) readWindow(ctx context.Context) (string, error) {
	res, err := s.runner.Run(ctx, LineCountCommand(s.settings))
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", nil
	}
	total, err := ParseLineCount(res.Stdout)
	if err != nil {
		s.log.Warn("unexpected wc output on %s: %q", s.server, res.Stdout)
		return "", nil
	}

	res, err = s.runner.Run(ctx, WindowCommand(s.settings, total, s.settings.LogLines))
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep waits on a timer and returns ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Instant returns immediately unless ctx is already done.
func Instant(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Run drives sup from Idle to a terminal phase, calling wait between polls.
// Cancelling ctx yields a Cancelled result rather than an error. Transport
// failures are returned as errors.
func Run(ctx context.Context, sup *Supervisor, wait WaitFunc) (Result, error) {
	phase, err := sup.Begin(ctx)
	for err == nil && !phase.Terminal() {
		if err = wait(ctx, sup.Interval()); err != nil {
			break
		}
		phase, err = sup.Tick(ctx)
	}

	if err != nil {
		if ctx.Err() != nil {
			sup.cancel()
			return sup.Result(), nil
		}
		if !errors.IsCode(err, errors.ErrConnection) && !errors.IsCode(err, errors.ErrConfig) && !errors.IsCode(err, errors.ErrExec) {
			err = errors.WrapWithCode(err, errors.ErrConnection,
				fmt.Sprintf("Download supervision on '%s' failed", sup.server),
				"The download may still be running; check the log on the server")
		}
		return sup.Result(), err
	}
	return sup.Result(), nil
}
