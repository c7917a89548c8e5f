package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/webui-fleet/webuictl/internal/download"
)

// SpinnerFrames are the animation frames (◐ ◓ ◑ ◒) of the progress view.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

// excerptTail is how many log lines the live view shows under the spinner.
const excerptTail = 4

// DownloadFunc runs a download, reporting progress through the callback.
type DownloadFunc func(ctx context.Context, progress func(download.Update)) (string, error)

type progressMsg download.Update

type doneMsg struct {
	out string
	err error
}

// DownloadModel is the Bubble Tea model of the download progress view.
type DownloadModel struct {
	spinner  spinner.Model
	url      string
	last     download.Update
	cancel   context.CancelFunc
	stopping bool
	done     bool
	out      string
	err      error
}

// NewDownloadModel creates the view. cancel is called when the user
// presses ctrl+c or q.
func NewDownloadModel(url string, cancel context.CancelFunc) DownloadModel {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = fg(ColorSecondary)
	return DownloadModel{spinner: sp, url: url, cancel: cancel}
}

func (m DownloadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m DownloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.last = download.Update(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.out, m.err = msg.out, msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m DownloadModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.spinner.View() + " " + StatusLine(m.last))
	if m.stopping {
		b.WriteString(MutedStyle().Render("  (stopping, the remote download keeps running)"))
	}
	b.WriteString("\n")
	if m.url != "" {
		b.WriteString(MutedStyle().Render("  "+m.url) + "\n")
	}
	for _, line := range tailLines(m.last.Excerpt, excerptTail) {
		b.WriteString(MutedStyle().Render("  "+line) + "\n")
	}
	return b.String()
}

// StatusLine describes an update in one line.
func StatusLine(u download.Update) string {
	server := u.Server
	if server == "" {
		server = "server"
	}
	switch u.Phase {
	case download.CheckingExisting:
		return fmt.Sprintf("%s: checking for a running download", server)
	case download.Starting:
		return fmt.Sprintf("%s: starting wget", server)
	case download.Polling:
		return fmt.Sprintf("%s: downloading (%s / %s)", server, u.Elapsed, u.Timeout)
	case download.Idle:
		return fmt.Sprintf("%s: connecting", server)
	default:
		return fmt.Sprintf("%s: %s", server, u.Phase)
	}
}

func tailLines(s string, n int) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// RunDownload runs fn behind the progress view when stdout is a terminal.
// Otherwise each update is written to w as a plain line.
func RunDownload(ctx context.Context, w io.Writer, url string, fn DownloadFunc) (string, error) {
	if !IsTerminal(os.Stdout) {
		return fn(ctx, PlainProgress(w))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewDownloadModel(url, cancel), tea.WithOutput(w))

	results := make(chan doneMsg, 1)
	go func() {
		out, err := fn(ctx, func(u download.Update) { program.Send(progressMsg(u)) })
		results <- doneMsg{out: out, err: err}
		program.Send(doneMsg{out: out, err: err})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
	}
	r := <-results
	return r.out, r.err
}

// PlainProgress prints phase changes and polls, one line each. When the log
// excerpt changes, its last lines follow indented.
func PlainProgress(w io.Writer) func(download.Update) {
	var lastExcerpt string
	return func(u download.Update) {
		fmt.Fprintln(w, StatusLine(u))
		if u.Excerpt == lastExcerpt {
			return
		}
		lastExcerpt = u.Excerpt
		for _, line := range tailLines(u.Excerpt, excerptTail) {
			fmt.Fprintln(w, "  "+line)
		}
	}
}
