package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/webui-fleet/webuictl/internal/download"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/fleet"
	"github.com/webui-fleet/webuictl/internal/ui"
	"github.com/webui-fleet/webuictl/internal/util"
)

// Command-specific flags
var (
	statusParallelFlag int
	statusJSONFlag     bool
	restartYesFlag     bool
	downloadOutputFlag string
	downloadServerFlag string
	downloadTimeout    string
)

// listCmd prints the registry
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered servers",
	Long: `Print every registered server as "name: user@host:port", in the
order they appear in the config file. No connections are made.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManager()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), m.List())
		return nil
	},
}

// statusCmd probes every server
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show web UI status on every server",
	Long: `Connect to every registered server and report whether the web UI is
running, when it last produced an image, and its URL.

A server that can't be reached is reported inline; the remaining servers
are still probed.

Examples:
  webuictl status
  webuictl status --parallel 4
  webuictl status --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCommand(cmd.Context(), cmd.OutOrStdout(), statusParallelFlag, statusJSONFlag)
	},
}

// restartCmd relaunches the web UI on one server
var restartCmd = &cobra.Command{
	Use:   "restart <server>",
	Short: "Restart the web UI on a server",
	Long: `Stop the web UI on the named server and launch it again in the
background. Restart returns as soon as the launch command has been started;
the web UI usually needs about a minute before it answers.

Examples:
  webuictl restart gpu-1
  webuictl restart gpu-1 --yes`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeServerNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return restartCommand(cmd.Context(), cmd.OutOrStdout(), args[0], restartYesFlag)
	},
}

// downloadCmd fetches a model checkpoint through the egress proxy
var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download a model onto a server through the egress proxy",
	Long: `Start a wget download on the target server, routed through the
egress server's proxy, and watch it until it finishes. A finished download
is moved into the web UI's model directory.

The download runs detached on the server. Interrupting webuictl stops the
watching, not the download.

Examples:
  webuictl download https://example.com/model.safetensors
  webuictl download https://example.com/dl?id=42 --output anime.safetensors
  webuictl download https://example.com/model.ckpt --server gpu-2 --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return downloadCommand(cmd.Context(), cmd.ErrOrStderr(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(downloadCmd)

	statusCmd.Flags().IntVarP(&statusParallelFlag, "parallel", "p", 0, "probe up to N servers at once (default from config)")
	statusCmd.Flags().BoolVar(&statusJSONFlag, "json", false, "print reports as JSON")

	restartCmd.Flags().BoolVarP(&restartYesFlag, "yes", "y", false, "skip the confirmation prompt")

	downloadCmd.Flags().StringVarP(&downloadOutputFlag, "output", "o", "", "save the file under this name")
	downloadCmd.Flags().StringVar(&downloadServerFlag, "server", "", "download onto this server (default download.server)")
	downloadCmd.Flags().StringVar(&downloadTimeout, "timeout", "", "stop watching after this long (e.g. 10m, 1h)")
	_ = downloadCmd.RegisterFlagCompletionFunc("server", completeServerNames)
}

func statusCommand(ctx context.Context, w io.Writer, parallel int, asJSON bool) error {
	m, err := loadManager()
	if err != nil {
		if asJSON {
			_ = WriteJSONFromError(w, err)
		}
		return err
	}
	if parallel < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--parallel must be positive, got %d", parallel),
			"Use --parallel 1 to probe servers one at a time.")
	}
	if parallel > 0 {
		m.Config.Status.Parallelism = parallel
	}

	if asJSON {
		return WriteJSONSuccess(w, m.StatusReports(ctx))
	}
	if !isTerminal(w) {
		fmt.Fprintln(w, m.Status(ctx))
		return nil
	}

	reports := m.StatusReports(ctx)
	fmt.Fprintln(w, ui.RenderStatus(reports))
	if len(reports) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.Summary(reports))
	}
	return nil
}

func restartCommand(ctx context.Context, w io.Writer, name string, yes bool) error {
	m, err := loadManager()
	if err != nil {
		return err
	}
	if _, err := m.Registry.Lookup(name); err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.Suggestion = serverHint(name, m.Registry.Names())
		}
		return err
	}

	if !yes && isTerminal(w) && ui.IsTerminal(os.Stdin) {
		ok, err := ui.Confirm(
			fmt.Sprintf("Restart the web UI on %s?", name),
			"Generations in progress will be interrupted.")
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get confirmation",
				"Pass --yes to restart without asking.")
		}
		if !ok {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	msg, err := m.Restart(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, msg)
	return nil
}

func downloadCommand(ctx context.Context, progress, w io.Writer, rawURL string) error {
	if err := ValidateDownloadURL(rawURL); err != nil {
		return err
	}
	timeout, err := ParseTimeout(downloadTimeout)
	if err != nil {
		return err
	}

	m, err := loadManager()
	if err != nil {
		return err
	}
	if timeout > 0 {
		m.Config.Download.Timeout = timeout
	}

	run := func(ctx context.Context, onUpdate func(download.Update)) (string, error) {
		return m.Download(ctx, fleet.DownloadRequest{
			URL:        rawURL,
			OutputName: downloadOutputFlag,
			Server:     downloadServerFlag,
			Progress:   onUpdate,
		})
	}

	out, err := ui.RunDownload(ctx, progress, rawURL, run)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

// serverHint suggests close server names, then lists every configured one.
func serverHint(name string, names []string) string {
	hint := "Configured servers: " + util.JoinOrNone(names)
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		hint = fmt.Sprintf("Did you mean '%s'? %s", similar[0], hint)
	}
	return hint
}

// completeServerNames offers registered server names for shell completion.
func completeServerNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 && cmd.Name() == "restart" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		names = append(names, s.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// isTerminal reports whether w is a terminal-backed file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.IsTerminal(f)
}
