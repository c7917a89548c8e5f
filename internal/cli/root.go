package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/fleet"
	"github.com/webui-fleet/webuictl/internal/logger"
	"github.com/webui-fleet/webuictl/internal/ui"
)

// Global flags
var (
	cfgFile string
	verbose bool
	noColor bool
)

// newManager builds the fleet manager for a loaded config. Tests swap it
// for one backed by a fake dialer.
var newManager = func(cfg *config.Config, log logger.Logger) *fleet.Manager {
	return fleet.NewManager(cfg, log)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webuictl",
	Short: "Manage a fleet of GPU servers running a Stable Diffusion web UI",
	Long: `webuictl drives a registry of rented GPU servers over SSH.

It reports whether the web UI is running on each server, restarts it,
and downloads model checkpoints through an egress proxy server.

Servers are read from webuictl.yaml in the current directory or
~/.config/webuictl/config.yaml. Run 'webuictl init' to create one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColors()
		} else {
			ui.ColorsFromEnv()
		}
		logger.SetDefault(logger.New(os.Stderr, "webuictl", verbose))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default webuictl.yaml or ~/.config/webuictl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log SSH commands and timings to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command. Errors are printed to stderr and the
// process exits with status 1. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError renders an error for the terminal. Unknown commands get a
// pointer to --help.
func formatError(err error) string {
	if isUnknownCommandError(err) {
		return ui.ErrorStyle().Render(ui.SymbolFail+" "+err.Error()) +
			"\n\n  Run 'webuictl --help' to see the available commands."
	}
	if e, ok := err.(*errors.Error); ok {
		return strings.TrimRight(e.Error(), "\n")
	}
	return ui.ErrorStyle().Render(ui.SymbolFail + " " + err.Error())
}

func isUnknownCommandError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "unknown command ")
}

// loadConfig finds, loads and validates the config, logging any warnings.
func loadConfig() (*config.Config, error) {
	path, err := config.Find(cfgFile)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New(errors.ErrConfig,
			"No config file found",
			"Run 'webuictl init' to create webuictl.yaml, or pass --config.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	for _, w := range config.Warnings(cfg) {
		logger.Default().Warn("%s", w)
	}
	logger.Default().Debug("loaded %d servers from %s", len(cfg.Servers), path)
	return cfg, nil
}

// loadManager loads the config and builds a manager from it.
func loadManager() (*fleet.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newManager(cfg, logger.Default()), nil
}
