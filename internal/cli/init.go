package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/webui-fleet/webuictl/internal/config"
	"github.com/webui-fleet/webuictl/internal/errors"
	"github.com/webui-fleet/webuictl/internal/ui"
)

var (
	initForce  bool
	initGlobal bool
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Global         bool // Write ~/.config/webuictl/config.yaml instead of ./webuictl.yaml
	Overwrite      bool // Overwrite existing config without asking
	NonInteractive bool // Never prompt
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a commented config file",
	Long: `Write a starter config listing two example servers and every download
setting with its default. Edit the server entries before running other
commands.

Examples:
  webuictl init
  webuictl init --global
  webuictl init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(cmd.OutOrStdout(), InitOptions{
			Global:         initGlobal,
			Overwrite:      initForce,
			NonInteractive: !isTerminal(cmd.OutOrStdout()) || !ui.IsTerminal(os.Stdin),
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write ~/.config/webuictl/config.yaml")
}

// Init writes the config template.
func Init(w io.Writer, opts InitOptions) error {
	path, err := initPath(opts.Global)
	if err != nil {
		return err
	}

	overwrite := opts.Overwrite
	if _, err := os.Stat(path); err == nil && !overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}
		ok, err := ui.Confirm(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path), "")
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !ok {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
		overwrite = true
	}

	if opts.Global {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to create "+filepath.Dir(path),
				"Check directory permissions")
		}
	}
	if err := config.WriteTemplate(path, overwrite); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Wrote %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
	fmt.Fprintln(w, "  Fill in your servers, then run 'webuictl status'.")
	return nil
}

func initPath(global bool) (string, error) {
	if !global {
		return config.ConfigFileName, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine home directory",
			"Set HOME, or run 'webuictl init' without --global")
	}
	return filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile), nil
}
