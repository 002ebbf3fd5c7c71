package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	// API connection for client commands
	APIUrl     string
	APITimeout time.Duration
	Token      string
}

// buildRoot creates the root command and its subcommands.
func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}
	root := createRootCommand(flags)
	root.AddCommand(
		createServeCommand(flags),
		createDetectCommand(),
		createResolveCommand(),
		createStartCommand(flags),
		createStopCommand(flags),
		createPortCommand(flags),
		createInputCommand(flags),
		createListCommand(flags),
		createStatsCommand(flags),
		createAttachCommand(flags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "devsup",
		Short: "Dev server supervisor",
		Long: `devsup runs project dev servers in pseudo-terminals, streams their
output and detects the port they listen on.

Examples:
  devsup serve                          # start the daemon
  devsup detect ./web                   # show the project's framework
  devsup start --key 1 --cwd "$PWD/web" # start the dev server for project 1
  devsup attach --key 1                 # follow its terminal output`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to config file (toml, yaml or json)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (default from config, e.g. http://127.0.0.1:7788/api)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	root.PersistentFlags().StringVar(&flags.Token, "token", "", "bearer token (default from config)")
	return root
}
