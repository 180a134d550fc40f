package main

import (
	"fmt"
	"os"

	"mercator-hq/storagerpc/pkg/cli"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "storagerpc",
	Short: "Storage serialization policy tool",
	Long: `storagerpc manages the serialization policies that decide which types a
storage backend may encode and decode.

Policy files live at <base_dir>/<module>/<file_name>.gwt.rpc, one per module.
The first module loaded (or the one marked default) supplies the policy for
namespaces that have none of their own.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and STORAGERPC_* env when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
