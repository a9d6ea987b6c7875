// Package commands implements the CLI commands for objmapperctl.
package commands

import (
	"os"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/objmapper/objmapper/cmd/objmapperctl/commands/backend"
	"github.com/objmapper/objmapper/cmd/objmapperctl/commands/context"
	"github.com/objmapper/objmapper/cmd/objmapperctl/commands/object"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "objmapperctl",
	Short: "objmapperctl - admin CLI for objmapperd",
	Long: `objmapperctl talks to a running objmapperd server's admin API to
inspect and operate its storage backends: list backend tiers, move
objects between them, and adjust the watermarks that drive automatic
migration.

The admin API trusts clients by connection (socket or loopback peer),
so objmapperctl has no login step — configure a context pointing at
the server and start issuing commands.

Use "objmapperctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.ServerURL, "server", "", "admin API base URL (overrides the current context)")
	rootCmd.PersistentFlags().StringVarP(&cmdutil.Flags.Output, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&cmdutil.Flags.NoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&cmdutil.Flags.Verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(context.Cmd)
	rootCmd.AddCommand(backend.Cmd)
	rootCmd.AddCommand(object.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
