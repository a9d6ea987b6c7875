// Package context implements context management commands for objmapperctl.
package context

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for context management.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage server contexts",
	Long: `Manage the set of servers objmapperctl knows how to reach.

A context records how to dial one objmapperd instance: either a base
URL for the admin API over TCP, or a socket path to dial directly.
There is no login step since the admin API trusts callers by
connection rather than credential.

Examples:
  # Add a context for a TCP admin API
  objmapperctl context add prod --server http://10.0.1.5:8080

  # Add a context that dials a unix socket
  objmapperctl context add local --socket /var/run/objmapperd/admin.sock

  # Switch to a context
  objmapperctl context use prod

  # List configured contexts
  objmapperctl context list`,
}

func init() {
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(useCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(renameCmd)
}
