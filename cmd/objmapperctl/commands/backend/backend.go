// Package backend implements storage backend management commands for objmapperctl.
package backend

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for backend management.
var Cmd = &cobra.Command{
	Use:   "backend",
	Short: "Manage storage backends",
	Long: `Inspect and operate the storage tiers registered with a running
objmapperd server: list them, register new local tiers, enable or
disable a tier, adjust its cache watermarks, or list the objects
resident on it.

Examples:
  # List all backends
  objmapperctl backend list

  # Register a new local tier
  objmapperctl backend register 4 --type local --mount /mnt/hdd0 --capacity 2000000000000

  # Disable a backend (drains new writes, keeps serving reads)
  objmapperctl backend disable 3

  # List objects resident on a backend
  objmapperctl backend objects 2`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(registerCmd)
	Cmd.AddCommand(enableCmd)
	Cmd.AddCommand(disableCmd)
	Cmd.AddCommand(watermarksCmd)
	Cmd.AddCommand(objectsCmd)
}
