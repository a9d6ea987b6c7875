// Package object implements object-level commands for objmapperctl.
package object

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for object operations.
var Cmd = &cobra.Command{
	Use:   "object",
	Short: "Operate on individual objects",
	Long: `Drive operations on individual objects through the admin API.

Object data itself is read and written through the wire protocol, not
this CLI — these commands cover the management-plane operations the
admin API exposes: moving an object between tiers.

Examples:
  objmapperctl object migrate objects/report.csv 1 3`,
}

func init() {
	Cmd.AddCommand(migrateCmd)
}
