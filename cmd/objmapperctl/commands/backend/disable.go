package backend

import (
	"fmt"
	"strconv"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/spf13/cobra"
)

var disableForce bool

var disableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a storage backend",
	Long: `Disable a backend so it stops accepting new writes and migration
targets. Objects already resident on it remain readable.

Examples:
  objmapperctl backend disable 3
  objmapperctl backend disable 3 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runBackendDisable,
}

func init() {
	disableCmd.Flags().BoolVarP(&disableForce, "force", "f", false, "Skip confirmation")
}

func runBackendDisable(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid backend id %q: %w", args[0], err)
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	return cmdutil.RunDangerousWithConfirmation(
		fmt.Sprintf("Disable backend %d? New writes and migrations to it will stop.", id),
		disableForce,
		func() error {
			if err := client.DisableBackend(id); err != nil {
				return fmt.Errorf("failed to disable backend %d: %w", id, err)
			}
			cmdutil.PrintSuccess(fmt.Sprintf("Backend %d disabled", id))
			return nil
		},
	)
}
