package object

import (
	"fmt"
	"strconv"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/spf13/cobra"
)

var migrateForce bool

var migrateCmd = &cobra.Command{
	Use:   "migrate <uri> <from-backend-id> <to-backend-id>",
	Short: "Migrate an object to a different storage tier",
	Long: `Drive an online migration of a single object from one storage
backend to another.

Examples:
  objmapperctl object migrate objects/report.csv 1 3`,
	Args: cobra.ExactArgs(3),
	RunE: runObjectMigrate,
}

func init() {
	migrateCmd.Flags().BoolVarP(&migrateForce, "force", "f", false, "Skip confirmation")
}

func runObjectMigrate(cmd *cobra.Command, args []string) error {
	uri := args[0]
	fromID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid source backend id %q: %w", args[1], err)
	}
	toID, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid destination backend id %q: %w", args[2], err)
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	return cmdutil.RunDangerousWithConfirmation(
		fmt.Sprintf("Migrate %s from backend %d to backend %d?", uri, fromID, toID),
		migrateForce,
		func() error {
			if err := client.Migrate(fromID, uri, toID); err != nil {
				return fmt.Errorf("failed to migrate %s: %w", uri, err)
			}
			cmdutil.PrintSuccess(fmt.Sprintf("Migrated %s to backend %d", uri, toID))
			return nil
		},
	)
}
