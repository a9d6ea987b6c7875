package commands

import (
	"fmt"
	"strconv"

	"github.com/objmapper/objmapper/pkg/apiclient"
	"github.com/spf13/cobra"
)

var migrateAPIAddr string

var migrateCmd = &cobra.Command{
	Use:   "migrate <uri> <backend-id>",
	Short: "Migrate an object to a different storage tier",
	Long: `Drive an online migration of a single object to a different
storage backend through the running server's admin API.

Examples:
  objmapperd migrate objects/report.csv 3
  objmapperd migrate --api-addr http://localhost:9080 objects/report.csv 3`,
	Args: cobra.ExactArgs(2),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateAPIAddr, "api-addr", "http://localhost:8080", "Admin API base URL")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	uri := args[0]
	backendID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid backend id %q: %w", args[1], err)
	}

	client := apiclient.New(migrateAPIAddr)
	if err := client.Migrate(backendID, uri, backendID); err != nil {
		return fmt.Errorf("migrate %s to backend %d: %w", uri, backendID, err)
	}

	fmt.Printf("migrated %s to backend %d\n", uri, backendID)
	return nil
}
