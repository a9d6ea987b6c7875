package backend

import (
	"fmt"
	"strconv"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a storage backend",
	Long: `Re-enable a previously disabled backend, allowing it to accept
new writes and migrations again.

Examples:
  objmapperctl backend enable 3`,
	Args: cobra.ExactArgs(1),
	RunE: runBackendEnable,
}

func runBackendEnable(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid backend id %q: %w", args[0], err)
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	if err := client.EnableBackend(id); err != nil {
		return fmt.Errorf("failed to enable backend %d: %w", id, err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Backend %d enabled", id))
	return nil
}
