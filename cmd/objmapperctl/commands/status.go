package commands

import (
	"fmt"
	"os"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/objmapper/objmapper/internal/cli/output"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server's backend and cache status",
	Long: `Fetch a snapshot of the running server: how many backends are
registered, how many objects are tracked, and whether the cache
maintenance loop is running.

Examples:
  objmapperctl status
  objmapperctl status -o json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		fmt.Printf("Backends:      %d\n", status.BackendCount)
		fmt.Printf("Objects:       %d\n", status.ObjectCount)
		fmt.Printf("Cache running: %s\n", cmdutil.BoolToYesNo(status.CacheRunning))
	}

	return nil
}
