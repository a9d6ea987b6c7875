package backend

import (
	"fmt"
	"strconv"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/spf13/cobra"
)

var watermarksCmd = &cobra.Command{
	Use:   "watermarks <id> <low> <high>",
	Short: "Set a backend's cache watermarks",
	Long: `Update the low and high watermarks (as a fraction of capacity,
0.0-1.0) that drive when the cache maintenance loop starts and stops
evicting objects from this backend.

Examples:
  objmapperctl backend watermarks 2 0.7 0.9`,
	Args: cobra.ExactArgs(3),
	RunE: runBackendWatermarks,
}

func runBackendWatermarks(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid backend id %q: %w", args[0], err)
	}
	low, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid low watermark %q: %w", args[1], err)
	}
	high, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid high watermark %q: %w", args[2], err)
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	if err := client.SetWatermarks(id, low, high); err != nil {
		return fmt.Errorf("failed to set watermarks on backend %d: %w", id, err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Backend %d watermarks set to low=%.2f high=%.2f", id, low, high))
	return nil
}
