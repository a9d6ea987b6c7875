package backend

import (
	"fmt"
	"strconv"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/spf13/cobra"
)

var (
	registerType     string
	registerMount    string
	registerCapacity uint64
	registerPerf     float64
	registerLow      float64
	registerHigh     float64
)

var registerCmd = &cobra.Command{
	Use:   "register <id>",
	Short: "Register a new local storage tier",
	Long: `Register a new local, mount-path-backed storage tier with the
server. Network tiers (S3-compatible backends) are configured through
the server's own configuration file, not at runtime.

Examples:
  objmapperctl backend register 4 --type local --mount /mnt/hdd0 --capacity 2000000000000 --perf 0.2`,
	Args: cobra.ExactArgs(1),
	RunE: runBackendRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerType, "type", "local", "Backend type (local)")
	registerCmd.Flags().StringVar(&registerMount, "mount", "", "Mount path for the backend (required)")
	registerCmd.Flags().Uint64Var(&registerCapacity, "capacity", 0, "Capacity in bytes (required)")
	registerCmd.Flags().Float64Var(&registerPerf, "perf", 1.0, "Relative performance factor")
	registerCmd.Flags().Float64Var(&registerLow, "low", 0.7, "Low watermark (fraction of capacity)")
	registerCmd.Flags().Float64Var(&registerHigh, "high", 0.9, "High watermark (fraction of capacity)")
}

func runBackendRegister(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid backend id %q: %w", args[0], err)
	}

	if registerMount == "" {
		return fmt.Errorf("--mount is required")
	}
	if registerCapacity == 0 {
		return fmt.Errorf("--capacity is required")
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	view, err := client.RegisterBackend(id, registerType, registerMount, registerCapacity, registerPerf, registerLow, registerHigh)
	if err != nil {
		return fmt.Errorf("failed to register backend: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Backend %d registered (%s at %s)", view.ID, view.Type, view.MountPath))
	return nil
}
