package backend

import (
	"fmt"
	"os"
	"strconv"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered storage backends",
	Long: `List every storage backend registered with the server, its
capacity, usage, performance factor, watermarks, and enabled state.

Examples:
  objmapperctl backend list
  objmapperctl backend list -o json`,
	RunE: runBackendList,
}

// BackendList renders []apiclient.BackendView as a table.
type BackendList []BackendRow

// BackendRow is a flattened, display-friendly view of a backend.
type BackendRow struct {
	ID         int     `json:"id" yaml:"id"`
	Type       string  `json:"type" yaml:"type"`
	MountPath  string  `json:"mount_path" yaml:"mount_path"`
	Capacity   uint64  `json:"capacity" yaml:"capacity"`
	UsedBytes  uint64  `json:"used_bytes" yaml:"used_bytes"`
	PerfFactor float64 `json:"perf_factor" yaml:"perf_factor"`
	LowMark    float64 `json:"low_watermark" yaml:"low_watermark"`
	HighMark   float64 `json:"high_watermark" yaml:"high_watermark"`
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	ReadOnly   bool    `json:"read_only" yaml:"read_only"`
}

// Headers implements output.TableRenderer.
func (bl BackendList) Headers() []string {
	return []string{"ID", "TYPE", "MOUNT", "CAPACITY", "USED", "PERF", "LOW", "HIGH", "ENABLED", "RO"}
}

// Rows implements output.TableRenderer.
func (bl BackendList) Rows() [][]string {
	rows := make([][]string, 0, len(bl))
	for _, b := range bl {
		rows = append(rows, []string{
			strconv.Itoa(b.ID),
			b.Type,
			b.MountPath,
			strconv.FormatUint(b.Capacity, 10),
			strconv.FormatUint(b.UsedBytes, 10),
			strconv.FormatFloat(b.PerfFactor, 'f', 2, 64),
			strconv.FormatFloat(b.LowMark, 'f', 2, 64),
			strconv.FormatFloat(b.HighMark, 'f', 2, 64),
			cmdutil.BoolToYesNo(b.Enabled),
			cmdutil.BoolToYesNo(b.ReadOnly),
		})
	}
	return rows
}

func runBackendList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	backends, err := client.ListBackends()
	if err != nil {
		return fmt.Errorf("failed to list backends: %w", err)
	}

	rows := make(BackendList, 0, len(backends))
	for _, b := range backends {
		rows = append(rows, BackendRow{
			ID:         b.ID,
			Type:       b.Type,
			MountPath:  b.MountPath,
			Capacity:   b.Capacity,
			UsedBytes:  b.UsedBytes,
			PerfFactor: b.PerfFactor,
			LowMark:    b.LowMark,
			HighMark:   b.HighMark,
			Enabled:    b.Enabled,
			ReadOnly:   b.ReadOnly,
		})
	}

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0, "No backends registered.", rows)
}
