package backend

import (
	"fmt"
	"os"
	"strconv"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/spf13/cobra"
)

var objectsCmd = &cobra.Command{
	Use:   "objects <id>",
	Short: "List objects resident on a backend",
	Long: `List every object currently resident on the given backend, with
its size and hotness score.

Examples:
  objmapperctl backend objects 2`,
	Args: cobra.ExactArgs(1),
	RunE: runBackendObjects,
}

// ObjectList renders []apiclient.ObjectView as a table.
type ObjectList []ObjectRow

// ObjectRow is a display-friendly view of an object.
type ObjectRow struct {
	URI     string  `json:"uri" yaml:"uri"`
	Size    uint64  `json:"size" yaml:"size"`
	Hotness float64 `json:"hotness" yaml:"hotness"`
}

// Headers implements output.TableRenderer.
func (ol ObjectList) Headers() []string {
	return []string{"URI", "SIZE", "HOTNESS"}
}

// Rows implements output.TableRenderer.
func (ol ObjectList) Rows() [][]string {
	rows := make([][]string, 0, len(ol))
	for _, o := range ol {
		rows = append(rows, []string{
			o.URI,
			strconv.FormatUint(o.Size, 10),
			strconv.FormatFloat(o.Hotness, 'f', 3, 64),
		})
	}
	return rows
}

func runBackendObjects(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid backend id %q: %w", args[0], err)
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	objects, err := client.ListObjects(id)
	if err != nil {
		return fmt.Errorf("failed to list objects on backend %d: %w", id, err)
	}

	rows := make(ObjectList, 0, len(objects))
	for _, o := range objects {
		rows = append(rows, ObjectRow{URI: o.URI, Size: o.Size, Hotness: o.Hotness})
	}

	return cmdutil.PrintOutput(os.Stdout, rows, len(rows) == 0, "No objects resident on this backend.", rows)
}
