package context

import (
	"fmt"

	"github.com/objmapper/objmapper/internal/cli/credentials"
	"github.com/spf13/cobra"
)

var (
	addServer string
	addSocket string
	addUse    bool
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new server context",
	Long: `Register a new server context by name.

Specify either --server for a TCP admin API, or --socket to dial a
Unix domain socket directly. Exactly one must be given.

Examples:
  objmapperctl context add prod --server http://10.0.1.5:8080
  objmapperctl context add local --socket /var/run/objmapperd/admin.sock --use`,
	Args: cobra.ExactArgs(1),
	RunE: runContextAdd,
}

func init() {
	addCmd.Flags().StringVar(&addServer, "server", "", "Admin API base URL (TCP transport)")
	addCmd.Flags().StringVar(&addSocket, "socket", "", "Unix socket path (unix transport)")
	addCmd.Flags().BoolVar(&addUse, "use", false, "Switch to this context immediately")
}

func runContextAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	if (addServer == "") == (addSocket == "") {
		return fmt.Errorf("specify exactly one of --server or --socket")
	}

	ctx := &credentials.Context{}
	if addSocket != "" {
		ctx.Transport = "unix"
		ctx.SocketPath = addSocket
	} else {
		ctx.Transport = "tcp"
		ctx.ServerURL = addServer
	}

	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := store.SetContext(name, ctx); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}

	if addUse || store.GetCurrentContextName() == "" {
		if err := store.UseContext(name); err != nil {
			return fmt.Errorf("failed to switch to new context: %w", err)
		}
	}

	fmt.Printf("Context '%s' added\n", name)
	return nil
}
