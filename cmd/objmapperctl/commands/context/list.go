package context

import (
	"fmt"
	"os"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/objmapper/objmapper/internal/cli/credentials"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured contexts",
	Long: `List all configured server contexts.

Shows the context name, transport, and address for each saved context.
The current context is marked with an asterisk (*).

Examples:
  objmapperctl context list
  objmapperctl context list -o json`,
	RunE: runContextList,
}

// ContextInfo represents context information for output.
type ContextInfo struct {
	Name      string `json:"name" yaml:"name"`
	Current   bool   `json:"current" yaml:"current"`
	Transport string `json:"transport" yaml:"transport"`
	Address   string `json:"address" yaml:"address"`
}

// ContextList is a list of contexts for table rendering.
type ContextList []ContextInfo

// Headers implements TableRenderer.
func (cl ContextList) Headers() []string {
	return []string{"", "NAME", "TRANSPORT", "ADDRESS"}
}

// Rows implements TableRenderer.
func (cl ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		current := ""
		if c.Current {
			current = "*"
		}
		rows = append(rows, []string{current, c.Name, c.Transport, c.Address})
	}
	return rows
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	contextNames := store.ListContexts()
	currentContext := store.GetCurrentContextName()

	contexts := make(ContextList, 0, len(contextNames))
	for _, name := range contextNames {
		ctx, err := store.GetContext(name)
		if err != nil {
			continue
		}

		contexts = append(contexts, ContextInfo{
			Name:      name,
			Current:   name == currentContext,
			Transport: cmdutil.EmptyOr(ctx.Transport, "tcp"),
			Address:   address(ctx),
		})
	}

	return cmdutil.PrintOutput(os.Stdout, contexts, len(contexts) == 0,
		"No contexts configured. Use 'objmapperctl context add' to create one.", contexts)
}

func address(ctx *credentials.Context) string {
	if ctx.Transport == "unix" {
		return ctx.SocketPath
	}
	return ctx.ServerURL
}
