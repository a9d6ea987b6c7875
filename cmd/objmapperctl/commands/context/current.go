package context

import (
	"fmt"
	"os"

	"github.com/objmapper/objmapper/cmd/objmapperctl/cmdutil"
	"github.com/objmapper/objmapper/internal/cli/credentials"
	"github.com/objmapper/objmapper/internal/cli/output"
	"github.com/spf13/cobra"
)

var currentOutput string

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	Long: `Display information about the current active context.

Examples:
  objmapperctl context current
  objmapperctl context current --output json`,
	RunE: runContextCurrent,
}

func init() {
	currentCmd.Flags().StringVarP(&currentOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runContextCurrent(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	contextName := store.GetCurrentContextName()
	if contextName == "" {
		return fmt.Errorf("no current context set\n\n" +
			"Add one first:\n" +
			"  objmapperctl context add <name> --server <url>")
	}

	ctx, err := store.GetContext(contextName)
	if err != nil {
		return fmt.Errorf("failed to get context: %w", err)
	}

	info := ContextInfo{
		Name:      contextName,
		Current:   true,
		Transport: cmdutil.EmptyOr(ctx.Transport, "tcp"),
		Address:   address(ctx),
	}

	format, err := output.ParseFormat(currentOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, info)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, info)
	default:
		fmt.Printf("Current context: %s\n", contextName)
		fmt.Printf("  Transport: %s\n", info.Transport)
		fmt.Printf("  Address:   %s\n", info.Address)
	}

	return nil
}
