// Command objmapperctl is the admin CLI for a running objmapperd server.
package main

import (
	"os"

	"github.com/objmapper/objmapper/cmd/objmapperctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
