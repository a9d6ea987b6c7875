// Command objmapperd is the object-mapper server daemon.
package main

import (
	"os"

	"github.com/objmapper/objmapper/cmd/objmapperd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
