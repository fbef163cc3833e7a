// Command teax encrypts files and directories with a password into .teax artifacts.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/idelchi/gogen/pkg/cobraext"

	"github.com/vaultea/teax/internal/commands"
	"github.com/vaultea/teax/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "unknown"

func main() {
	var cfg config.Config

	if err := commands.NewRootCommand(&cfg, version).Execute(); err != nil {
		if errors.Is(err, cobraext.ErrExitGracefully) {
			return
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		os.Exit(1)
	}
}
