package commands

import (
	"github.com/spf13/cobra"

	"github.com/idelchi/gogen/pkg/cobraext"

	"github.com/vaultea/teax/internal/config"
)

// NewRootCommand creates the root command with common configuration.
// Flags are persistent so that every subcommand accepts them; each can also be set
// through the environment, e.g. TEAX_PASSWORD or TEAX_LOG_LEVEL.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	root := cobraext.NewDefaultRootCommand(version)

	root.Use = "teax [flags] command [flags]"
	root.Short = "Password-based file encryption utility"
	root.Long = `Encrypts files and directories with a password into self-contained .teax artifacts.
Directories are archived (uncompressed zip) before encryption; decryption leaves the archive packed.`

	flags := root.PersistentFlags()

	flags.BoolP("show", "s", false, "Show the configuration and exit")
	flags.BoolP("quiet", "q", false, "Suppress non-error output")
	flags.Bool("stats", false, "Print statistics after processing")
	flags.String("log-level", "warn", "Diagnostic log level (debug, info, warn, error)")

	flags.StringP("password", "p", "", "Password (prompted for when neither this nor --password-file is given)")
	flags.String("password-file", "", "Path to a file whose first line is the password")

	flags.Int("kdf-cost", config.DefaultKDFCost, "log2 of the scrypt cost; must match the value used for encryption")
	_ = flags.MarkHidden("kdf-cost")

	root.AddCommand(
		NewEncryptCommand(cfg),
		NewDecryptCommand(cfg),
		NewVerifyCommand(cfg),
		NewInspectCommand(cfg),
	)

	return root
}
