package commands

import (
	"github.com/spf13/cobra"

	"github.com/vaultea/teax/internal/config"
	"github.com/vaultea/teax/internal/logic"
)

// NewEncryptCommand creates a new cobra command for the encrypt subcommand.
func NewEncryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "encrypt [flags] paths...",
		Aliases: []string{"enc"},
		Short:   "Encrypt files and directories",
		Example: `  teax encrypt report.pdf          # -> report.pdf.teax
  teax encrypt photos/ -o /backup  # -> /backup/photos.zip.teax`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: preRun(cfg),
		RunE: func(_ *cobra.Command, _ []string) error {
			return logic.Run(cfg)
		},
	}

	outputFlags(cmd)

	cmd.Flags().StringSlice("exclude", nil, "Patterns of directory entries to leave out of archives")
	cmd.Flags().String("exclude-from", "", "Path to a JSONC file with an array of exclude patterns")

	return cmd
}

// outputFlags declares the flags shared by the commands that write artifacts.
func outputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Directory to write outputs to, instead of next to the inputs")
	cmd.Flags().BoolP("force", "f", false, "Overwrite existing outputs")
	cmd.Flags().BoolP("delete", "d", false, "Delete the original file after successful processing")
}
