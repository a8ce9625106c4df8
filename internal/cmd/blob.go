package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// blobCmd represents the blob command
var blobCmd = &cobra.Command{
	Use:   "blob [output-file]",
	Short: "Flatten the whole repository into one text file",
	Long: `Write every text file of the project into a single document, each framed
by "--- START FILE: path ---" and "--- END FILE: path ---" markers.

This is the context the agent sends when smart context is disabled. Binary
files, virtualenvs, node_modules, .git and .buddy are skipped. Without an
output file the blob goes to stdout.

Examples:
  buddy blob                    # To stdout
  buddy blob repo_blob.txt      # To a file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBlob,
}

func init() {
	rootCmd.AddCommand(blobCmd)
}

func runBlob(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	gen := p.blob()

	if len(args) == 0 {
		_, err := gen.Write(ctx, cmd.OutOrStdout())
		return err
	}

	stats, err := gen.WriteFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	logger.Debug("blob written", zap.String("path", args[0]), zap.Int("files", stats.Files))
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d files (%d bytes, %d skipped) to %s\n",
		stats.Files, stats.Bytes, stats.Skipped, args[0])
	return nil
}
