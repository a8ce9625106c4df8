package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/errpattern"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the relay mailbox and optionally the session database",
	Long: `Remove leftover mailbox files (question, answer, processing marker,
heartbeat and error suggestions) from the sessions directory. Use this when a crashed agent or chat
left a stale question behind.

Modes:
  buddy reset                     # Clear mailbox files
  buddy reset --sessions --force  # Also delete all stored sessions

Examples:
  buddy reset
  buddy reset --sessions --force`,
	RunE: runReset,
}

var (
	resetSessions bool
	resetForce    bool
)

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetSessions, "sessions", false, "Delete the session database (requires --force)")
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Confirm destructive resets")
}

func runReset(cmd *cobra.Command, args []string) error {
	if resetSessions && !resetForce {
		return fmt.Errorf("--sessions deletes every stored conversation: add --force to confirm")
	}

	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if err := p.mailbox().Reset(true); err != nil {
		return fmt.Errorf("clear mailbox: %w", err)
	}
	if err := errpattern.RemoveFiles(p.sessionsDir()); err != nil {
		return fmt.Errorf("clear suggestions: %w", err)
	}
	fmt.Fprintf(out, "Cleared mailbox in %s\n", p.sessionsDir())

	if resetSessions {
		dbPath := p.cfg.DatabasePath(p.root)
		for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("removing %s: %w", path, err)
			}
		}
		fmt.Fprintf(out, "Deleted session database %s\n", dbPath)
	}

	return nil
}
