// Package cmd implements the init command for buddy CLI.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .buddy directory, config and session database",
	Long: `Initialize the .buddy directory in the project directory.

This writes .buddy/config.yaml with the default settings, creates the sessions
directory used by the agent and chat commands, and creates the session
database that records conversations.

Examples:
  buddy init          # Initialize in current directory
  buddy init --force  # Rewrite config.yaml with defaults`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Rewrite config.yaml even if it already exists")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	out := cmd.OutOrStdout()

	configPath := filepath.Join(dir, config.ConfigDirName, config.ConfigFileName)

	// Check if config already exists
	_, err = os.Stat(configPath)
	if err == nil {
		if !initForce {
			relPath, _ := filepath.Rel(dir, configPath)
			fmt.Fprintf(out, "Already initialized at %s\n", relPath)
			return nil
		}
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("removing existing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config path: %w", err)
	}

	if _, err := config.SaveDefault(dir); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return err
	}
	p := &project{root: dir, cfg: cfg}

	// Open the store to create the sessions directory and schema
	st, err := p.openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	relConfig, _ := filepath.Rel(dir, configPath)
	relDB, _ := filepath.Rel(dir, st.Path())
	fmt.Fprintf(out, "Initialized buddy config at %s\n", relConfig)
	fmt.Fprintf(out, "Session database at %s\n", relDB)

	return nil
}
