package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codebuddy/buddy/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration buddy runs with: .buddy/config.yaml merged over the
defaults, with environment overrides applied. Secrets are redacted.

Examples:
  buddy config                 # Effective config as YAML
  buddy config --format json   # As JSON
  buddy config --path          # Where the config file lives`,
	RunE: runConfig,
}

var configShowPath bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "Print the config file path and exit")
}

func runConfig(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if configShowPath {
		configDir, err := config.FindConfigDir(p.root)
		if err != nil {
			return fmt.Errorf("buddy not initialized: run 'buddy init' first")
		}
		fmt.Fprintln(out, filepath.Join(configDir, config.ConfigFileName))
		return nil
	}

	cfg := *p.cfg
	if cfg.Gemini.APIKey != "" {
		cfg.Gemini.APIKey = "<redacted>"
	}
	if cfg.Redis.Password != "" {
		cfg.Redis.Password = "<redacted>"
	}

	if outputFormat == "text" || outputFormat == "txt" {
		outputFormat = "yaml"
	}
	return writeOutput(out, &cfg)
}
