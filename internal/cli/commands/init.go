package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaporm/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter leaporm.yaml",
		Long: `Write a leaporm.yaml with one SQLite data source and the default pool
settings. Edit it to add MySQL or PostgreSQL data sources.`,
		Example: `  # Initialize in current directory
  leaporm init

  # Initialize in another directory
  leaporm init services/billing

  # Force overwrite existing config
  leaporm init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := NewCommandContext(cmd).Renderer

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		if !force {
			return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
		}
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("failed to replace %s: %w", configPath, err)
		}
	}

	if err := config.WriteDefault(configPath); err != nil {
		return err
	}

	r.StatusLine(configPath, "success", "")
	r.Println("")
	r.Success("LeapORM configuration created!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Describe your data sources in " + configPath)
	r.Println("  2. Run 'leaporm sources' to review them")
	r.Println("  3. Run 'leaporm ping' to check connectivity")

	return nil
}
