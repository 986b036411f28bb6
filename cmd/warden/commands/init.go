package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/permission"
	"github.com/wardenhq/warden/internal/trust"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Warden configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.Directives = map[string]string{
		"deploy":  "deploy_service",
		"migrate": "run_migration",
		"report":  "generate_report",
	}

	dirs := []string{
		config.ConfigDir(),
		cfg.WorkspacePath(),
		filepath.Join(cfg.WorkspacePath(), "state"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	identityPath := cfg.IdentityFilePath()
	if _, err := os.Stat(identityPath); os.IsNotExist(err) {
		seed := trust.Identity{
			Scores: map[trust.Category]float64{
				"security":   0.5,
				"testing":    0.5,
				"operations": 0.5,
			},
			Sovereignty: 0.5,
		}
		if err := trust.SaveIdentity(identityPath, seed); err != nil {
			return fmt.Errorf("failed to seed identity file: %w", err)
		}
	}

	permissionsPath := cfg.PermissionsFilePath()
	if _, err := os.Stat(permissionsPath); os.IsNotExist(err) {
		sample := []permission.Requirement{
			{
				Action: "deploy_service",
				Skill:  "deployer",
				RequiredScores: map[trust.Category]float64{
					"security":   0.7,
					"operations": 0.6,
				},
				MinSovereignty: 0.6,
			},
			{
				Action: "run_migration",
				Skill:  "migrator",
				RequiredScores: map[trust.Category]float64{
					"security": 0.7,
					"testing":  0.6,
				},
				MinSovereignty: 0.7,
			},
		}
		if err := permission.SaveTable(permissionsPath, sample); err != nil {
			return fmt.Errorf("failed to seed permission table: %w", err)
		}
	}

	fmt.Printf("Warden initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())
	fmt.Printf("Identity file: %s\n", identityPath)
	fmt.Printf("Permission table: %s\n", permissionsPath)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to add supervisors and channel tokens\n", configPath)
	fmt.Printf("2. Point your trust pipeline at %s\n", identityPath)
	fmt.Printf("3. Run 'warden run' to start the daemon\n")

	return nil
}
