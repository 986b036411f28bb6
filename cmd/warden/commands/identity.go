package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/permission"
	"github.com/wardenhq/warden/internal/trust"
)

func NewIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect and manage the trust identity",
	}
	cmd.AddCommand(newIdentityShowCmd(), newIdentitySetCmd(), newIdentityCheckCmd())
	return cmd
}

func newIdentityShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current trust identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			provider := trust.NewFileProvider(cfg.IdentityFilePath())
			id, err := provider.Reload(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load identity: %w", err)
			}

			fmt.Printf("Identity: %s\n", cfg.IdentityFilePath())
			if !id.LoadedAt.IsZero() {
				fmt.Printf("Loaded:   %s\n", id.LoadedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("Sovereignty: %.2f\n", id.Sovereignty)
			if len(id.Scores) == 0 {
				fmt.Println("No category scores recorded.")
				return nil
			}

			categories := make([]trust.Category, 0, len(id.Scores))
			for cat := range id.Scores {
				categories = append(categories, cat)
			}
			sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
			for _, cat := range categories {
				fmt.Printf("  %-12s %.2f\n", cat, id.Scores[cat])
			}
			return nil
		},
	}
}

func newIdentitySetCmd() *cobra.Command {
	var sovereignty float64

	cmd := &cobra.Command{
		Use:   "set [category score]...",
		Short: "Update category scores or sovereignty in the identity file",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args)%2 != 0 {
				return fmt.Errorf("arguments must be category/score pairs")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			provider := trust.NewFileProvider(cfg.IdentityFilePath())
			id, err := provider.Reload(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load identity: %w", err)
			}
			if id.Scores == nil {
				id.Scores = make(map[trust.Category]float64)
			}

			for i := 0; i < len(args); i += 2 {
				score, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("invalid score for %s: %w", args[i], err)
				}
				if score < 0 || score > 1 {
					return fmt.Errorf("score for %s must be in [0, 1], got %g", args[i], score)
				}
				id.Scores[trust.Category(args[i])] = score
			}

			if cmd.Flags().Changed("sovereignty") {
				if sovereignty < 0 || sovereignty > 1 {
					return fmt.Errorf("sovereignty must be in [0, 1], got %g", sovereignty)
				}
				id.Sovereignty = sovereignty
			}

			if err := trust.SaveIdentity(cfg.IdentityFilePath(), id); err != nil {
				return fmt.Errorf("failed to save identity: %w", err)
			}

			fmt.Printf("Identity updated: %s\n", cfg.IdentityFilePath())
			return nil
		},
	}

	cmd.Flags().Float64Var(&sovereignty, "sovereignty", 0, "Set the sovereignty score")
	return cmd
}

func newIdentityCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <action>",
		Short: "Test whether the current identity permits an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			provider := trust.NewFileProvider(cfg.IdentityFilePath())
			id, err := provider.Reload(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load identity: %w", err)
			}

			requirements, err := permission.LoadTable(cfg.PermissionsFilePath())
			if err != nil {
				return fmt.Errorf("failed to load permission table: %w", err)
			}

			engine := permission.NewEngine(requirements)
			result := engine.Check(args[0], id)

			switch {
			case result.Allowed && !result.Registered:
				fmt.Printf("ALLOW %s (unregistered, fail open)\n", args[0])
			case result.Allowed:
				fmt.Printf("ALLOW %s (overlap %.2f >= %.2f)\n", args[0], result.Overlap, permission.OverlapThreshold)
			default:
				fmt.Printf("DENY %s (overlap %.2f < %.2f)\n", args[0], result.Overlap, permission.OverlapThreshold)
				if result.Denial != nil {
					if len(result.Denial.FailedCategories) > 0 {
						fmt.Printf("  failed categories: %v\n", result.Denial.FailedCategories)
					}
					fmt.Printf("  sovereignty: %.2f\n", result.Denial.Sovereignty)
				}
			}
			return nil
		},
	}
}
