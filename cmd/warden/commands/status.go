package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/permission"
	"github.com/wardenhq/warden/internal/trust"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Warden configuration and runtime state",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Warden status\n")
	fmt.Printf("  Config:      %s\n", config.ConfigPath())
	fmt.Printf("  Workspace:   %s\n", cfg.WorkspacePath())
	fmt.Printf("  Gateway:     %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("  Supervisors: %d\n", len(cfg.Supervisors))

	provider := trust.NewFileProvider(cfg.IdentityFilePath())
	id, err := provider.Reload(cmd.Context())
	if err != nil {
		fmt.Printf("\nIdentity: unavailable (%v)\n", err)
	} else {
		fmt.Printf("\nIdentity (%s)\n", cfg.IdentityFilePath())
		fmt.Printf("  Sovereignty: %.2f\n", id.Sovereignty)
		categories := make([]trust.Category, 0, len(id.Scores))
		for cat := range id.Scores {
			categories = append(categories, cat)
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
		for _, cat := range categories {
			fmt.Printf("  %-12s %.2f\n", cat, id.Scores[cat])
		}
	}

	requirements, err := permission.LoadTable(cfg.PermissionsFilePath())
	if err != nil {
		fmt.Printf("\nPermission table: unavailable (%v)\n", err)
	} else if len(requirements) == 0 {
		fmt.Printf("\nPermission table: empty (all actions fail open)\n")
	} else {
		fmt.Printf("\nPermission table (%d actions)\n", len(requirements))
		for _, req := range requirements {
			fmt.Printf("  %-20s min_sovereignty=%.2f categories=%d\n",
				req.Action, req.MinSovereignty, len(req.RequiredScores))
		}
	}

	snapshot, err := metrics.ReadSnapshot(cfg.WorkspacePath())
	if err != nil || !snapshot.HasData() {
		fmt.Printf("\nRuntime metrics: none recorded\n")
		return nil
	}

	fmt.Printf("\nRuntime metrics (updated %s)\n", snapshot.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Gate:        %d allowed, %d denied (%.0f%% denial), %d drift escalations\n",
		snapshot.Gate.Allows, snapshot.Gate.Denials, snapshot.Gate.DenialRatio()*100, snapshot.Gate.DriftEscalations)
	fmt.Printf("  Predictions: %d created, %d completed, %d redirected, %d blessed, %d aborted\n",
		snapshot.Prediction.Created, snapshot.Prediction.Completed,
		snapshot.Prediction.Redirected, snapshot.Prediction.Blessed, snapshot.Prediction.Aborted)
	if snapshot.Channel.SendAttempts > 0 {
		fmt.Printf("  Channels:    %d sends, %d failures\n", snapshot.Channel.SendAttempts, snapshot.Channel.SendFailures)
	}

	return nil
}
