package commands

import (
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/config"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Warden - Trust-gated action control for autonomous agents",
		Long:  `Warden gates every privileged action behind an earned-trust permission test and gives a human supervisor a bounded window to intervene before semi-autonomous actions run.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewRunCmd(),
		NewStatusCmd(),
		NewIdentityCmd(),
		NewVersionCmd(),
	)

	return cmd
}
