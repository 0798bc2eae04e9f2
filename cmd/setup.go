package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/seo-pilot/internal/commands"
)

func newSetupCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactively create the config file and .env.local",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := resolveDeps(cmd.Context())
			if err != nil {
				return err
			}
			return commands.Setup(cmd.Context(), deps, commands.SetupOptions{ConfigPath: root.configPath})
		},
	}
}
