package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/seo-pilot/internal/commands"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	opts := commands.InspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Check the Google index status of pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := resolveDeps(cmd.Context())
			if err != nil {
				return err
			}
			opts.ConfigPath = root.configPath
			return commands.Inspect(cmd.Context(), deps, opts)
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "", "inspect a single URL instead of the sitemap")
	return cmd
}
