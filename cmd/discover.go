package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/seo-pilot/internal/commands"
)

func newDiscoverCmd(root *rootOptions) *cobra.Command {
	opts := commands.DiscoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find forum threads and directories worth a backlink",
		Long: `Searches forums and resource directories for the configured keywords with
the Custom Search API. Results seen in recent runs are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := resolveDeps(cmd.Context())
			if err != nil {
				return err
			}
			opts.ConfigPath = root.configPath
			return commands.Discover(cmd.Context(), deps, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "forums", "what to search for: forums, directories or all")
	cmd.Flags().StringVar(&opts.Keyword, "keyword", "", "search a single configured keyword")
	return cmd
}
