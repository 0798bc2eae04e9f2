package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/seo-pilot/internal/apis/searchconsole"
	"github.com/JakeFAU/seo-pilot/internal/commands"
)

func newRankCmd(root *rootOptions) *cobra.Command {
	opts := commands.RankOptions{}
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show Search Console clicks, impressions and positions per keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := resolveDeps(cmd.Context())
			if err != nil {
				return err
			}
			opts.ConfigPath = root.configPath
			return commands.Rank(cmd.Context(), deps, opts)
		},
	}
	cmd.Flags().IntVar(&opts.Days, "days", searchconsole.DefaultDays, "number of days to query, ending yesterday")
	cmd.Flags().StringVar(&opts.Keyword, "keyword", "", "query a single keyword instead of the configured list")
	return cmd
}
