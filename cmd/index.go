package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/seo-pilot/internal/commands"
)

// newIndexCmd creates the 'index' subcommand, which submits every sitemap URL
// to the configured indexing services.
func newIndexCmd(root *rootOptions) *cobra.Command {
	opts := commands.IndexOptions{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Submit sitemap URLs to IndexNow, Google and Bing",
		Long: `Fetches the configured sitemap and submits its URLs to every configured
indexing service. A failed service makes the command exit non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := resolveDeps(cmd.Context())
			if err != nil {
				return err
			}
			opts.ConfigPath = root.configPath
			return commands.Index(cmd.Context(), deps, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Service, "service", commands.ServiceAll, "service to submit to: indexnow, google, bing or all")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list the URLs without submitting them")
	return cmd
}
