package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/seo-pilot/internal/commands"
)

func newAuditCmd(root *rootOptions) *cobra.Command {
	opts := commands.AuditOptions{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run on-page SEO checks",
		Long: `Audits every sitemap page, or a single --url, for meta tags, structured
data, internal links and sitemap health. --base-url points the audit at
another deployment of the same site, such as a staging host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := resolveDeps(cmd.Context())
			if err != nil {
				return err
			}
			opts.ConfigPath = root.configPath
			return commands.Audit(cmd.Context(), deps, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.URL, "url", "", "audit a single URL instead of the sitemap")
	flags.StringVar(&opts.Checks, "checks", "all", "comma-separated checks: meta, schema, links, sitemap, render or all")
	flags.StringVar(&opts.BaseURL, "base-url", "", "override the site URL; the sitemap defaults to <base-url>/sitemap.xml")
	flags.StringVar(&opts.Sitemap, "sitemap", "", "override the sitemap URL")
	return cmd
}
