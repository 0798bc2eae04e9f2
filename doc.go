// Command seo-pilot automates the search engine chores of a single site.
//
// Architecture overview:
//   - CLI: cmd builds a Cobra tree (index, inspect, rank, discover, audit, setup, version). The root
//     pre-run hook loads runtime settings through Viper and builds the app container; the post-run hook
//     closes it.
//   - App container: internal/app owns the zap logger, the Resty client, the service account token cache,
//     the Colly page fetcher, the per-host limiter and the history store, and hands them to the command
//     handlers in internal/commands as one Deps value.
//   - API clients: internal/apis holds IndexNow, Bing Webmaster and Google Indexing submitters on Resty, and
//     Search Console and Custom Search clients on the generated google.golang.org/api packages. All of them
//     back off on HTTP 429 through internal/retry.
//   - State: results are appended to JSON files under .seo-pilot/ (index, inspect, rank, discover and audit
//     history). Discovery reads its own history to skip recently seen URLs.
//
// Quick checklist:
//   - Run "seo-pilot setup" once to write seo-pilot.config.json and .env.local.
//   - Override runtime settings with SEO_PILOT_* variables, e.g. SEO_PILOT_STATE_DIR, SEO_PILOT_HTTP_TIMEOUT,
//     SEO_PILOT_INSPECT_RPS or SEO_PILOT_METRICS_TEXTFILE for a node-exporter textfile.
package main
