package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/seo-pilot/internal/apis/indexnow"
	"github.com/JakeFAU/seo-pilot/internal/auth"
	"github.com/JakeFAU/seo-pilot/internal/config"
)

// SetupVersion is written into new config files.
const SetupVersion = "1.0.0"

// Placeholders written into the config; the values go to .env.local.
const (
	envBingAPIKey           = "BING_API_KEY"
	envCustomSearchAPIKey   = "CUSTOM_SEARCH_API_KEY"
	envCustomSearchEngineID = "CUSTOM_SEARCH_ENGINE_ID"
)

var errInputClosed = errors.New("setup aborted: input closed")

// SetupOptions are the setup command flags.
type SetupOptions struct {
	ConfigPath string
}

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) ask(question string) (string, error) {
	_, _ = fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.ask(question + " (y/n): ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}

// setupAnswers collects everything the wizard asked for.
type setupAnswers struct {
	siteURL              string
	sitemapURL           string
	keywords             []string
	indexNowKey          string
	serviceAccountPath   string
	searchConsoleSiteURL string
	bingAPIKey           string
	customSearchAPIKey   string
	customSearchEngineID string
}

// Setup walks through the credentials for every service and writes the
// config file plus .env.local next to it.
func Setup(ctx context.Context, d *Deps, opts SetupOptions) error {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultFile
	}
	configPath, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	p := &prompter{in: bufio.NewScanner(d.In), out: d.Printer.Out()}

	d.Printer.Info("SEO Pilot Setup Wizard")
	d.Printer.Info("======================")

	var a setupAnswers
	steps := []func() error{
		func() error { return promptSite(ctx, d, p, &a) },
		func() error { return promptKeywords(d, p, &a) },
		func() error { return promptIndexNow(ctx, d, p, &a) },
		func() error { return promptGoogle(d, p, &a, filepath.Dir(configPath)) },
		func() error { return promptBing(d, p, &a) },
		func() error { return promptCustomSearch(d, p, &a) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	if err := writeSetup(d, configPath, a); err != nil {
		return err
	}
	reportSetup(d, a)

	d.Printer.Info("")
	d.Printer.Info("=== Setup Complete ===")
	d.Printer.Success("Configuration files created successfully!")
	d.Printer.Info("You can now run: seo-pilot <command>")
	d.Printer.Info("Available commands: index, inspect, rank, discover, audit")
	return nil
}

func section(d *Deps, title string) {
	d.Printer.Info("")
	d.Printer.Info("=== %s ===", title)
}

// reachable reports whether a HEAD request to u answers with 2xx.
func reachable(ctx context.Context, d *Deps, u string) bool {
	if !config.IsHTTPURL(u) {
		return false
	}
	code, err := d.Pages.Head(ctx, u)
	return err == nil && code >= 200 && code < 300
}

func promptSite(ctx context.Context, d *Deps, p *prompter, a *setupAnswers) error {
	section(d, "Site Configuration")
	for a.siteURL == "" {
		u, err := p.ask("Site URL (e.g., https://example.com): ")
		if err != nil {
			return err
		}
		u = strings.TrimRight(u, "/")
		if u == "" {
			d.Printer.Error("Site URL is required")
			continue
		}
		d.Printer.Info("Validating site URL...")
		if !reachable(ctx, d, u) {
			d.Printer.Error("Site URL is not reachable (expected 200 response)")
			continue
		}
		d.Printer.Success("Site URL is reachable")
		a.siteURL = u
	}

	fallback := a.siteURL + "/sitemap.xml"
	for a.sitemapURL == "" {
		u, err := p.ask(fmt.Sprintf("Sitemap URL (default: %s): ", fallback))
		if err != nil {
			return err
		}
		if u == "" {
			u = fallback
		}
		d.Printer.Info("Validating sitemap URL...")
		if !reachable(ctx, d, u) {
			d.Printer.Error("Sitemap URL is not reachable (expected 200 response)")
			continue
		}
		d.Printer.Success("Sitemap URL is reachable")
		a.sitemapURL = u
	}
	return nil
}

func promptKeywords(d *Deps, p *prompter, a *setupAnswers) error {
	section(d, "Target Keywords")
	answer, err := p.ask("Target keywords (comma-separated): ")
	if err != nil {
		return err
	}
	a.keywords = []string{}
	for _, k := range strings.Split(answer, ",") {
		if k = strings.TrimSpace(k); k != "" {
			a.keywords = append(a.keywords, k)
		}
	}
	return nil
}

func promptIndexNow(ctx context.Context, d *Deps, p *prompter, a *setupAnswers) error {
	section(d, "IndexNow Configuration")
	ok, err := p.confirm("Configure IndexNow?")
	if err != nil || !ok {
		return err
	}

	key, err := d.IDs.NewKey()
	if err != nil {
		return fmt.Errorf("generate IndexNow key: %w", err)
	}
	site, err := url.Parse(a.siteURL)
	if err != nil {
		return fmt.Errorf("parse site url: %w", err)
	}
	keyFile := indexnow.KeyLocation(site.Host, key)

	d.Printer.Info("Generated IndexNow key: %s", key)
	d.Printer.Info("Please add a file named %q to your site's public directory.", key+".txt")
	d.Printer.Info("The file should contain just: %s", key)
	d.Printer.Info("It should be accessible at: %s", keyFile)

	for {
		deployed, err := p.confirm("Have you deployed the key file?")
		if err != nil {
			return err
		}
		if !deployed {
			d.Printer.Warn("Skipping IndexNow configuration. You can configure it later.")
			return nil
		}
		d.Printer.Info("Validating key file...")
		page, err := d.Pages.Fetch(ctx, keyFile)
		switch {
		case err != nil:
			d.Printer.Error("Failed to fetch key file")
		case !page.OK():
			d.Printer.Error("Key file is not accessible (HTTP %d)", page.StatusCode)
		case strings.TrimSpace(string(page.Body)) != key:
			d.Printer.Error("Key file content does not match the generated key")
		default:
			d.Printer.Success("Key file is valid")
			a.indexNowKey = key
			return nil
		}
	}
}

func promptGoogle(d *Deps, p *prompter, a *setupAnswers, configDir string) error {
	section(d, "Google Cloud Configuration")
	ok, err := p.confirm("Configure Google Cloud APIs?")
	if err != nil || !ok {
		return err
	}

	d.Printer.Info("Please complete the following steps:")
	d.Printer.Info("1. Create a project: https://console.cloud.google.com/projectcreate")
	d.Printer.Info("2. Enable the Web Search Indexing API, Google Search Console API and Custom Search API")
	d.Printer.Info("3. Create a service account and download the JSON key file")
	d.Printer.Info("4. Add the service account email as Owner in Search Console")

	path, err := p.ask("Path to service account JSON file (or press Enter to skip): ")
	if err != nil || path == "" {
		return err
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(configDir, resolved)
	}
	if _, err := auth.LoadServiceAccount(resolved); err != nil {
		d.Printer.Error("Invalid service account file: %v", err)
		return nil
	}
	d.Printer.Success("Service account file is valid")

	siteURL, err := p.ask("Search Console site URL (e.g., sc-domain:example.com): ")
	if err != nil {
		return err
	}
	if siteURL == "" {
		d.Printer.Warn("Skipping Google Cloud configuration (site URL required)")
		return nil
	}
	a.serviceAccountPath = path
	a.searchConsoleSiteURL = siteURL
	return nil
}

func promptBing(d *Deps, p *prompter, a *setupAnswers) error {
	section(d, "Bing Webmaster Configuration")
	ok, err := p.confirm("Configure Bing Webmaster?")
	if err != nil || !ok {
		return err
	}
	d.Printer.Info("To get your API key:")
	d.Printer.Info("1. Visit https://www.bing.com/webmasters")
	d.Printer.Info("2. Navigate to Settings > API Access")
	d.Printer.Info("3. Generate an API key")

	a.bingAPIKey, err = p.ask("Bing API key (or press Enter to skip): ")
	return err
}

func promptCustomSearch(d *Deps, p *prompter, a *setupAnswers) error {
	section(d, "Custom Search Engine Configuration")
	ok, err := p.confirm("Configure Custom Search Engine?")
	if err != nil || !ok {
		return err
	}
	d.Printer.Info("To create a Custom Search Engine:")
	d.Printer.Info("1. Visit https://programmablesearchengine.google.com/")
	d.Printer.Info("2. Create a new search engine")
	d.Printer.Info("3. Get your API key from Google Cloud Console")
	d.Printer.Info("4. Note your Engine ID")

	key, err := p.ask("Custom Search API key (or press Enter to skip): ")
	if err != nil || key == "" {
		return err
	}
	engine, err := p.ask("Custom Search Engine ID (or press Enter to skip): ")
	if err != nil || engine == "" {
		return err
	}
	a.customSearchAPIKey, a.customSearchEngineID = key, engine
	return nil
}

func placeholder(name string) string {
	return "${" + name + "}"
}

func writeSetup(d *Deps, configPath string, a setupAnswers) error {
	section(d, "Writing Configuration Files")

	cfg := &config.Config{
		Version:  SetupVersion,
		Site:     config.SiteConfig{URL: a.siteURL, Sitemap: a.sitemapURL},
		Keywords: a.keywords,
		Discover: config.DiscoverConfig{
			Sites:             config.DefaultDiscoverSites(),
			ResultsPerKeyword: config.DefaultResultsPerKeyword,
		},
	}
	env := map[string]string{}
	if a.indexNowKey != "" {
		cfg.APIs.IndexNow = &config.IndexNowConfig{Key: a.indexNowKey}
	}
	if a.serviceAccountPath != "" && a.searchConsoleSiteURL != "" {
		cfg.APIs.Google = &config.GoogleConfig{
			ServiceAccountPath: a.serviceAccountPath,
			SiteURL:            a.searchConsoleSiteURL,
		}
	}
	if a.bingAPIKey != "" {
		cfg.APIs.Bing = &config.BingConfig{APIKey: placeholder(envBingAPIKey), SiteURL: a.siteURL}
		env[envBingAPIKey] = a.bingAPIKey
	}
	if a.customSearchAPIKey != "" && a.customSearchEngineID != "" {
		cfg.APIs.CustomSearch = &config.CustomSearchConfig{
			APIKey:   placeholder(envCustomSearchAPIKey),
			EngineID: placeholder(envCustomSearchEngineID),
		}
		env[envCustomSearchAPIKey] = a.customSearchAPIKey
		env[envCustomSearchEngineID] = a.customSearchEngineID
	}

	if err := config.Write(configPath, cfg); err != nil {
		return err
	}
	d.Printer.Success("Wrote configuration to %s", configPath)

	if len(env) > 0 {
		envPath := filepath.Join(filepath.Dir(configPath), config.EnvFile)
		if err := config.WriteEnvFile(envPath, env); err != nil {
			return err
		}
		d.Printer.Success("Wrote environment variables to %s", envPath)
	}
	return nil
}

func reportSetup(d *Deps, a setupAnswers) {
	section(d, "Validating API Configuration")
	configured := false
	if a.indexNowKey != "" {
		d.Printer.Success("IndexNow: Configured")
		configured = true
	}
	if a.serviceAccountPath != "" && a.searchConsoleSiteURL != "" {
		d.Printer.Success("Google Cloud: Configured (service account file valid)")
		configured = true
	}
	if a.bingAPIKey != "" {
		d.Printer.Success("Bing Webmaster: Configured (API key provided)")
		configured = true
	}
	if a.customSearchAPIKey != "" && a.customSearchEngineID != "" {
		d.Printer.Success("Custom Search Engine: Configured (credentials provided)")
		configured = true
	}
	if !configured {
		d.Printer.Warn("No APIs configured. Commands will run with limited functionality.")
	}
}
