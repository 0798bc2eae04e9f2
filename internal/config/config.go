// Package config loads and validates the per-site seo-pilot.config.json file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/titanous/json5"
)

const (
	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = "seo-pilot.config.json"
	// LocalFile overrides DefaultFile when present next to it.
	LocalFile = "seo-pilot.config.local.json"
	// EnvFile holds secrets referenced by ${VAR} placeholders.
	EnvFile = ".env.local"
	// DefaultResultsPerKeyword is the Custom Search page size for discover.
	DefaultResultsPerKeyword = 5
)

// DefaultDiscoverSites are the forums searched when discover.sites is unset.
func DefaultDiscoverSites() []string {
	return []string{"reddit.com", "quora.com"}
}

// Config is the validated site configuration.
type Config struct {
	Version  string         `mapstructure:"version" json:"version"`
	Site     SiteConfig     `mapstructure:"site" json:"site"`
	Keywords []string       `mapstructure:"keywords" json:"keywords"`
	APIs     APIsConfig     `mapstructure:"apis" json:"apis"`
	Discover DiscoverConfig `mapstructure:"discover" json:"discover"`

	// Dir is the directory the config was loaded from.
	Dir string `mapstructure:"-" json:"-"`
}

// SiteConfig identifies the site being managed.
type SiteConfig struct {
	URL     string `mapstructure:"url" json:"url"`
	Sitemap string `mapstructure:"sitemap" json:"sitemap"`
}

// APIsConfig holds the optional per-service credentials. A nil block means
// the service is not configured.
type APIsConfig struct {
	IndexNow     *IndexNowConfig     `mapstructure:"indexnow" json:"indexnow,omitempty"`
	Google       *GoogleConfig       `mapstructure:"google" json:"google,omitempty"`
	Bing         *BingConfig         `mapstructure:"bing" json:"bing,omitempty"`
	CustomSearch *CustomSearchConfig `mapstructure:"customSearch" json:"customSearch,omitempty"`
}

// IndexNowConfig configures IndexNow submission.
type IndexNowConfig struct {
	Key string `mapstructure:"key" json:"key"`
}

// GoogleConfig configures the Google Indexing and Search Console APIs.
type GoogleConfig struct {
	ServiceAccountPath string `mapstructure:"serviceAccountPath" json:"serviceAccountPath"`
	SiteURL            string `mapstructure:"siteUrl" json:"siteUrl"`
}

// BingConfig configures Bing Webmaster submission.
type BingConfig struct {
	APIKey  string `mapstructure:"apiKey" json:"apiKey"`
	SiteURL string `mapstructure:"siteUrl" json:"siteUrl"`
}

// CustomSearchConfig configures the Programmable Search API.
type CustomSearchConfig struct {
	APIKey   string `mapstructure:"apiKey" json:"apiKey"`
	EngineID string `mapstructure:"engineId" json:"engineId"`
}

// DiscoverConfig tunes the discover command.
type DiscoverConfig struct {
	Sites             []string `mapstructure:"sites" json:"sites"`
	ResultsPerKeyword int      `mapstructure:"resultsPerKeyword" json:"resultsPerKeyword"`
	DirectoryQueries  []string `mapstructure:"directoryQueries" json:"directoryQueries,omitempty"`
}

// Load reads, merges, substitutes and validates the config at path. An empty
// path means DefaultFile in the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	configPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	configDir := filepath.Dir(configPath)

	// #nosec G304 -- the config path is chosen by the operator.
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	raw := map[string]any{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("Invalid JSON in config file: %s: %w", configPath, err)
	}

	localPath := filepath.Join(configDir, LocalFile)
	// #nosec G304 -- sibling of the operator-chosen config path.
	if localData, err := os.ReadFile(localPath); err == nil {
		override := map[string]any{}
		if err := json5.Unmarshal(localData, &override); err != nil {
			return nil, fmt.Errorf("Invalid JSON in config file: %s: %w", localPath, err)
		}
		if err := mergo.Merge(&raw, override, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge %s: %w", localPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", localPath, err)
	}

	lookup, err := envLookup(filepath.Join(configDir, EnvFile))
	if err != nil {
		return nil, err
	}
	substituted, err := Substitute(raw, lookup)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(substituted.(map[string]any))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.stripUnconfigured()
	cfg.Dir = configDir

	if g := cfg.APIs.Google; g != nil {
		if !filepath.IsAbs(g.ServiceAccountPath) {
			g.ServiceAccountPath = filepath.Join(configDir, g.ServiceAccountPath)
		}
		if _, err := os.Stat(g.ServiceAccountPath); err != nil {
			return nil, fmt.Errorf("Google service account file not found: %s", g.ServiceAccountPath)
		}
	}
	return cfg, nil
}

func decode(m map[string]any) (*Config, error) {
	v := viper.New()
	v.SetDefault("version", "")
	v.SetDefault("keywords", []string{})
	v.SetDefault("discover.sites", DefaultDiscoverSites())
	v.SetDefault("discover.resultsPerKeyword", DefaultResultsPerKeyword)
	if err := v.MergeConfigMap(m); err != nil {
		return nil, fmt.Errorf("load config map: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Config validation failed: %w", err)
	}
	return &cfg, nil
}

// envLookup layers the process environment over the optional .env.local
// file. Existing environment variables always win.
func envLookup(envPath string) (func(string) (string, bool), error) {
	fileVars := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		fileVars, err = godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", envPath, err)
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces ${VAR} and ${VAR:-default} in every string inside v.
// The default is used only when VAR is unset.
func Substitute(v any, lookup func(string) (string, bool)) (any, error) {
	switch val := v.(type) {
	case string:
		var firstErr error
		out := placeholder.ReplaceAllStringFunc(val, func(match string) string {
			expr := match[2 : len(match)-1]
			if name, fallback, ok := strings.Cut(expr, ":-"); ok && name != "" {
				if env, set := lookup(name); set {
					return env
				}
				return fallback
			}
			env, set := lookup(expr)
			if !set && firstErr == nil {
				firstErr = fmt.Errorf("Environment variable %q is not set but referenced in config", expr)
			}
			return env
		})
		if firstErr != nil {
			return nil, firstErr
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			sub, err := Substitute(item, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			sub, err := Substitute(item, lookup)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	default:
		return v, nil
	}
}

// Validate checks required fields and formats.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Version) == "" {
		problems = append(problems, "version: Required")
	}
	if !IsHTTPURL(c.Site.URL) {
		problems = append(problems, "site.url: Invalid url")
	}
	if !IsHTTPURL(c.Site.Sitemap) {
		problems = append(problems, "site.sitemap: Invalid url")
	}
	for i, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			problems = append(problems, fmt.Sprintf("keywords.%d: must not be empty", i))
		}
	}
	if c.Discover.ResultsPerKeyword <= 0 {
		problems = append(problems, "discover.resultsPerKeyword: Number must be greater than 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("Config validation failed: %s", strings.Join(problems, ", "))
	}
	return nil
}

// stripUnconfigured drops API blocks whose required fields are empty, which
// is what a ${VAR:-} placeholder yields for an unset secret.
func (c *Config) stripUnconfigured() {
	if a := c.APIs.IndexNow; a != nil && a.Key == "" {
		c.APIs.IndexNow = nil
	}
	if a := c.APIs.Google; a != nil && (a.ServiceAccountPath == "" || a.SiteURL == "") {
		c.APIs.Google = nil
	}
	if a := c.APIs.Bing; a != nil && a.APIKey == "" {
		c.APIs.Bing = nil
	}
	if a := c.APIs.CustomSearch; a != nil && (a.APIKey == "" || a.EngineID == "") {
		c.APIs.CustomSearch = nil
	}
}

// IsHTTPURL reports whether raw is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Write stores cfg as indented JSON at path.
func Write(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// WriteEnvFile stores vars as KEY="value" lines, readable only by the owner.
func WriteEnvFile(path string, vars map[string]string) error {
	if err := godotenv.Write(vars, path); err != nil {
		return fmt.Errorf("write env file %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod env file %s: %w", path, err)
	}
	return nil
}
