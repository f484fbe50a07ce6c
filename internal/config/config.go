package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/digestwatch/digestwatch/internal/digest"
)

// Default values for the server configuration.
const (
	DefaultPort         = 8080
	DefaultLookback     = 7 * 24 * time.Hour
	DefaultRefreshAfter = 30 * time.Minute
)

// Duration is a time.Duration that unmarshals from the same human-readable
// forms the ?since= query accepts: "7d", "30m", "1 week 2 days".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := digest.ParseLookback(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration, or fallback when d is unset.
func (d Duration) Std(fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return time.Duration(d)
}

// Config is the full digestwatch configuration parsed from config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Cache holds the process-wide cache tuning defaults; individual
	// digests may override both knobs.
	Cache CacheConfig `yaml:"cache"`

	// Digests is the ordered list of digests the server exposes. Only
	// digests listed here (or injected from the environment/CLI) are ever
	// cached — an unknown digest filename is a 404, never an implicit
	// cache entry.
	Digests []Digest `yaml:"digests"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Port is the HTTP port to listen on (default 8080). The PORT
	// environment variable, when set, takes precedence.
	Port int `yaml:"port"`
}

// CacheConfig holds the default cache tuning applied to every digest that
// does not override it.
type CacheConfig struct {
	// Lookback bounds how far back a cold cache fetches on first use, and
	// how old the last refresh may be before a full re-fetch is forced.
	// Default: 7 days.
	Lookback Duration `yaml:"lookback"`

	// RefreshAfter is the minimum interval between routine refreshes of a
	// warm digest. Default: 30 minutes.
	RefreshAfter Duration `yaml:"refresh_after"`
}

// Digest describes one digest page: a title, the filename it is served
// under, and the repositories whose activity it aggregates.
type Digest struct {
	// Title is the human-readable digest name. Defaults to Filename.
	Title string `yaml:"title"`

	// Filename is the key the digest is served under ("widgets.html").
	// Unique across the config; stable for the process lifetime.
	Filename string `yaml:"digest"`

	// Items lists the repositories to aggregate, as full URLs or
	// "owner/repo" shorthand.
	Items []string `yaml:"items"`

	// Lookback and RefreshAfter override the cache defaults for this
	// digest only.
	Lookback     Duration `yaml:"lookback"`
	RefreshAfter Duration `yaml:"refresh_after"`

	// Order is "newest_first" (default) or "oldest_first".
	Order string `yaml:"order"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation. Digests from the PROJECTS environment
// variable are prepended, mirroring the CLI behavior.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.Digests = append(FromProjects(strings.Fields(os.Getenv("PROJECTS"))), cfg.Digests...)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// FromArgs builds a config without a file: every argument is an
// "owner/repo" or URL that becomes a single-repository digest.
func FromArgs(args []string) (*Config, error) {
	cfg := defaults()
	cfg.Digests = append(FromProjects(strings.Fields(os.Getenv("PROJECTS"))), FromProjects(args)...)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// FromProjects converts repository references ("owner/repo" or full URLs)
// into single-item digests named after the repository.
func FromProjects(refs []string) []Digest {
	var out []Digest
	for _, ref := range refs {
		ref = strings.TrimRight(ref, "/")
		name := ref[strings.LastIndex(ref, "/")+1:]
		url := ref
		if !strings.Contains(url, "://") {
			url = "https://github.com/" + url
		}
		out = append(out, Digest{
			Title:    name,
			Filename: name + ".html",
			Items:    []string{url},
		})
	}
	return out
}

// Token resolves the upstream API token: GITHUB_TOKEN directly, or the
// contents of the file named by GITHUB_TOKEN_FILE.
func Token() (string, error) {
	if path := os.Getenv("GITHUB_TOKEN_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("config: read GITHUB_TOKEN_FILE: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("config: GITHUB_TOKEN not set")
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: DefaultPort},
		Cache: CacheConfig{
			Lookback:     Duration(DefaultLookback),
			RefreshAfter: Duration(DefaultRefreshAfter),
		},
	}
}

// applyEnv applies environment overrides that beat the config file.
func applyEnv(cfg *Config) {
	if p := os.Getenv("PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Server.Port = port
		}
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if cfg.Cache.Lookback < 0 || cfg.Cache.RefreshAfter < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	if len(cfg.Digests) == 0 {
		return fmt.Errorf("no digests configured")
	}

	seen := make(map[string]struct{}, len(cfg.Digests))
	for i := range cfg.Digests {
		d := &cfg.Digests[i]
		if d.Filename == "" {
			return fmt.Errorf("digests[%d]: missing digest filename", i)
		}
		if _, dup := seen[d.Filename]; dup {
			return fmt.Errorf("digest %q configured twice", d.Filename)
		}
		seen[d.Filename] = struct{}{}
		if len(d.Items) == 0 {
			return fmt.Errorf("digest %q: no items", d.Filename)
		}
		if d.Title == "" {
			d.Title = d.Filename
		}
		if _, ok := digest.OrderFromString(d.Order); !ok {
			return fmt.Errorf("digest %q: order %q unknown: want newest_first|oldest_first", d.Filename, d.Order)
		}
	}
	return nil
}
