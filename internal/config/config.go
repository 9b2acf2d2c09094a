// Package config loads calltrace routing configuration from YAML or CUE.
//
// A configuration names the default sink, overrides it per function, and
// selects the failure and sink policies:
//
//	default_sink: main.log
//	failure_policy: log      # log | skip
//	sink_policy: propagate   # propagate | log
//	routes:
//	  find_articles: find_articles.txt
//	  summator: sqlite://calls.db
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/calltrace/internal/intercept"
)

// DefaultSink is used when a configuration names none.
const DefaultSink = "main.log"

// Config is the routing configuration.
type Config struct {
	// DefaultSink receives records of functions without a route.
	DefaultSink string `yaml:"default_sink" json:"default_sink"`

	// FailurePolicy is "log" (default) or "skip".
	FailurePolicy string `yaml:"failure_policy,omitempty" json:"failure_policy,omitempty"`

	// SinkPolicy is "propagate" (default) or "log".
	SinkPolicy string `yaml:"sink_policy,omitempty" json:"sink_policy,omitempty"`

	// Routes maps function names to sink locations.
	Routes map[string]string `yaml:"routes,omitempty" json:"routes,omitempty"`

	// Scrape configures the article scraper.
	Scrape ScrapeConfig `yaml:"scrape,omitempty" json:"scrape,omitempty"`
}

// ScrapeConfig configures the article scraper.
type ScrapeConfig struct {
	Keywords  []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	UserAgent string   `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// topLevelKeys are the fields accepted at the top of a CUE configuration.
var topLevelKeys = map[string]bool{
	"default_sink":   true,
	"failure_policy": true,
	"sink_policy":    true,
	"routes":         true,
	"scrape":         true,
}

// Default returns a configuration writing everything to DefaultSink.
func Default() *Config {
	return &Config{DefaultSink: DefaultSink}
}

// Load reads a configuration file. The format is chosen by extension:
// .yaml and .yml are YAML, .cue is CUE.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseYAML parses a YAML configuration. Unknown fields are rejected.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseCUE evaluates a CUE configuration. The value must be concrete and
// may only use the fields of Config.
func ParseCUE(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating CUE value: %w", err)
	}

	iter, err := value.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating CUE fields: %w", err)
	}
	for iter.Next() {
		if !topLevelKeys[iter.Selector().String()] {
			return nil, fmt.Errorf("unknown field %q", iter.Selector().String())
		}
	}

	cfg := Default()
	if err := value.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding CUE value: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks policies and sink locations.
func (c *Config) Validate() error {
	if c.DefaultSink == "" {
		return fmt.Errorf("default_sink must not be empty")
	}
	if _, err := intercept.ParseFailurePolicy(c.FailurePolicy); err != nil {
		return err
	}
	if _, err := intercept.ParseSinkPolicy(c.SinkPolicy); err != nil {
		return err
	}
	for _, fn := range c.RoutedFunctions() {
		if c.Routes[fn] == "" {
			return fmt.Errorf("routes.%s: sink location must not be empty", fn)
		}
	}
	return nil
}

// SinkFor returns the sink location for function.
func (c *Config) SinkFor(function string) string {
	if loc, ok := c.Routes[function]; ok {
		return loc
	}
	return c.DefaultSink
}

// RoutedFunctions returns the functions with an explicit route, sorted.
func (c *Config) RoutedFunctions() []string {
	names := make([]string, 0, len(c.Routes))
	for name := range c.Routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options converts the configured policies into interceptor options.
func (c *Config) Options() ([]intercept.Option, error) {
	fp, err := intercept.ParseFailurePolicy(c.FailurePolicy)
	if err != nil {
		return nil, err
	}
	sp, err := intercept.ParseSinkPolicy(c.SinkPolicy)
	if err != nil {
		return nil, err
	}
	return []intercept.Option{
		intercept.WithFailurePolicy(fp),
		intercept.WithSinkPolicy(sp),
	}, nil
}
