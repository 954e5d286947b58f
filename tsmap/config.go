// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package tsmap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by all subcommands.
//
// Values are layered: built-in defaults, then the YAML file named by
// --config or TSMAP_CONFIG, then TSMAP_* environment variables (a .env file
// in the working directory is loaded first), then command-line flags.
type Config struct {
	Output      string        `yaml:"output"`
	Proxy       string        `yaml:"proxy"`
	Insecure    bool          `yaml:"insecure"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	CacheSize   int           `yaml:"cache_size"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	NoColor     bool          `yaml:"no_color"`
	SaveMap     bool          `yaml:"save_map"`
	SaveJS      bool          `yaml:"save_js"`

	// Command-line only.
	ConfigPath string `yaml:"-"`
	Analyze    bool   `yaml:"-"`
	Clean      bool   `yaml:"-"`
	Yes        bool   `yaml:"-"`
}

// DefaultConfig returns the defaults for a subcommand writing to output.
func DefaultConfig(output string) *Config {
	return &Config{
		Output:      output,
		UserAgent:   defaultUserAgent,
		Timeout:     25 * time.Second,
		Concurrency: 4,
		CacheSize:   256,
		LogLevel:    "info",
	}
}

// FetchConfig extracts the transport settings.
func (c *Config) FetchConfig() FetchConfig {
	return FetchConfig{
		Proxy:     c.Proxy,
		Insecure:  c.Insecure,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
	}
}

// AddFlags registers the shared flags on fs, bound to c.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", c.ConfigPath, "YAML configuration file (env TSMAP_CONFIG)")
	fs.StringVarP(&c.Output, "out", "o", c.Output, "Output directory")
	fs.StringVar(&c.Proxy, "proxy", c.Proxy, "Proxy URL (e.g. http://127.0.0.1:8080)")
	fs.BoolVar(&c.Insecure, "insecure", c.Insecure, "Skip TLS verification, useful with intercepting proxies")
	fs.StringVar(&c.UserAgent, "user-agent", c.UserAgent, "User-Agent header")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "HTTP timeout")
	fs.IntVar(&c.Concurrency, "concurrency", c.Concurrency, "Parallel downloads and writes")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: text|json (default: text on a terminal)")
	fs.BoolVar(&c.NoColor, "no-color", c.NoColor, "Disable colored output")
	fs.SetNormalizeFunc(normalizeFlagName)
}

// normalizeFlagName accepts --output for --out.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "output" {
		name = "out"
	}
	return pflag.NormalizedName(name)
}

// LoadDotEnv loads .env files (by default the one in the working
// directory) without overriding variables already set. Missing files are
// not an error.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Resolve layers file and environment settings under the flags that were
// set explicitly on fs, and returns the effective configuration.
// flagged must be the Config bound to fs through AddFlags.
func Resolve(fs *pflag.FlagSet, flagged *Config, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := DefaultConfig(flagged.defaultOutput(fs))
	path := getenv("TSMAP_CONFIG")
	if fs.Changed("config") {
		path = flagged.ConfigPath
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	fs.Visit(func(f *pflag.Flag) {
		cfg.overlay(flagged, f.Name)
	})
	cfg.ConfigPath = path
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) defaultOutput(fs *pflag.FlagSet) string {
	if f := fs.Lookup("out"); f != nil {
		return f.DefValue
	}
	return c.Output
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var err error
	setString := func(key string, target *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*target = v
		}
	}
	setBool := func(key string, target *bool) {
		v := strings.TrimSpace(getenv(key))
		if v == "" || err != nil {
			return
		}
		b, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			err = fmt.Errorf("%s: %w", key, parseErr)
			return
		}
		*target = b
	}
	setInt := func(key string, target *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" || err != nil {
			return
		}
		n, parseErr := strconv.Atoi(v)
		if parseErr != nil {
			err = fmt.Errorf("%s: %w", key, parseErr)
			return
		}
		*target = n
	}

	setString("TSMAP_OUTPUT", &c.Output)
	setString("TSMAP_PROXY", &c.Proxy)
	setBool("TSMAP_INSECURE", &c.Insecure)
	setString("TSMAP_USER_AGENT", &c.UserAgent)
	if v := strings.TrimSpace(getenv("TSMAP_TIMEOUT")); v != "" && err == nil {
		d, parseErr := time.ParseDuration(v)
		if parseErr != nil {
			err = fmt.Errorf("TSMAP_TIMEOUT: %w", parseErr)
		} else {
			c.Timeout = d
		}
	}
	setInt("TSMAP_CONCURRENCY", &c.Concurrency)
	setInt("TSMAP_CACHE_SIZE", &c.CacheSize)
	setString("TSMAP_LOG_LEVEL", &c.LogLevel)
	setString("TSMAP_LOG_FORMAT", &c.LogFormat)
	if getenv("NO_COLOR") != "" {
		c.NoColor = true
	}
	setBool("TSMAP_SAVE_MAP", &c.SaveMap)
	setBool("TSMAP_SAVE_JS", &c.SaveJS)
	return err
}

// overlay copies the flag named name from flagged into c.
func (c *Config) overlay(flagged *Config, name string) {
	switch name {
	case "config":
	case "out":
		c.Output = flagged.Output
	case "proxy":
		c.Proxy = flagged.Proxy
	case "insecure":
		c.Insecure = flagged.Insecure
	case "user-agent":
		c.UserAgent = flagged.UserAgent
	case "timeout":
		c.Timeout = flagged.Timeout
	case "concurrency":
		c.Concurrency = flagged.Concurrency
	case "cache-size":
		c.CacheSize = flagged.CacheSize
	case "log-level":
		c.LogLevel = flagged.LogLevel
	case "log-format":
		c.LogFormat = flagged.LogFormat
	case "no-color":
		c.NoColor = flagged.NoColor
	case "save-map":
		c.SaveMap = flagged.SaveMap
	case "save-js":
		c.SaveJS = flagged.SaveJS
	case "analyze":
		c.Analyze = flagged.Analyze
	case "clean":
		c.Clean = flagged.Clean
	case "yes":
		c.Yes = flagged.Yes
	default:
		// Flags that are not part of Config (e.g. --map) are read by the
		// command itself.
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be at least 1, got %d", c.CacheSize)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
