// Package config loads the fieldmap application configuration.
//
// Priority: defaults -> fieldmap.toml -> FIELDMAP_* environment -> CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "fieldmap.toml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	Extract  ExtractConfig  `toml:"extract"`
	PDF      PDFConfig      `toml:"pdf"`
	Output   OutputConfig   `toml:"output"`
	Cache    CacheConfig    `toml:"cache"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
	Profiles ProfilesConfig `toml:"profiles"`
	Watch    WatchConfig    `toml:"watch"`
}

// ExtractConfig holds parser choices. Empty matching fields defer to the
// selected profile.
type ExtractConfig struct {
	Profile      string `toml:"profile" validate:"required"`
	HeaderMode   string `toml:"header_mode" validate:"omitempty,oneof=strict permissive"`
	NameCase     string `toml:"name_case" validate:"omitempty,oneof=upper-snake preserve"`
	Accumulation string `toml:"accumulation" validate:"omitempty,oneof=single queue"`
	Workers      int    `toml:"workers" validate:"gte=1,lte=64"`
}

// PDFConfig controls PDF text extraction.
type PDFConfig struct {
	Backend      string  `toml:"backend" validate:"oneof=rows content"`
	RowTolerance float64 `toml:"row_tolerance" validate:"gt=0,lte=20"`
	Pages        string  `toml:"pages"` // e.g. "1-12"; empty means all pages
}

type OutputConfig struct {
	Format string `toml:"format" validate:"oneof=csv json sqlite pdf"`
	Dir    string `toml:"dir" validate:"required"`
}

// CacheConfig controls the badger cache of extracted PDF text.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Output string `toml:"output" validate:"oneof=console file both"`
	File   string `toml:"file" validate:"required_unless=Output console"`
	// MaxSizeMB and MaxBackups apply to the rotating file writer.
	MaxSizeMB  int64 `toml:"max_size_mb" validate:"gte=1"`
	MaxBackups int   `toml:"max_backups" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
	// MaxBodyMB bounds uploaded documents.
	MaxBodyMB int64 `toml:"max_body_mb" validate:"gte=1"`
	// RatePerSecond limits extraction requests; 0 disables limiting.
	RatePerSecond float64 `toml:"rate_per_second" validate:"gte=0"`
	Burst         int     `toml:"burst" validate:"gte=1"`
}

type ProfilesConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// WatchConfig drives "fieldmap watch".
type WatchConfig struct {
	InputDir  string `toml:"input_dir" validate:"required"`
	OutputDir string `toml:"output_dir" validate:"required"`
	// Rescan is a cron expression for periodic full rescans, e.g. "@every 10m".
	Rescan string `toml:"rescan"`
}

// NewDefaultConfig returns the configuration used when no file exists.
func NewDefaultConfig() *Config {
	return &Config{
		Extract: ExtractConfig{
			Profile: "sec-form-d",
			Workers: 1,
		},
		PDF: PDFConfig{
			Backend:      "rows",
			RowTolerance: 2.0,
		},
		Output: OutputConfig{
			Format: "csv",
			Dir:    "output",
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".fieldmap/cache",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     "console",
			File:       ".fieldmap/fieldmap.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Server: ServerConfig{
			Addr:          ":8080",
			MaxBodyMB:     32,
			RatePerSecond: 5,
			Burst:         10,
		},
		Profiles: ProfilesConfig{
			Dir: "profiles",
		},
		Watch: WatchConfig{
			InputDir:  "input",
			OutputDir: "output",
		},
	}
}

// Load reads configuration from path. An empty path tries DefaultFile and
// falls back to defaults when it does not exist.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file; defaults apply
	default:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies FIELDMAP_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIELDMAP_PROFILE"); v != "" {
		cfg.Extract.Profile = v
	}
	if v := os.Getenv("FIELDMAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FIELDMAP_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("FIELDMAP_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("FIELDMAP_CACHE"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = enabled
		}
	}
	if v := os.Getenv("FIELDMAP_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FIELDMAP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extract.Workers = n
		}
	}
}

var validate = validator.New()

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Watch.Rescan != "" {
		if _, err := cron.ParseStandard(c.Watch.Rescan); err != nil {
			return fmt.Errorf("%w: watch.rescan: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Marshal encodes the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Write saves the configuration to path.
func (c *Config) Write(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}
