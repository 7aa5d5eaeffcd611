// Package config handles configuration loading from CLI flags, environment variables, and TOML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

// Config holds all configuration settings for the vega runtime.
type Config struct {
	Assets  AssetsConfig  `toml:"assets"`
	Lua     LuaConfig     `toml:"lua"`
	Logging LoggingConfig `toml:"logging"`

	logOnce sync.Once
	logOut  io.Writer
	logger  *log.Logger
}

// AssetsConfig selects where the asset store reads from.
type AssetsConfig struct {
	Dir string `toml:"dir"` // Read assets from this directory instead of the bundle
}

// LuaConfig holds Lua runtime settings.
type LuaConfig struct {
	Entry       string    `toml:"entry"`        // Entry point script run by "vega run"
	ErrorMode   ErrorMode `toml:"error_mode"`   // What a failed asset load does to require()
	PackagePath string    `toml:"package_path"` // Overrides package.path when set
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `toml:"level"`     // "debug", "info", "warn", "error"
	Verbosity int    `toml:"verbosity"` // 0=errors, 1=lifecycle, 2=resolution, 3=directory entries
}

// ErrorMode controls how asset load failures reach the caller of require().
type ErrorMode string

const (
	// ErrorRaise reports the failure and raises it, so require() fails.
	ErrorRaise ErrorMode = "raise"
	// ErrorReport only reports the failure; require() yields a placeholder.
	ErrorReport ErrorMode = "report"
)

// ParseErrorMode validates an error mode name.
func ParseErrorMode(s string) (ErrorMode, error) {
	switch m := ErrorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ErrorRaise, ErrorReport:
		return m, nil
	default:
		return "", fmt.Errorf("invalid error mode %q (want %q or %q)", s, ErrorRaise, ErrorReport)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for ErrorMode.
func (m *ErrorMode) UnmarshalText(text []byte) error {
	parsed, err := ParseErrorMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Lua: LuaConfig{
			Entry:     "main",
			ErrorMode: ErrorRaise,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Verbosity: 0,
		},
	}
}

// Flags are the command line settings. Zero values mean "not given".
type Flags struct {
	ConfigPath  string
	Dir         string
	Entry       string
	ErrorMode   string
	PackagePath string
	LogLevel    string
	Verbosity   int
}

// Register adds the flags to fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Config file (default: config/config.toml)")
	fs.StringVar(&f.Dir, "dir", "", "Read assets from directory instead of the bundle")
	fs.StringVar(&f.Entry, "entry", "", "Entry point script (default: main)")
	fs.StringVar(&f.ErrorMode, "error-mode", "", "Asset load failures: raise or report")
	fs.StringVar(&f.PackagePath, "package-path", "", "Override package.path for the built-in file loader")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.CountVarP(&f.Verbosity, "verbose", "v", "Verbosity level (use -v, -vv, or -vvv)")
}

// Load loads configuration from flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults
func Load(flags Flags) (*Config, error) {
	cfg := DefaultConfig()

	configPath := flags.ConfigPath
	explicit := configPath != ""
	if !explicit {
		configPath = filepath.Join("config", "config.toml")
		if flags.Dir != "" {
			configPath = filepath.Join(flags.Dir, "config", "config.toml")
		}
	}
	if err := cfg.loadTOML(configPath); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if flags.Dir != "" {
		cfg.Assets.Dir = flags.Dir
	}
	if flags.Entry != "" {
		cfg.Lua.Entry = flags.Entry
	}
	if flags.ErrorMode != "" {
		mode, err := ParseErrorMode(flags.ErrorMode)
		if err != nil {
			return nil, err
		}
		cfg.Lua.ErrorMode = mode
	}
	if flags.PackagePath != "" {
		cfg.Lua.PackagePath = flags.PackagePath
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.Verbosity > 0 {
		cfg.Logging.Verbosity = flags.Verbosity
	}

	if _, err := log.ParseLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() error {
	if v := os.Getenv("VEGA_ASSETS_DIR"); v != "" {
		c.Assets.Dir = v
	}
	if v := os.Getenv("VEGA_ENTRY"); v != "" {
		c.Lua.Entry = v
	}
	if v := os.Getenv("VEGA_ERROR_MODE"); v != "" {
		mode, err := ParseErrorMode(v)
		if err != nil {
			return fmt.Errorf("VEGA_ERROR_MODE: %w", err)
		}
		c.Lua.ErrorMode = mode
	}
	if v := os.Getenv("VEGA_PACKAGE_PATH"); v != "" {
		c.Lua.PackagePath = v
	}
	if v := os.Getenv("VEGA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VEGA_VERBOSITY"); v != "" {
		verbosity, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VEGA_VERBOSITY: %w", err)
		}
		c.Logging.Verbosity = verbosity
	}
	return nil
}

// Verbosity returns the configured verbosity level.
func (c *Config) Verbosity() int {
	return c.Logging.Verbosity
}
