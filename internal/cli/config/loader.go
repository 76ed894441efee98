package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/quantdb/internal/router"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store config in context.
type configKey struct{}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// flagKeys maps flag names to config keys where they differ from the
// kebab-to-snake rule.
var flagKeys = map[string]string{
	"mysql-user":     "mysql.user",
	"mysql-password": "mysql.password",
}

// findConfigFile finds the config file to use.
// Priority: explicit path > quantdb.yaml > quantdb.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"quantdb.yaml", "quantdb.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Defaults. language has none here so that ApplyArgs can tell
	// whether it was given.
	if err := k.Load(confmap.Provider(map[string]any{
		"port":       DefaultPort,
		"web_port":   DefaultWebPort,
		"html_dir":   DefaultHTMLDir,
		"output":     DefaultOutput,
		"quiet":      false,
		"verbose":    false,
		"watch":      false,
		"mysql.user": DefaultUser,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (QUANTDB_ prefix)
	// Transform: QUANTDB_WEB_PORT -> web_port, QUANTDB_MYSQL_USER -> mysql.user
	if err := k.Load(env.Provider("QUANTDB_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			// Only load flags that were explicitly set
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.MySQL.Password = expandEnvVars(cfg.MySQL.Password)

	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "QUANTDB_"))
	if rest, ok := strings.CutPrefix(key, "mysql_"); ok {
		return "mysql." + rest
	}
	return key
}

// ApplyArgs sorts positional arguments into the database and the source
// files to preload. A .duckdb or .db argument opens that database; when
// it is the only argument and no language was configured the session
// starts in DuckDB SQL.
func (c *Config) ApplyArgs(args []string) {
	c.Files = nil
	for _, arg := range args {
		switch strings.ToLower(filepath.Ext(arg)) {
		case ".duckdb", ".db":
			c.Database = arg
			if len(args) == 1 && c.Language == "" {
				c.Language = string(router.DuckDB)
			}
		default:
			c.Files = append(c.Files, arg)
		}
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// WithContext returns a copy of ctx carrying cfg.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from the command context.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	// Return default config if none in context
	return &Config{
		Port:    DefaultPort,
		WebPort: DefaultWebPort,
		HTMLDir: DefaultHTMLDir,
		Output:  DefaultOutput,
		MySQL:   MySQLConfig{User: DefaultUser},
	}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// NewLogger builds the CLI logger: text on w, debug when verbose, warnings
// only when quiet.
func NewLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
