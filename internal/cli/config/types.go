// Package config provides configuration management for the QuantDB CLI.
package config

// Default configuration values.
const (
	DefaultLanguage = "py"
	DefaultPort     = 3306
	DefaultWebPort  = 8080
	DefaultHTMLDir  = "html"
	DefaultOutput   = "table"
	DefaultUser     = "root"
)

// MySQLConfig holds the MySQL protocol server credentials.
type MySQLConfig struct {
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// Config holds all CLI configuration options.
type Config struct {
	Language    string         `koanf:"language"`
	Command     string         `koanf:"command"`
	Port        int            `koanf:"port"`
	WebPort     int            `koanf:"web_port"`
	Quiet       bool           `koanf:"quiet"`
	Verbose     bool           `koanf:"verbose"`
	Database    string         `koanf:"database"`
	HTMLDir     string         `koanf:"html_dir"`
	Watch       bool           `koanf:"watch"`
	Output      string         `koanf:"output"`
	HistoryFile string         `koanf:"history_file"`
	MySQL       MySQLConfig    `koanf:"mysql"`
	DuckDB      map[string]any `koanf:"duckdb"`

	// Files are the positional source files to preload. Set by ApplyArgs.
	Files []string `koanf:"-"`
}
