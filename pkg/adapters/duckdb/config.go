package duckdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration, decoded from the duckdb
// section of the configuration file.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings applied with SET at connect time (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for reading remote files from dk> queries.
type SecretConfig struct {
	// Type: "s3", "gcs", "r2", "azure"
	Type string `mapstructure:"type"`

	// Provider: "config" or "credential_chain"
	Provider string `mapstructure:"provider"`

	Region   string `mapstructure:"region,omitempty"`
	Scope    any    `mapstructure:"scope,omitempty"`
	KeyID    string `mapstructure:"key_id,omitempty"`
	Secret   string `mapstructure:"secret,omitempty"`
	Endpoint string `mapstructure:"endpoint,omitempty"`
	URLStyle string `mapstructure:"url_style,omitempty"`
	UseSSL   *bool  `mapstructure:"use_ssl,omitempty"`
}

// parseParams decodes raw params. Scalar settings are accepted in any
// form and stored as strings.
func parseParams(raw map[string]any) (*Params, error) {
	params := &Params{}
	if len(raw) == 0 {
		return params, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           params,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return params, nil
}

// setupStatements returns the statements that apply params to a fresh
// connection, in order: extensions, settings, secrets.
func (p *Params) setupStatements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, quoteLiteral(p.Settings[k])))
	}

	for i, s := range p.Secrets {
		stmts = append(stmts, s.createSQL(fmt.Sprintf("quantdb_secret_%d", i)))
	}
	return stmts
}

func (s SecretConfig) createSQL(name string) string {
	opts := []string{"TYPE " + s.Type}
	add := func(key, val string) {
		if val != "" {
			opts = append(opts, key+" "+quoteLiteral(val))
		}
	}
	if s.Provider != "" {
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	add("KEY_ID", s.KeyID)
	add("SECRET", s.Secret)
	add("REGION", s.Region)
	add("ENDPOINT", s.Endpoint)
	add("URL_STYLE", s.URLStyle)
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	switch scope := s.Scope.(type) {
	case string:
		add("SCOPE", scope)
	case []any:
		for _, sc := range scope {
			add("SCOPE", fmt.Sprint(sc))
		}
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)", name, strings.Join(opts, ", "))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
