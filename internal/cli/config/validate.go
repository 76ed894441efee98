package config

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/quantdb/internal/render"
	"github.com/leapstack-labs/quantdb/internal/router"
)

// Validate checks if the configuration is valid. A port of 0 disables
// that server.
func (c *Config) Validate() error {
	if c.Language != "" {
		if _, err := router.ParseLang(c.Language); err != nil {
			return err
		}
	}
	if err := validatePort("port", c.Port); err != nil {
		return err
	}
	if err := validatePort("web_port", c.WebPort); err != nil {
		return err
	}
	if c.Port != 0 && c.Port == c.WebPort {
		return fmt.Errorf("port and web_port must differ, both are %d", c.Port)
	}
	if _, err := render.ParseFormat(c.Output); err != nil {
		return err
	}
	if c.Port != 0 && c.MySQL.User == "" {
		return fmt.Errorf("mysql.user is required when the MySQL server is enabled")
	}
	return nil
}

// ValidateFiles checks that every preload file exists.
func (c *Config) ValidateFiles() error {
	for _, f := range c.Files {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("source file %s: %w\nHint: positional arguments are files to run at startup", f, err)
		}
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s must be between 0 and 65535, got %d", name, port)
	}
	return nil
}
