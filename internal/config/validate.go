package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateAugment()
}

func (c *Config) validatePaths() error {
	if c.Paths.DatabasePath == "" {
		return errors.New("paths.database_path must be set")
	}
	if c.ETL.MappingPath == "" {
		return errors.New("etl.mapping_path must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateAugment() error {
	known := map[string]bool{
		"googlebooks": true,
		"openlibrary": true,
	}
	seen := map[string]bool{}
	for _, p := range c.Augment.CLIProviders {
		if p.Name == "" {
			return errors.New("augment.cli_providers entries must set name")
		}
		name := strings.ToLower(p.Name)
		if known[name] || seen[name] {
			return fmt.Errorf("augment.cli_providers name %q is already taken", p.Name)
		}
		if p.Command == "" {
			return fmt.Errorf("augment.cli_providers %q must set command", p.Name)
		}
		switch p.Parser {
		case "calibre_opf", "json":
		default:
			return fmt.Errorf("augment.cli_providers %q parser must be calibre_opf or json, got %q", p.Name, p.Parser)
		}
		seen[name] = true
	}
	for _, name := range c.Augment.ProviderOrder {
		if !known[name] && !seen[name] {
			return fmt.Errorf("augment.provider_order references unknown provider %q", name)
		}
	}
	return nil
}
