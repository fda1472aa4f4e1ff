package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"bindery/internal/augment"
	"bindery/internal/augment/clitool"
	"bindery/internal/augment/googlebooks"
	"bindery/internal/augment/openlibrary"
	"bindery/internal/config"
	"bindery/internal/docstore"
	"bindery/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) buildLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewWithLogDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
}

func (c *commandContext) openStore() (*docstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return docstore.Open(cfg.Paths.DatabasePath)
}

// buildProviders assembles the provider chain in configured order. Disabled
// builtin providers are skipped; an unknown name is a configuration error
// (config validation already rejects it, this guards direct callers).
func buildProviders(cfg *config.Config, logger *slog.Logger) ([]augment.Provider, error) {
	cliByName := map[string]config.CLIProvider{}
	for _, entry := range cfg.Augment.CLIProviders {
		cliByName[strings.ToLower(entry.Name)] = entry
	}

	var providers []augment.Provider
	for _, name := range cfg.Augment.ProviderOrder {
		switch name {
		case "googlebooks":
			if cfg.Augment.GoogleBooks.Enabled {
				providers = append(providers, googlebooks.New(cfg.Augment.GoogleBooks, nil, logger))
			}
		case "openlibrary":
			if cfg.Augment.OpenLibrary.Enabled {
				providers = append(providers, openlibrary.New(cfg.Augment.OpenLibrary, nil, logger))
			}
		default:
			entry, ok := cliByName[name]
			if !ok {
				return nil, fmt.Errorf("provider_order references unknown provider %q", name)
			}
			provider, err := clitool.New(entry, logger)
			if err != nil {
				return nil, err
			}
			providers = append(providers, provider)
		}
	}
	return providers, nil
}
