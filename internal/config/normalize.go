package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeETL(); err != nil {
		return err
	}
	c.normalizeAugment()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeETL() error {
	var err error
	if strings.TrimSpace(c.ETL.MappingPath) == "" {
		c.ETL.MappingPath = defaultMappingPath
	}
	if c.ETL.MappingPath, err = expandPath(c.ETL.MappingPath); err != nil {
		return fmt.Errorf("etl.mapping_path: %w", err)
	}
	if c.ETL.DefaultBatchSize <= 0 {
		c.ETL.DefaultBatchSize = defaultBatchSize
	}
	if c.ETL.WriteRetries <= 0 {
		c.ETL.WriteRetries = defaultWriteRetries
	}
	if c.ETL.SampleRows < 0 {
		c.ETL.SampleRows = 0
	}
	return nil
}

func (c *Config) normalizeAugment() {
	if c.Augment.Concurrency <= 0 {
		c.Augment.Concurrency = defaultConcurrency
	}
	if c.Augment.ProviderTimeoutSeconds <= 0 {
		c.Augment.ProviderTimeoutSeconds = defaultProviderTimeout
	}
	if c.Augment.RetryAttempts <= 0 {
		c.Augment.RetryAttempts = defaultRetryAttempts
	}
	if c.Augment.GoogleBooks.APIKey == "" {
		c.Augment.GoogleBooks.APIKey = os.Getenv("GOOGLE_BOOKS_API_KEY")
	}
	if strings.TrimSpace(c.Augment.GoogleBooks.BaseURL) == "" {
		c.Augment.GoogleBooks.BaseURL = defaultGoogleBooksBaseURL
	}
	if c.Augment.GoogleBooks.RatePerSecond <= 0 {
		c.Augment.GoogleBooks.RatePerSecond = defaultGoogleBooksRate
	}
	if strings.TrimSpace(c.Augment.OpenLibrary.BaseURL) == "" {
		c.Augment.OpenLibrary.BaseURL = defaultOpenLibraryBaseURL
	}
	if c.Augment.OpenLibrary.RatePerSecond <= 0 {
		c.Augment.OpenLibrary.RatePerSecond = defaultOpenLibraryRate
	}
	for i := range c.Augment.CLIProviders {
		p := &c.Augment.CLIProviders[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Command = strings.TrimSpace(p.Command)
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = c.Augment.ProviderTimeoutSeconds
		}
	}
	order := make([]string, 0, len(c.Augment.ProviderOrder))
	for _, name := range c.Augment.ProviderOrder {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			order = append(order, name)
		}
	}
	c.Augment.ProviderOrder = order
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
