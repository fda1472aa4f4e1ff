package config

const (
	defaultDataDir            = "~/.local/share/bindery/datasets"
	defaultLogDir             = "~/.local/share/bindery/logs"
	defaultDatabasePath       = "~/.local/share/bindery/bindery.db"
	defaultMappingPath        = "~/.config/bindery/etl_mapping.json"
	defaultBatchSize          = 500
	defaultWriteRetries       = 3
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultConcurrency        = 4
	defaultProviderTimeout    = 30
	defaultRetryAttempts      = 3
	defaultGoogleBooksBaseURL = "https://www.googleapis.com/books/v1"
	defaultGoogleBooksRate    = 1.0
	defaultOpenLibraryBaseURL = "https://openlibrary.org"
	defaultOpenLibraryRate    = 2.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		ETL: ETL{
			MappingPath:      defaultMappingPath,
			DefaultBatchSize: defaultBatchSize,
			WriteRetries:     defaultWriteRetries,
		},
		Augment: Augment{
			Concurrency:            defaultConcurrency,
			ProviderOrder:          []string{"googlebooks", "openlibrary"},
			ProviderTimeoutSeconds: defaultProviderTimeout,
			RetryAttempts:          defaultRetryAttempts,
			GoogleBooks: GoogleBooks{
				Enabled:       true,
				BaseURL:       defaultGoogleBooksBaseURL,
				RatePerSecond: defaultGoogleBooksRate,
			},
			OpenLibrary: OpenLibrary{
				Enabled:       true,
				BaseURL:       defaultOpenLibraryBaseURL,
				RatePerSecond: defaultOpenLibraryRate,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
