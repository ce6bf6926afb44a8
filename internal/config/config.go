// Package config provides centralized configuration for the task loader.
// Settings come from environment variables (optionally seeded from a .env
// file) with defaults, and are validated once at startup.
package config

import "time"

// Store drivers.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
)

// Write modes.
const (
	ModeUpsert = "upsert"
	ModeInsert = "insert"
)

// Config holds all application configuration.
type Config struct {
	Store    StoreConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Ledger   LedgerConfig
	Sheets   SheetsConfig
	Probe    ProbeConfig
	Logging  LoggingConfig
}

// StoreConfig selects and authenticates the destination collection store.
type StoreConfig struct {
	// Driver is "rest" (Supabase/PostgREST) or "postgres" (default: rest)
	Driver string `env:"STORE_DRIVER" default:"rest"`

	// SupabaseURL is the project base URL, e.g. https://xyz.supabase.co
	SupabaseURL string `env:"SUPABASE_URL"`

	// SupabaseKey is the service key sent as apikey and bearer token
	SupabaseKey string `env:"SUPABASE_KEY" envAlt:"SUPABASE_SERVICE_KEY"`

	// Table overrides the dataset's destination table
	Table string `env:"STORE_TABLE"`
}

// DatabaseConfig holds direct PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required for the postgres driver)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds batching policy.
type UploadConfig struct {
	// BatchSize is the number of records per submit call (default: 50)
	BatchSize int `env:"UPLOAD_BATCH_SIZE" default:"50"`

	// HaltOnBatchFailure stops the run at the first failed batch (default: true)
	HaltOnBatchFailure bool `env:"UPLOAD_HALT_ON_BATCH_FAILURE" default:"true"`

	// PerCallTimeoutSeconds bounds every submit call (default: 10)
	PerCallTimeoutSeconds int `env:"UPLOAD_PER_CALL_TIMEOUT_SECONDS" default:"10"`

	// CandidateTable is an optional YAML file overriding column candidates
	CandidateTable string `env:"UPLOAD_CANDIDATE_TABLE"`

	// WriteMode is "upsert" or "insert" (default: upsert)
	WriteMode string `env:"UPLOAD_WRITE_MODE" default:"upsert"`

	// Dataset is the registered dataset used when none is given (default: dcwf_tasks)
	Dataset string `env:"UPLOAD_DATASET" default:"dcwf_tasks"`
}

// LedgerConfig holds the local run ledger settings.
type LedgerConfig struct {
	Enabled bool   `env:"LEDGER_ENABLED" default:"true"`
	Path    string `env:"LEDGER_PATH" default:".taskload/ledger.db"`
}

// SheetsConfig holds Google Sheets credentials.
type SheetsConfig struct {
	// CredentialsFile is a service-account or installed-app JSON file
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS"`

	// TokenFile caches the OAuth token for installed-app credentials
	TokenFile string `env:"GOOGLE_TOKEN_FILE"`
}

// ProbeConfig holds health probe settings.
type ProbeConfig struct {
	OpenAIKey string        `env:"OPENAI_API_KEY"`
	OpenAIURL string        `env:"OPENAI_MODELS_URL" default:"https://api.openai.com/v1/models"`
	Timeout   time.Duration `env:"PROBE_TIMEOUT" default:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// CallTimeout returns the per-call timeout as a duration.
func (c UploadConfig) CallTimeout() time.Duration {
	return time.Duration(c.PerCallTimeoutSeconds) * time.Second
}

// RESTEndpoint returns the PostgREST base for the configured project.
func (c StoreConfig) RESTEndpoint() string {
	base := c.SupabaseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/rest/v1"
}
