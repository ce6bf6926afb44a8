package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves an environment variable name to its value.
type LookupFunc func(string) string

// Load reads configuration from the process environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	return load(lookup, (*Config).Validate)
}

// LoadLocal is Load for commands that never contact the store: store
// credentials are not required.
func LoadLocal() (*Config, error) {
	return LoadLocalFrom(os.Getenv)
}

// LoadLocalFrom is LoadLocal with an explicit variable source.
func LoadLocalFrom(lookup LookupFunc) (*Config, error) {
	return load(lookup, (*Config).ValidateLocal)
}

func load(lookup LookupFunc, validate func(*Config) error) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct walks nested structs and fills tagged fields.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := strings.TrimSpace(lookup(envName))
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = strings.TrimSpace(lookup(alt))
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setField parses value into field according to its kind.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate reports every configuration problem in one error.
func (c *Config) Validate() error {
	return joinProblems(append(c.storeProblems(), c.localProblems()...))
}

// ValidateLocal is Validate without the store credential checks.
func (c *Config) ValidateLocal() error {
	return joinProblems(c.localProblems())
}

func (c *Config) storeProblems() []string {
	var errs []string

	switch c.Store.Driver {
	case DriverREST:
		if c.Store.SupabaseURL == "" {
			errs = append(errs, "SUPABASE_URL is required for the rest store")
		} else if !strings.HasPrefix(c.Store.SupabaseURL, "http://") && !strings.HasPrefix(c.Store.SupabaseURL, "https://") {
			errs = append(errs, fmt.Sprintf("SUPABASE_URL (%q) must be an http(s) URL", c.Store.SupabaseURL))
		}
		if c.Store.SupabaseKey == "" {
			errs = append(errs, "SUPABASE_KEY is required for the rest store")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres store")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: rest, postgres", c.Store.Driver))
	}

	return errs
}

func (c *Config) localProblems() []string {
	var errs []string

	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	if c.Upload.BatchSize <= 0 {
		errs = append(errs, "UPLOAD_BATCH_SIZE must be positive")
	}
	if c.Upload.PerCallTimeoutSeconds <= 0 {
		errs = append(errs, "UPLOAD_PER_CALL_TIMEOUT_SECONDS must be positive")
	}
	if c.Upload.WriteMode != ModeUpsert && c.Upload.WriteMode != ModeInsert {
		errs = append(errs, fmt.Sprintf("UPLOAD_WRITE_MODE (%q) must be one of: upsert, insert", c.Upload.WriteMode))
	}

	if c.Ledger.Enabled && c.Ledger.Path == "" {
		errs = append(errs, "LEDGER_PATH must be set when the ledger is enabled")
	}

	if c.Probe.Timeout <= 0 {
		errs = append(errs, "PROBE_TIMEOUT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	return errs
}

func joinProblems(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a loggable representation with credentials masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Store: {Driver: %q, SupabaseURL: %q, SupabaseKey: %s, Table: %q}, ",
		c.Store.Driver, c.Store.SupabaseURL, mask(c.Store.SupabaseKey), c.Store.Table)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d}, ", mask(c.Database.URL), c.Database.MaxConns)
	fmt.Fprintf(&b, "Upload: {BatchSize: %d, HaltOnBatchFailure: %v, PerCallTimeoutSeconds: %d, WriteMode: %q, Dataset: %q}, ",
		c.Upload.BatchSize, c.Upload.HaltOnBatchFailure, c.Upload.PerCallTimeoutSeconds, c.Upload.WriteMode, c.Upload.Dataset)
	fmt.Fprintf(&b, "Ledger: {Enabled: %v, Path: %q}, ", c.Ledger.Enabled, c.Ledger.Path)
	fmt.Fprintf(&b, "Probe: {OpenAIKey: %s}, ", mask(c.Probe.OpenAIKey))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
