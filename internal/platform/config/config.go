package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 20 * time.Second
	defaultPersistenceDriver    = "memory"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultReplayHeader         = "X-Idempotent-Replay"
	defaultFreeShippingMin      = 5000
	defaultFlatShippingFee      = 999
	defaultDraftOrderTTL        = time.Hour
	defaultRulesetPath          = "rulesets/compliance.json"
	defaultRateLimitPerMinute   = 120
	defaultRateLimitBurst       = 30
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Persistence PersistenceConfig
	Firestore   FirestoreConfig
	Idempotency IdempotencyConfig
	Pricing     PricingConfig
	DraftOrders DraftOrderConfig
	Compliance  ComplianceConfig
	RateLimits  RateLimitConfig
	Audit       AuditConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// PersistenceConfig selects the storage backend.
type PersistenceConfig struct {
	Driver string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	DatabaseID   string
	EmulatorHost string
}

// IdempotencyConfig controls the idempotency coordinator.
type IdempotencyConfig struct {
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
	ReplayHeader     string
}

// PricingConfig holds the deterministic pricing inputs. Monetary values are
// minor units of the request currency.
type PricingConfig struct {
	FreeShippingThreshold int64
	FlatShippingFee       int64
	TaxRateBPSByCountry   map[string]int64
	DefaultTaxRateBPS     int64
}

// DraftOrderConfig controls draft-order lifecycle behaviour.
type DraftOrderConfig struct {
	TTL time.Duration
}

// ComplianceConfig locates the rule set consulted by the rule engine.
type ComplianceConfig struct {
	RulesetPath    string
	DefaultCountry string
}

// RateLimitConfig controls per-actor request throttling.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// AuditConfig configures best-effort audit trail publishing.
type AuditConfig struct {
	Topic     string
	ProjectID string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "GATEWAY_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "GATEWAY_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "GATEWAY_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "GATEWAY_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "GATEWAY_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Persistence: PersistenceConfig{
			Driver: strings.ToLower(stringWithDefault(lookup, "GATEWAY_PERSISTENCE_DRIVER", defaultPersistenceDriver)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "GATEWAY_FIRESTORE_PROJECT_ID", ""),
			DatabaseID:   stringWithDefault(lookup, "GATEWAY_FIRESTORE_DATABASE_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "GATEWAY_FIRESTORE_EMULATOR_HOST", ""),
		},
		Idempotency: IdempotencyConfig{
			TTL:              durationWithDefault(lookup, "GATEWAY_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "GATEWAY_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "GATEWAY_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
			ReplayHeader:     stringWithDefault(lookup, "GATEWAY_IDEMPOTENCY_REPLAY_HEADER", defaultReplayHeader),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: int64WithDefault(lookup, "GATEWAY_PRICING_FREE_SHIPPING_THRESHOLD", defaultFreeShippingMin),
			FlatShippingFee:       int64WithDefault(lookup, "GATEWAY_PRICING_FLAT_SHIPPING_FEE", defaultFlatShippingFee),
			TaxRateBPSByCountry:   taxTableWithDefault(lookup, "GATEWAY_PRICING_TAX_RATES"),
			DefaultTaxRateBPS:     int64WithDefault(lookup, "GATEWAY_PRICING_DEFAULT_TAX_RATE_BPS", 0),
		},
		DraftOrders: DraftOrderConfig{
			TTL: durationWithDefault(lookup, "GATEWAY_DRAFT_ORDER_TTL", defaultDraftOrderTTL),
		},
		Compliance: ComplianceConfig{
			RulesetPath:    stringWithDefault(lookup, "GATEWAY_COMPLIANCE_RULESET_PATH", defaultRulesetPath),
			DefaultCountry: strings.ToUpper(stringWithDefault(lookup, "GATEWAY_COMPLIANCE_DEFAULT_COUNTRY", "US")),
		},
		RateLimits: RateLimitConfig{
			PerMinute: intWithDefault(lookup, "GATEWAY_RATELIMIT_PER_MIN", defaultRateLimitPerMinute),
			Burst:     intWithDefault(lookup, "GATEWAY_RATELIMIT_BURST", defaultRateLimitBurst),
		},
		Audit: AuditConfig{
			Topic:     stringWithDefault(lookup, "GATEWAY_AUDIT_TOPIC", ""),
			ProjectID: stringWithDefault(lookup, "GATEWAY_AUDIT_PROJECT_ID", ""),
		},
	}

	if cfg.Audit.ProjectID == "" {
		cfg.Audit.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Persistence.Driver {
	case "memory":
	case "firestore":
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	default:
		missing = append(missing, "Persistence.Driver")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}
	if strings.TrimSpace(cfg.Idempotency.ReplayHeader) == "" {
		missing = append(missing, "Idempotency.ReplayHeader")
	}
	if cfg.Pricing.FreeShippingThreshold < 0 {
		missing = append(missing, "Pricing.FreeShippingThreshold")
	}
	if cfg.Pricing.FlatShippingFee < 0 {
		missing = append(missing, "Pricing.FlatShippingFee")
	}
	if cfg.DraftOrders.TTL <= 0 {
		missing = append(missing, "DraftOrders.TTL")
	}
	if strings.TrimSpace(cfg.Compliance.RulesetPath) == "" {
		missing = append(missing, "Compliance.RulesetPath")
	}
	if cfg.RateLimits.PerMinute <= 0 {
		missing = append(missing, "RateLimits.PerMinute")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// taxTableWithDefault parses "US=800,DE=1900" style country-to-basis-point
// maps, falling back to the built-in table when the variable is unset.
func taxTableWithDefault(lookup func(string) (string, bool), key string) map[string]int64 {
	builtin := map[string]int64{
		"US": 800,
		"DE": 1900,
		"JP": 1000,
		"GB": 2000,
	}

	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return builtin
	}

	values := make(map[string]int64)
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		country := strings.ToUpper(strings.TrimSpace(parts[0]))
		bps, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil || country == "" || bps < 0 {
			continue
		}
		values[country] = bps
	}
	if len(values) == 0 {
		return builtin
	}
	return values
}
