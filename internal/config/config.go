package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the dispatch engine. It is
// built once at startup and passed by reference into the orchestrator and
// adapters, so no component reads the environment at dispatch time.
type Config struct {
	App      AppConfig
	Dispatch DispatchConfig
	BulkSMS  BulkSMSConfig
	Mimo     MimoConfig
	Kafka    KafkaConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// DispatchConfig tunes the orchestrator and the HTTP boundary.
type DispatchConfig struct {
	// DefaultSenderID is the platform brand code used when sender id
	// resolution yields nothing.
	DefaultSenderID string
	// ProviderTimeoutSeconds bounds each outbound provider call.
	ProviderTimeoutSeconds int
	// MaxInFlight bounds concurrent dispatches served by the HTTP
	// boundary.
	MaxInFlight int
	// StaticOverride is the administrative gateway override applied when
	// no Redis override source is configured.
	StaticOverride string
}

// BulkSMSConfig stores the credentials and endpoint for the bulksms
// gateway. The token pair is sent as HTTP basic authentication.
type BulkSMSConfig struct {
	TokenID     string
	TokenSecret string
	BaseURL     string
}

// MimoConfig stores the credentials and endpoints for the mimo gateway.
// Token is either a bare v2 bearer token or a colon-separated
// "application_id:application_token" pair, in which case only the legacy
// protocol is used. ApplicationID supplements a bare token when the adapter
// has to fall back to the legacy protocol.
type MimoConfig struct {
	Token         string
	ApplicationID string
	V2BaseURL     string
	V1BaseURL     string
}

// KafkaConfig defines the optional audit event stream. Leaving Brokers
// empty disables Kafka publishing.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// PostgresConfig defines the optional attempt history and credit ledger
// store. Leaving DSN empty disables persistence.
type PostgresConfig struct {
	DSN string
}

// RedisConfig defines the optional administrative override store. Leaving
// Addr empty disables it.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	OverrideKey string
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Dispatch.DefaultSenderID = ldr.getString("DEFAULT_SENDER_ID", "LUSOSMS", false)
	cfg.Dispatch.ProviderTimeoutSeconds = ldr.getInt("PROVIDER_TIMEOUT_SECONDS", 15, false)
	cfg.Dispatch.MaxInFlight = ldr.getInt("DISPATCH_MAX_IN_FLIGHT", 64, false)
	cfg.Dispatch.StaticOverride = ldr.getString("GATEWAY_OVERRIDE", "", false)

	cfg.BulkSMS.TokenID = ldr.getString("BULKSMS_TOKEN_ID", "", true)
	cfg.BulkSMS.TokenSecret = ldr.getString("BULKSMS_TOKEN_SECRET", "", true)
	cfg.BulkSMS.BaseURL = ldr.getString("BULKSMS_BASE_URL", "https://api.bulksms.com", false)

	cfg.Mimo.Token = ldr.getString("MIMO_TOKEN", "", true)
	cfg.Mimo.ApplicationID = ldr.getString("MIMO_APPLICATION_ID", "", false)
	cfg.Mimo.V2BaseURL = ldr.getString("MIMO_V2_BASE_URL", "https://api.mimosms.ao/v2/message", false)
	cfg.Mimo.V1BaseURL = ldr.getString("MIMO_V1_BASE_URL", "https://api.mimosms.ao/v1", false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.AuditTopic = ldr.getString("KAFKA_AUDIT_TOPIC", "sms.dispatch.audit", false)

	cfg.Postgres.DSN = ldr.getString("POSTGRES_DSN", "", false)

	cfg.Redis.Addr = ldr.getString("REDIS_ADDR", "", false)
	cfg.Redis.Password = ldr.getString("REDIS_PASSWORD", "", false)
	cfg.Redis.DB = ldr.getInt("REDIS_DB", 0, false)
	cfg.Redis.OverrideKey = ldr.getString("REDIS_OVERRIDE_KEY", "dispatch:gateway:override", false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	val, ok := os.LookupEnv(key)
	if ok {
		val = strings.TrimSpace(val)
	}
	if !ok || val == "" {
		if required {
			l.addError(fmt.Sprintf("%s is required", key))
		}
		return def
	}
	return val
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
