package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings for delta-kusto. Job definitions live in the
// parameter file; Config only covers process-level concerns.
type Config struct {
	Environment string
	Log         LogConfig
	Telemetry   TelemetryConfig
	HTTP        HTTPConfig
	Login       LoginConfig
	Scripts     ScriptConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type TelemetryConfig struct {
	ServiceName string
}

type HTTPConfig struct {
	Timeout time.Duration
	// UserAgent is sent as the Kusto application name.
	UserAgent string
	// Retries bounds re-sends of throttled or 5xx management requests.
	Retries int
}

type LoginConfig struct {
	// Authority is the identity provider base URL; the tenant is appended.
	Authority string
	// StaticTokens maps a cluster URI to a bearer token, for environments
	// where tokens are minted outside the process.
	StaticTokens map[string]string
}

type ScriptConfig struct {
	// Extensions filters folder sources that don't list their own.
	Extensions []string
}

// Load loads config from environment for now. The path is accepted for
// symmetry with the CLI config flag, which viper handles.
func Load(_ string) (*Config, error) {
	cfg := &Config{
		Environment: getenv("DELTA_KUSTO_ENV", "dev"),
		Log: LogConfig{
			Level:  getenv("DELTA_KUSTO_LOG_LEVEL", "info"),
			Format: getenv("DELTA_KUSTO_LOG_FORMAT", "text"),
		},
		Telemetry: TelemetryConfig{
			ServiceName: getenv("DELTA_KUSTO_OTEL_SERVICE", "delta-kusto"),
		},
		HTTP: HTTPConfig{
			Timeout:   getenvDuration("DELTA_KUSTO_HTTP_TIMEOUT", 2*time.Minute),
			UserAgent: getenv("DELTA_KUSTO_USER_AGENT", "delta-kusto"),
			Retries:   getenvInt("DELTA_KUSTO_HTTP_RETRIES", 2),
		},
		Login: LoginConfig{
			Authority:    strings.TrimRight(getenv("DELTA_KUSTO_LOGIN_AUTHORITY", "https://login.microsoftonline.com"), "/"),
			StaticTokens: getenvKeyValueMap("DELTA_KUSTO_TOKENS"),
		},
		Scripts: ScriptConfig{
			Extensions: getenvCSV("DELTA_KUSTO_SCRIPT_EXTENSIONS", ".kql,.csl"),
		},
	}
	return cfg, nil
}

// Debug reports whether verbose logging is enabled.
func (c *Config) Debug() bool {
	return c != nil && (strings.EqualFold(c.Log.Level, "debug") || getenvBool("DELTA_KUSTO_DEBUG", false))
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		switch value {
		case "1", "true", "TRUE", "yes", "YES":
			return true
		case "0", "false", "FALSE", "no", "NO":
			return false
		default:
			return fallback
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvCSV(key, fallback string) []string {
	value := getenv(key, fallback)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trim := strings.TrimSpace(part)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}

func getenvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getenvKeyValueMap parses "k1=v1,k2=v2"; only the first '=' of an item
// separates key and value.
func getenvKeyValueMap(key string) map[string]string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		pair := strings.SplitN(item, "=", 2)
		k := strings.TrimSpace(pair[0])
		if k == "" {
			continue
		}
		val := ""
		if len(pair) > 1 {
			val = strings.TrimSpace(pair[1])
		}
		out[k] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
