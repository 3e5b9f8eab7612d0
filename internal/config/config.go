package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. STAR_INFINITY_ADDR.
const EnvPrefix = "STAR_INFINITY"

// Config holds all server configuration.
type Config struct {
	Addr           string // listen address, e.g. ":4000"
	ManagementAddr string // separate listener for /metrics and /readyz (empty = disabled)
	Env            string // "development" or "production"

	// Storage.
	DBDriver  string        // "sqlite" or "postgres"
	DB        string        // SQLite path or Postgres DSN
	SeedFile  string        // YAML seed applied at startup (empty = none)
	DBTimeout time.Duration // bound on each role lookup and resolver query

	// Auth mode: "gotrue" (default), "jwt", "oidc" or "google".
	AuthMode        string
	IdentityTimeout time.Duration // bound on each identity provider call
	TokenTTL        time.Duration // lifetime of self-issued tokens (jwt mode)
	// GoTrue settings (required when AuthMode == "gotrue").
	GoTrueURL     string
	GoTrueAnonKey string
	// JWT settings (required when AuthMode == "jwt").
	JWTSigningKey string // HMAC secret string or path to PEM public key file
	JWTIssuer     string
	JWTAudience   string
	JWTEmailClaim string
	// OIDC settings (required when AuthMode == "oidc").
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCScopes       string // comma-separated scopes beyond openid
	// Google settings (required when AuthMode == "google").
	GoogleClientID       string
	GoogleAllowedDomains string // comma-separated hosted domains

	// Observability.
	LogFormat       string // "json" (default) or "text"
	LogFile         string // rotated log file (empty = stdout only)
	AuditLogs       bool
	OTelServiceName string  // enables OTLP tracing when set
	OTelSampleRatio float64 // fraction of new traces recorded
}

// RegisterFlags declares every configuration flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":4000", "listen address")
	fs.String("management-addr", "", "separate listen address for metrics and readiness (empty = serve on addr)")
	fs.String("env", "development", "environment: development or production")

	fs.String("db-driver", "sqlite", "database driver: sqlite or postgres")
	fs.String("db", "star-infinity.db", "SQLite database path or Postgres DSN")
	fs.String("seed-file", "", "YAML file with administrators, instructors and courses to seed")
	fs.Duration("db-timeout", 5*time.Second, "timeout for a single database lookup")

	fs.String("auth-mode", "gotrue", "identity provider: gotrue, jwt, oidc or google")
	fs.Duration("identity-timeout", 5*time.Second, "timeout for a single identity provider call")
	fs.Duration("token-ttl", 24*time.Hour, "lifetime of tokens issued in jwt mode")
	fs.String("gotrue-url", "", "GoTrue (Supabase) project URL")
	fs.String("gotrue-anon-key", "", "GoTrue anon API key")
	fs.String("jwt-signing-key", "", "HMAC secret or path to PEM public key for JWT verification")
	fs.String("jwt-issuer", "", "expected JWT issuer claim (optional)")
	fs.String("jwt-audience", "", "expected JWT audience claim (optional)")
	fs.String("jwt-email-claim", "email", "JWT claim holding the account email")
	fs.String("oidc-issuer", "", "OIDC provider discovery URL")
	fs.String("oidc-client-id", "", "OIDC OAuth2 client ID")
	fs.String("oidc-client-secret", "", "OIDC OAuth2 client secret")
	fs.String("oidc-scopes", "profile,email", "additional OIDC scopes beyond openid")
	fs.String("google-client-id", "", "Google OAuth2 client ID for ID token audience")
	fs.String("google-allowed-domains", "", "comma-separated allowed hosted domains")

	fs.String("log-format", "json", "log format: json or text")
	fs.String("log-file", "", "also write logs to this file, rotated by size")
	fs.Bool("audit-logs", true, "enable structured audit logging")
	fs.String("otel-service-name", "", "OpenTelemetry service name (empty = tracing disabled)")
	fs.Float64("otel-sample-ratio", 1, "fraction of new traces to record, 0 to 1")
}

// NewViper returns a viper instance bound to fs with STAR_INFINITY_* env overrides.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Addr:                 v.GetString("addr"),
		ManagementAddr:       v.GetString("management-addr"),
		Env:                  v.GetString("env"),
		DBDriver:             v.GetString("db-driver"),
		DB:                   v.GetString("db"),
		SeedFile:             v.GetString("seed-file"),
		DBTimeout:            v.GetDuration("db-timeout"),
		AuthMode:             v.GetString("auth-mode"),
		IdentityTimeout:      v.GetDuration("identity-timeout"),
		TokenTTL:             v.GetDuration("token-ttl"),
		GoTrueURL:            v.GetString("gotrue-url"),
		GoTrueAnonKey:        v.GetString("gotrue-anon-key"),
		JWTSigningKey:        v.GetString("jwt-signing-key"),
		JWTIssuer:            v.GetString("jwt-issuer"),
		JWTAudience:          v.GetString("jwt-audience"),
		JWTEmailClaim:        v.GetString("jwt-email-claim"),
		OIDCIssuer:           v.GetString("oidc-issuer"),
		OIDCClientID:         v.GetString("oidc-client-id"),
		OIDCClientSecret:     v.GetString("oidc-client-secret"),
		OIDCScopes:           v.GetString("oidc-scopes"),
		GoogleClientID:       v.GetString("google-client-id"),
		GoogleAllowedDomains: v.GetString("google-allowed-domains"),
		LogFormat:            v.GetString("log-format"),
		LogFile:              v.GetString("log-file"),
		AuditLogs:            v.GetBool("audit-logs"),
		OTelServiceName:      v.GetString("otel-service-name"),
		OTelSampleRatio:      v.GetFloat64("otel-sample-ratio"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the selected modes have the settings they need.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown db-driver %q", c.DBDriver))
	}
	if c.DB == "" {
		errs = append(errs, errors.New("db is required"))
	}
	switch c.AuthMode {
	case "gotrue":
		if c.GoTrueURL == "" || c.GoTrueAnonKey == "" {
			errs = append(errs, errors.New("gotrue-url and gotrue-anon-key are required in gotrue mode"))
		}
	case "jwt":
		if c.JWTSigningKey == "" {
			errs = append(errs, errors.New("jwt-signing-key is required in jwt mode"))
		}
	case "oidc":
		if c.OIDCIssuer == "" || c.OIDCClientID == "" {
			errs = append(errs, errors.New("oidc-issuer and oidc-client-id are required in oidc mode"))
		}
	case "google":
		if c.GoogleClientID == "" {
			errs = append(errs, errors.New("google-client-id is required in google mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth-mode %q", c.AuthMode))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log-format %q", c.LogFormat))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("otel-sample-ratio %v is outside [0, 1]", c.OTelSampleRatio))
	}
	return errors.Join(errs...)
}

// Production reports whether the server runs with production defaults.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// SplitList splits a comma-separated flag value, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
