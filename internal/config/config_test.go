package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	v, err := NewViper(fs)
	require.NoError(t, err)
	return Load(v)
}

func TestLoad_FlagsAndDefaults(t *testing.T) {
	c, err := load(t, "--auth-mode=jwt", "--jwt-signing-key=secret", "--db-timeout=2s")
	require.NoError(t, err)
	assert.Equal(t, ":4000", c.Addr)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 2*time.Second, c.DBTimeout)
	assert.Equal(t, 5*time.Second, c.IdentityTimeout)
	assert.Equal(t, "email", c.JWTEmailClaim)
	assert.True(t, c.AuditLogs)
	assert.Equal(t, 1.0, c.OTelSampleRatio)
	assert.False(t, c.Production())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STAR_INFINITY_AUTH_MODE", "google")
	t.Setenv("STAR_INFINITY_GOOGLE_CLIENT_ID", "client.apps.googleusercontent.com")
	t.Setenv("STAR_INFINITY_ENV", "production")
	t.Setenv("STAR_INFINITY_IDENTITY_TIMEOUT", "750ms")

	c, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "google", c.AuthMode)
	assert.Equal(t, "client.apps.googleusercontent.com", c.GoogleClientID)
	assert.Equal(t, 750*time.Millisecond, c.IdentityTimeout)
	assert.True(t, c.Production())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"gotrue without url", nil, "gotrue-url and gotrue-anon-key are required"},
		{"jwt without key", []string{"--auth-mode=jwt"}, "jwt-signing-key is required"},
		{"oidc without issuer", []string{"--auth-mode=oidc"}, "oidc-issuer and oidc-client-id are required"},
		{"unknown mode", []string{"--auth-mode=saml"}, `unknown auth-mode "saml"`},
		{"unknown driver", []string{"--auth-mode=jwt", "--jwt-signing-key=k", "--db-driver=mysql"}, `unknown db-driver "mysql"`},
		{"unknown log format", []string{"--auth-mode=jwt", "--jwt-signing-key=k", "--log-format=xml"}, `unknown log-format "xml"`},
		{"sample ratio above one", []string{"--auth-mode=jwt", "--jwt-signing-key=k", "--otel-sample-ratio=1.5"}, "otel-sample-ratio 1.5 is outside [0, 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a.com", "b.com"}, SplitList(" a.com, ,b.com "))
	assert.Nil(t, SplitList(""))
}
