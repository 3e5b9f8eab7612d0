package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signJWT signs claims with the given method and key, adding a default exp.
func signJWT(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

// writePEM writes a PEM-encoded key to a temp file.
func writePEM(t *testing.T, dir, name, typ string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pem.Encode(f, &pem.Block{Type: typ, Bytes: der}))
	return path
}

func TestJWT_HMAC_Valid(t *testing.T) {
	secret := "my-test-secret-key-1234567890"
	p, err := NewJWTProvider(JWTConfig{SigningKey: secret})
	require.NoError(t, err)

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub":   "5b1c-uuid",
		"email": "alice@example.com",
	})

	id, err := p.VerifyBearerToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "5b1c-uuid", id.ID)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "jwt", p.Name())
}

func TestJWT_RSA_Valid(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pemPath := writePEM(t, t.TempDir(), "rsa.pub", "PUBLIC KEY", pubDER)

	p, err := NewJWTProvider(JWTConfig{SigningKey: pemPath})
	require.NoError(t, err)

	tok := signJWT(t, jwt.SigningMethodRS256, privKey, jwt.MapClaims{
		"sub":   "bob",
		"email": "bob@example.com",
	})

	id, err := p.VerifyBearerToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", id.Email)
}

func TestJWT_ECDSA_Valid(t *testing.T) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pemPath := writePEM(t, t.TempDir(), "ec.pub", "PUBLIC KEY", pubDER)

	p, err := NewJWTProvider(JWTConfig{SigningKey: pemPath})
	require.NoError(t, err)

	tok := signJWT(t, jwt.SigningMethodES256, privKey, jwt.MapClaims{
		"sub":   "carol",
		"email": "carol@example.com",
	})

	id, err := p.VerifyBearerToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", id.Email)
}

func TestJWT_Rejected(t *testing.T) {
	secret := "test-secret"

	tests := []struct {
		name   string
		config JWTConfig
		token  func(t *testing.T) string
	}{
		{
			name:   "expired",
			config: JWTConfig{SigningKey: secret},
			token: func(t *testing.T) string {
				return signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
					"email": "u@example.com",
					"exp":   jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				})
			},
		},
		{
			name:   "missing exp",
			config: JWTConfig{SigningKey: secret},
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "u@example.com"}).
					SignedString([]byte(secret))
				require.NoError(t, err)
				return s
			},
		},
		{
			name:   "wrong signature",
			config: JWTConfig{SigningKey: secret},
			token: func(t *testing.T) string {
				return signJWT(t, jwt.SigningMethodHS256, []byte("wrong-key"), jwt.MapClaims{"email": "u@example.com"})
			},
		},
		{
			name:   "wrong audience",
			config: JWTConfig{SigningKey: secret, Audience: "authenticated"},
			token: func(t *testing.T) string {
				return signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
					"email": "u@example.com",
					"aud":   "anon",
				})
			},
		},
		{
			name:   "wrong issuer",
			config: JWTConfig{SigningKey: secret, Issuer: "expected-issuer"},
			token: func(t *testing.T) string {
				return signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
					"email": "u@example.com",
					"iss":   "wrong-issuer",
				})
			},
		},
		{
			name:   "missing email",
			config: JWTConfig{SigningKey: secret},
			token: func(t *testing.T) string {
				return signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "u"})
			},
		},
		{
			name:   "malformed",
			config: JWTConfig{SigningKey: secret},
			token:  func(*testing.T) string { return "not-a-jwt" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewJWTProvider(tt.config)
			require.NoError(t, err)

			_, err = p.VerifyBearerToken(context.Background(), tt.token(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrVerification))
		})
	}
}

func TestJWT_CustomEmailClaim(t *testing.T) {
	secret := "test-secret"
	p, err := NewJWTProvider(JWTConfig{SigningKey: secret, EmailClaim: "upn"})
	require.NoError(t, err)

	tok := signJWT(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "user-id-123",
		"upn": "user@example.com",
	})

	id, err := p.VerifyBearerToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", id.Email)
}

func TestJWT_AlgorithmMismatch_HMAC_vs_RSA(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pemPath := writePEM(t, t.TempDir(), "rsa.pub", "PUBLIC KEY", pubDER)

	p, err := NewJWTProvider(JWTConfig{SigningKey: pemPath})
	require.NoError(t, err)

	tok := signJWT(t, jwt.SigningMethodHS256, []byte("some-secret"), jwt.MapClaims{"email": "u@example.com"})

	_, err = p.VerifyBearerToken(context.Background(), tok)
	assert.Error(t, err)
}

func TestJWT_InvalidPEMFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a valid PEM file"), 0o600))

	_, err := NewJWTProvider(JWTConfig{SigningKey: path})
	assert.Error(t, err)
}

func TestJWT_EmptySigningKey(t *testing.T) {
	_, err := NewJWTProvider(JWTConfig{})
	assert.Error(t, err)
}

func TestJWT_IssueRoundTrip(t *testing.T) {
	p, err := NewJWTProvider(JWTConfig{
		SigningKey: "issue-secret",
		Issuer:     "star-infinity",
		Audience:   "authenticated",
	})
	require.NoError(t, err)

	tok, err := p.Issue(Identity{ID: "42", Email: "dev@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := p.VerifyBearerToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "42", Email: "dev@example.com"}, *id)
}

func TestJWT_IssueRequiresHMAC(t *testing.T) {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pemPath := writePEM(t, t.TempDir(), "ec.pub", "PUBLIC KEY", pubDER)

	p, err := NewJWTProvider(JWTConfig{SigningKey: pemPath})
	require.NoError(t, err)

	_, err = p.Issue(Identity{ID: "1", Email: "x@example.com"}, time.Minute)
	assert.ErrorIs(t, err, ErrUnsupported)
}
