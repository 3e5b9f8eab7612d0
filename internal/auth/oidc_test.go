package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeVerifier struct {
	claims map[string]map[string]any // raw token -> claims
}

func (f *fakeVerifier) Verify(_ context.Context, raw string) (map[string]any, error) {
	c, ok := f.claims[raw]
	if !ok {
		return nil, errors.New("signature invalid")
	}
	return c, nil
}

type fakeRefresher struct {
	token *oauth2.Token
	err   error
	got   string
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	f.got = refreshToken
	return f.token, f.err
}

func TestOIDC_VerifyBearerToken(t *testing.T) {
	v := &fakeVerifier{claims: map[string]map[string]any{
		"good":       {"sub": "sub-1", "email": "ada@example.com", "email_verified": true},
		"unverified": {"sub": "sub-2", "email": "eve@example.com", "email_verified": false},
		"no-email":   {"sub": "sub-3"},
	}}
	p := newOIDCProviderWith(OIDCConfig{ClientID: "client"}, v, nil)

	id, err := p.VerifyBearerToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, &Identity{ID: "sub-1", Email: "ada@example.com"}, id)

	for _, tok := range []string{"unverified", "no-email", "unknown"} {
		_, err := p.VerifyBearerToken(context.Background(), tok)
		assert.ErrorIs(t, err, ErrVerification, tok)
	}
}

func TestOIDC_RefreshSession(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	v := &fakeVerifier{claims: map[string]map[string]any{
		"new-id-token": {"sub": "sub-1", "email": "ada@example.com"},
	}}
	r := &fakeRefresher{token: (&oauth2.Token{
		AccessToken: "opaque",
		Expiry:      expiry,
	}).WithExtra(map[string]any{"id_token": "new-id-token"})}
	p := newOIDCProviderWith(OIDCConfig{ClientID: "client"}, v, r)

	sess, err := p.RefreshSession(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", r.got)
	assert.Equal(t, "new-id-token", sess.AccessToken)
	assert.Equal(t, "refresh-1", sess.RefreshToken, "keeps the old refresh token when none is rotated")
	assert.Equal(t, expiry, sess.ExpiresAt)
	assert.Equal(t, "ada@example.com", sess.Identity.Email)
}

func TestOIDC_RefreshSession_Errors(t *testing.T) {
	v := &fakeVerifier{claims: map[string]map[string]any{}}

	p := newOIDCProviderWith(OIDCConfig{}, v, &fakeRefresher{err: errors.New("invalid_grant")})
	_, err := p.RefreshSession(context.Background(), "r")
	assert.ErrorContains(t, err, "refresh rejected")

	_, err = p.RefreshSession(context.Background(), "")
	assert.Error(t, err)

	p = newOIDCProviderWith(OIDCConfig{}, v, &fakeRefresher{token: &oauth2.Token{AccessToken: "a"}})
	_, err = p.RefreshSession(context.Background(), "r")
	assert.ErrorContains(t, err, "no id_token")
}

func TestOIDCConfig_Defaults(t *testing.T) {
	c := OIDCConfig{}
	assert.Equal(t, []string{"openid", "profile", "email"}, c.scopes())
	assert.Equal(t, "email", c.emailClaim())

	c = OIDCConfig{Scopes: []string{"offline_access"}, EmailClaim: "upn"}
	assert.Equal(t, []string{"openid", "offline_access"}, c.scopes())
	assert.Equal(t, "upn", c.emailClaim())
}
