package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func stubValidate(payload *idtoken.Payload, err error) validateFunc {
	return func(context.Context, string, string) (*idtoken.Payload, error) {
		return payload, err
	}
}

func TestGoogle_VerifyBearerToken(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{ClientID: "cid", AllowedDomains: []string{"starinfinity.io"}})
	p.validate = stubValidate(&idtoken.Payload{
		Subject: "1098",
		Claims: map[string]any{
			"email":          "ops@starinfinity.io",
			"email_verified": true,
			"hd":             "StarInfinity.io",
		},
	}, nil)

	id, err := p.VerifyBearerToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, &Identity{ID: "1098", Email: "ops@starinfinity.io"}, id)
}

func TestGoogle_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload *idtoken.Payload
		err     error
	}{
		{name: "invalid signature", err: errors.New("idtoken: invalid token")},
		{name: "missing email", payload: &idtoken.Payload{Claims: map[string]any{"email_verified": true}}},
		{name: "unverified", payload: &idtoken.Payload{Claims: map[string]any{"email": "a@starinfinity.io"}}},
		{name: "foreign domain", payload: &idtoken.Payload{Claims: map[string]any{
			"email": "a@gmail.com", "email_verified": true,
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewGoogleProvider(GoogleConfig{ClientID: "cid", AllowedDomains: []string{"starinfinity.io"}})
			p.validate = stubValidate(tt.payload, tt.err)

			_, err := p.VerifyBearerToken(context.Background(), "tok")
			assert.ErrorIs(t, err, ErrVerification)
		})
	}
}
