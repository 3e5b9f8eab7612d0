package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestVerify_EmptyTokenMakesNoCall(t *testing.T) {
	p := new(MockProvider)
	v := NewTokenVerifier(p, 0)

	for _, tok := range []string{"", "   "} {
		res := v.Verify(context.Background(), tok)
		assert.False(t, res.Valid)
		assert.Nil(t, res.Identity)
	}
	p.AssertNotCalled(t, "VerifyBearerToken", mock.Anything, mock.Anything)
}

func TestVerify_Valid(t *testing.T) {
	p := new(MockProvider)
	p.On("VerifyBearerToken", mock.Anything, "tok").Return(&Identity{ID: "u1", Email: "a@x.com"}, nil).Once()

	res := NewTokenVerifier(p, time.Second).Verify(context.Background(), "tok")
	assert.True(t, res.Valid)
	assert.Equal(t, "a@x.com", res.Identity.Email)
	p.AssertExpectations(t)
}

func TestVerify_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
		err  error
	}{
		{name: "provider rejects", err: ErrVerification},
		{name: "transport failure", err: errors.New("dial tcp: connection refused")},
		{name: "no user record"},
		{name: "user without email", id: &Identity{ID: "u1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockProvider)
			p.On("VerifyBearerToken", mock.Anything, "tok").Return(tt.id, tt.err).Once()

			res := NewTokenVerifier(p, 0).Verify(context.Background(), "tok")
			assert.False(t, res.Valid)
			assert.Nil(t, res.Identity)
		})
	}
}

func TestVerify_AppliesTimeout(t *testing.T) {
	p := new(MockProvider)
	p.On("VerifyBearerToken", mock.Anything, "tok").Return(&Identity{Email: "a@x.com"}, nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
	})

	NewTokenVerifier(p, 2*time.Second).Verify(context.Background(), "tok")
	p.AssertExpectations(t)
}
