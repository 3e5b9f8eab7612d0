package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/starinfinity/star-infinity-api/internal/auth"
)

func (s *Server) registerAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "verifyToken",
		Method:      http.MethodPost,
		Path:        "/api/auth/verify",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *VerifyTokenInput) (*VerifyTokenOutput, error) {
		out := &VerifyTokenOutput{}
		out.Body.Valid = s.verifier.Verify(ctx, input.Body.Token).Valid
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        "/api/auth/me",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *struct{}) (*MeOutput, error) {
		u := auth.UserFromContext(ctx)
		if u == nil {
			return nil, huma.NewError(http.StatusUnauthorized, auth.ErrAuthenticationRequired.Message)
		}
		out := &MeOutput{}
		out.Body = UserBody{ID: u.ID, Email: u.Email, Role: u.Role.String()}
		return out, nil
	})
}
