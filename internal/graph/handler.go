package graph

import (
	"context"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"github.com/starinfinity/star-infinity-api/internal/auth"
)

type bearerKey struct{}

func withBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFromContext(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// Handler serves GraphQL over HTTP. It expects the auth.ContextBuilder
// middleware to have run; the raw bearer token is additionally kept in the
// context so that logout can revoke the session.
func Handler(schema *graphql.Schema) http.Handler {
	h := &relay.Handler{Schema: schema}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
			r = r.WithContext(withBearerToken(r.Context(), token))
		}
		h.ServeHTTP(w, r)
	})
}
