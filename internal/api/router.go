package api

import (
	"context"
	stdjson "encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/starinfinity/star-infinity-api/internal/audit"
	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/gziputil"
	"github.com/starinfinity/star-infinity-api/internal/storage"
)

// Server is the HTTP API server.
type Server struct {
	store     storage.Store
	verifier  *auth.TokenVerifier
	builder   *auth.ContextBuilder
	graphql   http.Handler
	dbTimeout time.Duration
	humaAPI   huma.API
}

// NewServer creates a new API server. builder attaches the AuthContext to
// every request; graphql serves POST /graphql.
func NewServer(store storage.Store, verifier *auth.TokenVerifier, builder *auth.ContextBuilder, graphql http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		store:     store,
		verifier:  verifier,
		builder:   builder,
		graphql:   graphql,
		dbTimeout: auth.DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures the API server.
type ServerOption func(*Server)

// WithDBTimeout bounds the readiness check's database ping.
func WithDBTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.dbTimeout = d
		}
	}
}

// humaJSONFormat uses stdlib encoding/json for huma request/response serialization.
var humaJSONFormat = huma.Format{
	Marshal: func(w io.Writer, v any) error {
		return stdjson.NewEncoder(w).Encode(v)
	},
	Unmarshal: stdjson.Unmarshal,
}

// newHumaConfig creates the huma configuration for the API.
func newHumaConfig() huma.Config {
	registry := huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)
	return huma.Config{
		OpenAPI: &huma.OpenAPI{
			OpenAPI: "3.1.0",
			Info: &huma.Info{
				Title:   "Star Infinity API",
				Version: "1.0.0",
			},
			Components: &huma.Components{
				Schemas: registry,
			},
		},
		OpenAPIPath:   "", // served by getOpenAPISpec
		DocsPath:      "",
		SchemasPath:   "",
		Formats:       map[string]huma.Format{"application/json": humaJSONFormat, "json": humaJSONFormat},
		DefaultFormat: "application/json",
	}
}

// Router returns the configured HTTP handler with all endpoints.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	api := humago.New(mux, newHumaConfig())
	api.UseMiddleware(operationMetrics)
	api.UseMiddleware(auditHumaMiddleware)
	s.humaAPI = api

	s.registerPublicRoutes(api)
	s.registerAuth(api)

	if s.graphql != nil {
		gql := graphqlMetrics(s.graphql)
		mux.Handle("POST /graphql", gql)
		mux.Handle("GET /graphql", gql)
	}

	// HTTP-level middleware (outermost applied last).
	var handler http.Handler = mux
	handler = s.builder.Middleware(handler)
	handler = gzipDecompressor(handler)
	handler = accessLog(handler)
	handler = clientAddr(handler)
	return handler
}

// registerPublicRoutes registers operations that never require a user.
func (s *Server) registerPublicRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/",
		Tags:        []string{"Health"},
		Middlewares: huma.Middlewares{s.rootOnly},
	}, func(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
		out := &HealthCheckOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "readinessCheck",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
		ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			return nil, huma.NewError(http.StatusServiceUnavailable, "database unavailable")
		}
		out := &HealthCheckOutput{}
		out.Body.Status = "ready"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getMetrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Tags:        []string{"Meta"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: func(ctx huma.Context) {
				rec := httptest.NewRecorder()
				MetricsHandler().ServeHTTP(rec, &http.Request{})
				for k, vals := range rec.Header() {
					for _, v := range vals {
						ctx.SetHeader(k, v)
					}
				}
				_, _ = ctx.BodyWriter().Write(rec.Body.Bytes())
			},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getOpenAPISpec",
		Method:      http.MethodGet,
		Path:        "/api/openapi",
		Tags:        []string{"Meta"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: func(ctx huma.Context) {
				ctx.SetHeader("Content-Type", "application/json")
				ctx.SetHeader("Vary", "Accept-Encoding")
				data, _ := stdjson.Marshal(s.humaAPI.OpenAPI())
				if acceptsGzip(ctx.Header("Accept-Encoding")) {
					if gz, err := gziputil.Compress(data); err == nil {
						ctx.SetHeader("Content-Encoding", "gzip")
						data = gz
					}
				}
				_, _ = ctx.BodyWriter().Write(data)
			},
		}, nil
	})
}

// auditHumaMiddleware logs structured audit entries for rejected REST calls.
// GraphQL mutations are audited by their resolvers.
func auditHumaMiddleware(ctx huma.Context, next func(huma.Context)) {
	next(ctx)

	status := ctx.Status()
	if status < 400 || status >= 500 {
		return
	}
	actor := "anonymous"
	if u := auth.UserFromContext(ctx.Context()); u != nil {
		actor = u.Email
	}
	audit.Event{
		Actor:      actor,
		Action:     ctx.Operation().OperationID,
		Method:     ctx.Method(),
		Status:     audit.StatusDenied,
		HTTPStatus: status,
		IP:         ctx.RemoteAddr(),
	}.Warn("Audit Log: API Request")
}

// rootOnly rejects requests for paths below "/" that fell through to the
// health check. The mux routes every unmatched GET there.
func (s *Server) rootOnly(ctx huma.Context, next func(huma.Context)) {
	if u := ctx.URL(); u.Path != "/" {
		_ = huma.WriteErr(s.humaAPI, ctx, http.StatusNotFound, "not found")
		return
	}
	next(ctx)
}
