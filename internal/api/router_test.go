package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/starinfinity/star-infinity-api/internal/audit"
	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/gziputil"
	"github.com/starinfinity/star-infinity-api/internal/storage"
)

func init() {
	audit.Enabled = false
}

type MockStore struct {
	mock.Mock
	storage.Store
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) AdministratorIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockStore) InstructorIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) VerifyBearerToken(ctx context.Context, token string) (*auth.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func newTestServer(store *MockStore, provider *MockProvider, graphql http.Handler) http.Handler {
	verifier := auth.NewTokenVerifier(provider, 0)
	builder := auth.NewContextBuilder(verifier, auth.NewRoleResolver(store, 0), auth.WithOutcomeObserver(ObserveAuthOutcome))
	return NewServer(store, verifier, builder, graphql).Router()
}

func TestHealthAndReadiness(t *testing.T) {
	store := &MockStore{}
	store.On("Ping", mock.Anything).Return(nil).Once()
	store.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()
	h := newTestServer(store, &MockProvider{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"code":503,"message":"database unavailable"}`, rec.Body.String())

	store.AssertExpectations(t)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	h := newTestServer(&MockStore{}, &MockProvider{}, nil)

	for _, path := range []string{"/definitely/not/a/route", "/api", "/healthz/extra"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), `"ok"`, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPanicBecomesJSONError(t *testing.T) {
	gql := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("resolver exploded") })
	h := newTestServer(&MockStore{}, &MockProvider{}, gql)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{}`))
	req.Header.Set("X-Request-Id", "req-boom")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"message":"Internal Server Error"}`, rec.Body.String())
	assert.Equal(t, "req-boom", rec.Header().Get("X-Request-Id"))
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote port dropped", nil, "10.0.0.9:51234", "10.0.0.9"},
		{"real ip", map[string]string{"X-Real-Ip": "203.0.113.7"}, "10.0.0.9:1", "203.0.113.7"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, "10.0.0.9:1", "198.51.100.4"},
		{"garbage header ignored", map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.9:1", "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := clientAddr(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = r.RemoteAddr }))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcceptsGzip(t *testing.T) {
	assert.True(t, acceptsGzip("gzip"))
	assert.True(t, acceptsGzip("br, GZIP;q=0.8"))
	assert.False(t, acceptsGzip("gzip;q=0"))
	assert.False(t, acceptsGzip("identity"))
	assert.False(t, acceptsGzip(""))
}

func TestRequestIDPropagated(t *testing.T) {
	h := newTestServer(&MockStore{}, &MockProvider{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&MockStore{}, &MockProvider{}, nil)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "star_infinity_http_requests_total")
	assert.Contains(t, rec.Body.String(), `star_infinity_auth_context_total{outcome="anonymous",role=""}`)
}

func TestOpenAPISpec(t *testing.T) {
	h := newTestServer(&MockStore{}, &MockProvider{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/openapi", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/auth/verify")
	assert.Contains(t, rec.Body.String(), "Star Infinity API")
	assert.Empty(t, rec.Header().Get("Content-Encoding"))

	req := httptest.NewRequest(http.MethodGet, "/api/openapi", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	spec, err := gziputil.Decompress(rec.Body, 10*gziputil.MaxRequestSize)
	require.NoError(t, err)
	assert.Contains(t, string(spec), "/api/auth/verify")
}

func TestGraphQLReceivesAuthContext(t *testing.T) {
	store := &MockStore{}
	store.On("AdministratorIDByEmail", mock.Anything, "root@x.com").Return(int64(4), true, nil)
	provider := &MockProvider{}
	provider.On("VerifyBearerToken", mock.Anything, "admin-token").Return(&auth.Identity{ID: "sub-1", Email: "root@x.com"}, nil)

	var seen *auth.User
	gql := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := newTestServer(store, provider, gql)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ me { id } }"}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, &auth.User{ID: "4", Email: "root@x.com", Role: auth.RoleAdmin}, seen)

	seen = &auth.User{}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{}`)))
	assert.Nil(t, seen, "no header means anonymous")

	provider.AssertNumberOfCalls(t, "VerifyBearerToken", 1)
	store.AssertNotCalled(t, "InstructorIDByEmail", mock.Anything, mock.Anything)
}

func TestGzipBodies(t *testing.T) {
	provider := &MockProvider{}
	provider.On("VerifyBearerToken", mock.Anything, "tok").Return(nil, auth.ErrVerification)
	h := newTestServer(&MockStore{}, provider, nil)

	body, err := gziputil.Compress([]byte(`{"token":"tok"}`))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":false}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	huge, err := gziputil.Compress(bytes.Repeat([]byte(" "), gziputil.MaxRequestSize+1))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(huge))
	req.Header.Set("Content-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestVerifyTokenEndpoint(t *testing.T) {
	provider := &MockProvider{}
	provider.On("VerifyBearerToken", mock.Anything, "good").Return(&auth.Identity{ID: "u1", Email: "u@x.com"}, nil)
	provider.On("VerifyBearerToken", mock.Anything, "bad").Return(nil, auth.ErrVerification)

	_, api := humatest.New(t)
	s := NewServer(&MockStore{}, auth.NewTokenVerifier(provider, 0), nil, nil)
	s.registerAuth(api)

	for token, want := range map[string]bool{"good": true, "bad": false, "": false} {
		resp := api.Post("/api/auth/verify", map[string]any{"token": token})
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `{"valid":`+map[bool]string{true: "true", false: "false"}[want]+`}`, resp.Body.String(), "token %q", token)
	}
	provider.AssertNumberOfCalls(t, "VerifyBearerToken", 2)

	resp := api.Post("/api/auth/verify", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnprocessableEntity, body.Code)
	assert.NotEmpty(t, body.Details)
}

func TestCurrentUserEndpoint(t *testing.T) {
	_, api := humatest.New(t)
	user := &auth.User{ID: "7", Email: "ada@x.com", Role: auth.RoleInstructor}
	api.UseMiddleware(func(ctx huma.Context, next func(huma.Context)) {
		if ctx.Header("X-Test-User") == "" {
			next(ctx)
			return
		}
		next(huma.WithContext(ctx, auth.WithAuthContext(ctx.Context(), auth.AuthContext{User: user})))
	})
	s := NewServer(&MockStore{}, auth.NewTokenVerifier(&MockProvider{}, 0), nil, nil)
	s.registerAuth(api)

	resp := api.Get("/api/auth/me")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.JSONEq(t, `{"code":401,"message":"Authentication required"}`, resp.Body.String())

	resp = api.Get("/api/auth/me", "X-Test-User: yes")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"id":"7","email":"ada@x.com","role":"INSTRUCTOR"}`, resp.Body.String())
}

func TestObserveGateDecision(t *testing.T) {
	ObserveGateDecision("admins", nil)
	ObserveGateDecision("admins", auth.ErrNotAuthorized)
	ObserveGateDecision("admins", errors.New("boom"))

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `star_infinity_gate_decisions_total{decision="allowed",field="admins"} 1`)
	assert.Contains(t, body, `star_infinity_gate_decisions_total{decision="FORBIDDEN",field="admins"} 1`)
	assert.Contains(t, body, `star_infinity_gate_decisions_total{decision="error",field="admins"} 1`)
}
