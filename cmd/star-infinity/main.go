package main

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/starinfinity/star-infinity-api/internal/api"
	"github.com/starinfinity/star-infinity-api/internal/audit"
	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/config"
	"github.com/starinfinity/star-infinity-api/internal/graph"
	"github.com/starinfinity/star-infinity-api/internal/logging"
	"github.com/starinfinity/star-infinity-api/internal/storage"
	"github.com/starinfinity/star-infinity-api/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "star-infinity: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "star-infinity",
		Short: "Star Infinity GraphQL and REST API server",
		Long: `Serves the Star Infinity GraphQL API on /graphql and a small REST surface
under /api. Every flag can also be set through a STAR_INFINITY_* environment
variable, e.g. STAR_INFINITY_GOTRUE_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(newMigrateCmd(), newHashPasswordCmd(), newIssueTokenCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logCloser := logging.Setup(logging.Options{Format: cfg.LogFormat, Production: cfg.Production(), File: cfg.LogFile})
	defer logCloser.Close()
	audit.Enabled = cfg.AuditLogs

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	api.RegisterStoreStatsGauges(
		func() float64 { return float64(store.Stats().OpenConnections) },
		func() float64 { return float64(store.Stats().InUse) },
	)

	tracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			slog.Error("tracer provider shutdown error", "error", err)
		}
	}()
	if tracing.Enabled() {
		slog.Info("OpenTelemetry tracing enabled", "service", cfg.OTelServiceName, "sample_ratio", cfg.OTelSampleRatio)
	}

	provider, err := newIdentityProvider(ctx, cfg, tracing)
	if err != nil {
		return err
	}
	verifier := auth.NewTokenVerifier(provider, cfg.IdentityTimeout)
	roles := auth.NewRoleResolver(store, cfg.DBTimeout)
	builder := auth.NewContextBuilder(verifier, roles, auth.WithOutcomeObserver(api.ObserveAuthOutcome))

	resolver := graph.NewResolver(store, verifier, roles,
		graph.WithGateObserver(api.ObserveGateDecision),
		graph.WithStoreTimeout(cfg.DBTimeout),
		graph.WithIdentityTimeout(cfg.IdentityTimeout),
		graph.WithTokenTTL(cfg.TokenTTL),
	)
	schema, err := graph.NewSchema(resolver)
	if err != nil {
		return fmt.Errorf("build graphql schema: %w", err)
	}

	srv := api.NewServer(store, verifier, builder, graph.Handler(schema), api.WithDBTimeout(cfg.DBTimeout))
	handler := tracing.Handler(srv.Router())

	servers := []*http.Server{{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.ManagementAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.ManagementAddr,
			Handler:           managementMux(store, cfg.DBTimeout),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			slog.Info("server starting", "addr", s.Addr, "auth_mode", cfg.AuthMode)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		// Give in-flight requests time to complete.
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(sctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", s.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}

// openStore opens the database and applies the seed file, if configured.
func openStore(ctx context.Context, cfg *config.Config) (*storage.SQLStore, error) {
	store, err := storage.Open(cfg.DBDriver, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.SeedFile == "" {
		return store, nil
	}

	sw := logging.StartStopwatch("seed")
	seed, err := storage.LoadSeed(cfg.SeedFile)
	if err != nil {
		store.Close()
		return nil, err
	}
	sw.Checkpoint("parsed")
	if err := storage.ApplySeed(ctx, store, seed); err != nil {
		store.Close()
		return nil, fmt.Errorf("apply seed %s: %w", cfg.SeedFile, err)
	}
	sw.Stop()
	return store, nil
}

// newIdentityProvider builds the provider selected by auth-mode.
func newIdentityProvider(ctx context.Context, cfg *config.Config, tracing *telemetry.Tracing) (auth.IdentityProvider, error) {
	switch cfg.AuthMode {
	case "jwt":
		p, err := auth.NewJWTProvider(auth.JWTConfig{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			EmailClaim: cfg.JWTEmailClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("create JWT provider: %w", err)
		}
		slog.Info("auth mode: jwt", "issuer", cfg.JWTIssuer, "audience", cfg.JWTAudience)
		return p, nil

	case "oidc":
		p, err := auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			Issuer:       cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			Scopes:       config.SplitList(cfg.OIDCScopes),
		})
		if err != nil {
			return nil, fmt.Errorf("create OIDC provider: %w", err)
		}
		slog.Info("auth mode: oidc", "issuer", cfg.OIDCIssuer, "client_id", cfg.OIDCClientID)
		return p, nil

	case "google":
		slog.Info("auth mode: google", "client_id", cfg.GoogleClientID)
		return auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:       cfg.GoogleClientID,
			AllowedDomains: config.SplitList(cfg.GoogleAllowedDomains),
		}), nil

	default:
		p, err := auth.NewGoTrueProvider(auth.GoTrueConfig{
			URL:     cfg.GoTrueURL,
			AnonKey: cfg.GoTrueAnonKey,
		}, auth.WithHTTPClient(&http.Client{
			Transport: tracing.Transport(http.DefaultTransport),
			Timeout:   cfg.IdentityTimeout,
		}))
		if err != nil {
			return nil, fmt.Errorf("create GoTrue provider: %w", err)
		}
		slog.Info("auth mode: gotrue", "url", cfg.GoTrueURL)
		return p, nil
	}
}

// managementMux serves health checks and metrics on the management listener.
func managementMux(store storage.Store, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			writeStatus(w, http.StatusServiceUnavailable, "error")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("GET /metrics", api.MetricsHandler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = stdjson.NewEncoder(w).Encode(map[string]string{"status": status})
}
