// cmd/app-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saleorapp/internal/manifest"
	"saleorapp/internal/register"
	"saleorapp/internal/webhook"
	"saleorapp/pkg/apl"
	"saleorapp/pkg/auth"
	"saleorapp/pkg/config"
	"saleorapp/pkg/db"
	"saleorapp/pkg/logger"
	"saleorapp/pkg/middleware"
)

func buildStore(cfg config.Config, log logger.Sugared) apl.APL {
	switch cfg.APLBackend {
	case config.BackendUpstash:
		return apl.NewUpstashAPL(apl.UpstashConfig{
			RestURL:   cfg.UpstashRestURL,
			RestToken: cfg.UpstashRestToken,
			Namespace: cfg.AppNamespace,
			Timeout:   cfg.HTTPTimeout,
		})
	case config.BackendRedis:
		return apl.NewRedisAPL(db.MustRedis(cfg.RedisURL, log), cfg.AppNamespace)
	case config.BackendPostgres:
		pool := db.MustConnect(cfg.DatabaseURL, log)
		if err := apl.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		return apl.NewPostgresAPL(pool)
	case config.BackendFile:
		return apl.NewFileAPL(cfg.APLFilePath)
	default:
		log.Warnw("using in-memory credential store, records do not survive restarts")
		return apl.NewMemoryAPL()
	}
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	store := buildStore(cfg, log)
	if ready := store.IsReady(context.Background()); !ready.Ready {
		log.Fatalw("credential store not ready", "backend", cfg.APLBackend, "missing", ready.Missing)
	}

	resolver := auth.NewJWKSResolver(cfg.JWKSCacheTTL, cfg.HTTPTimeout)
	verifier := auth.NewVerifier(resolver)

	m, err := manifest.Load(cfg.ManifestPath, cfg.BaseURL)
	if err != nil {
		log.Fatalw("manifest", "err", err)
	}

	reg, err := register.New(store, log, cfg.AllowedDomainPattern, nil)
	if err != nil {
		log.Fatalw("register", "err", err)
	}

	hooks := webhook.NewRouter(store, resolver, log)
	// Uninstall revokes the tenant's record; other events are app-specific
	// and registered by the deployment embedding this service.
	hooks.Handle("app-uninstalled", func(ctx context.Context, ev webhook.Event) error {
		log.Infow("app uninstalled", "saleorApiUrl", ev.AuthData.SaleorAPIURL)
		return store.Delete(ctx, ev.AuthData.SaleorAPIURL)
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg, log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	manifest.RegisterRoutes(r, m)
	reg.RegisterRoutes(r)
	hooks.RegisterRoutes(r)

	// Dashboard-facing API: every route behind the full auth chain.
	r.Group(func(r chi.Router) {
		r.Use(middleware.WithAuthData(store, log))
		r.Use(middleware.ValidateToken(verifier, log))
		r.Use(middleware.WithSaleorClient())
		r.Get("/api/status", statusHandler)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("app-service listening", "addr", cfg.HTTPAddr, "aplBackend", cfg.APLBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("app-service stopped")
}
