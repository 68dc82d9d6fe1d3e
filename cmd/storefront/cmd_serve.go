// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"storefront/internal/ai"
	"storefront/internal/cache"
	"storefront/internal/database"
	"storefront/internal/generator"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/render"
	"storefront/internal/router"
	"storefront/internal/session"
	"storefront/internal/sharelink"
	"storefront/internal/sites"
	"storefront/internal/storage"
	"storefront/internal/store"
	"storefront/internal/store/mongostore"
)

// shutdownTimeout is how long active requests get to finish on shutdown.
const shutdownTimeout = 30 * time.Second

// Server timeouts. A site form may carry up to 48 MB of inline images,
// so reading the body may take far longer than the headers. The write
// deadline starts once the headers are read and must cover the body plus
// a full website generation.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = readTimeout + ai.GenerationTimeout + 30*time.Second
	idleTimeout       = 120 * time.Second
)

// storefront serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	handler, cleanup, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := newHTTPServer(cfg.Addr(), handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Addr(), "base_url", cfg.PublicBaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("server stopped gracefully")
		return nil
	})
	return g.Wait()
}

// buildApp connects every backing service and returns the routed handler
// along with a function releasing those connections.
func buildApp(ctx context.Context) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}

	db, err := openDB()
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { db.Close() })

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			return fail(fmt.Errorf("seed database: %w", err))
		}
	}

	valkey, err := cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		return fail(fmt.Errorf("connect valkey: %w", err))
	}
	closers = append(closers, func() { valkey.Close() })

	checks := map[string]handlers.HealthCheck{
		"postgres": db.PingContext,
		"valkey":   func(ctx context.Context) error { return valkey.Ping(ctx).Err() },
	}

	var repo sites.Repository = store.NewSiteStore(db)
	if cfg.SiteStore == "mongo" {
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })

		siteStore := mongostore.NewSiteStore(client.Database(cfg.MongoDB))
		if err := siteStore.EnsureIndexes(ctx); err != nil {
			return fail(fmt.Errorf("mongo indexes: %w", err))
		}
		repo = siteStore
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}
	slog.Info("site store selected", "backend", cfg.SiteStore)

	userStore := store.NewUserStore(db)
	uploadStore := store.NewUploadStore(db)

	registry := ai.NewRegistry(cfg.AIProvider, map[string]ai.ProviderConfig{
		"openai":  {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL},
		"gemini":  {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL},
		"claude":  {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL},
		"mistral": {APIKey: cfg.MistralKey, Model: cfg.MistralModel, BaseURL: cfg.MistralBaseURL},
	})
	if !registry.HasProvider(cfg.AIProvider) {
		// Fall back to any provider that has a key.
		if avail := registry.Available(); len(avail) > 0 {
			if err := registry.SetActive(avail[0]); err != nil {
				return fail(err)
			}
			slog.Warn("configured ai provider has no api key, using fallback", "configured", cfg.AIProvider, "active", avail[0])
		} else {
			slog.Warn("no ai provider has an api key, generation will fail", "provider", cfg.AIProvider)
		}
	}
	slog.Info("ai providers initialized", "active", registry.ActiveName(), "available", registry.Available())

	listing := cache.NewListingCache(valkey, cache.DefaultTTL)
	// Cached listings may predate this release's schema or seed data.
	listing.InvalidateAll(ctx)
	siteOpts := []sites.Option{sites.WithCache(listing)}

	// Object storage is optional; without it images stay inline.
	var images handlers.ImageStore
	if cfg.StorageEnabled() {
		s3, err := storage.New(ctx, storage.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3BucketPublic,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return fail(fmt.Errorf("init s3 storage: %w", err))
		}
		if s3 != nil {
			im := storage.NewImages(s3, uploadStore)
			images = im
			siteOpts = append(siteOpts, sites.WithImages(im))
			slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3BucketPublic)
		}
	}
	if images == nil {
		slog.Warn("s3 storage not configured, images stay inline")
	}

	svc := sites.New(repo, generator.New(registry), siteOpts...)

	signer, err := sharelink.NewSigner(cfg.ShareSecret, sharelink.DefaultTTL)
	if err != nil {
		return fail(err)
	}
	slog.Info("share links enabled", "ttl", signer.TTL())

	renderer, err := render.New(cfg.IsDev())
	if err != nil {
		return fail(fmt.Errorf("init templates: %w", err))
	}

	generateLimit := middleware.NewRateLimiter(cfg.GenerateRateLimit, time.Minute)
	loginLimit := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	closers = append(closers, generateLimit.Stop, loginLimit.Stop)

	sessions := session.NewStore(valkey, !cfg.IsDev())
	r := router.New(router.Options{
		Sessions:       sessions,
		SecureCookies:  !cfg.IsDev(),
		LoginLimit:     loginLimit,
		GenerateLimit:  generateLimit,
		MetricsEnabled: cfg.MetricsEnabled,
		TrustProxy:     cfg.TrustProxy,
	}, router.Handlers{
		Auth:    handlers.NewAuth(renderer, sessions, userStore),
		Account: handlers.NewAccount(renderer, userStore, uploadStore, images),
		Sites:   handlers.NewSites(renderer, svc, signer, cfg.PublicBaseURL()),
		AI:      handlers.NewAI(svc),
		Uploads: handlers.NewUploads(images, uploadStore),
		Public:  handlers.NewPublic(renderer, svc, checks),
	})

	return r, cleanup, nil
}

// routesHandler builds the router without backing services, for listing.
func routesHandler() (chi.Router, error) {
	renderer, err := render.New(false)
	if err != nil {
		return nil, err
	}
	return router.New(router.Options{MetricsEnabled: cfg.MetricsEnabled}, router.Handlers{
		Auth:    handlers.NewAuth(renderer, nil, nil),
		Account: handlers.NewAccount(renderer, nil, nil, nil),
		Sites:   handlers.NewSites(renderer, nil, nil, cfg.PublicBaseURL()),
		AI:      handlers.NewAI(nil),
		Uploads: handlers.NewUploads(nil, nil),
		Public:  handlers.NewPublic(renderer, nil, nil),
	}), nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
