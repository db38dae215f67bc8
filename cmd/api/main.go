package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/hypnohub/internal/auth"
	"github.com/geocoder89/hypnohub/internal/config"
	httpx "github.com/geocoder89/hypnohub/internal/http"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/geocoder89/hypnohub/internal/ratelimit"
	"github.com/geocoder89/hypnohub/internal/redisclient"
	"github.com/geocoder89/hypnohub/internal/security"
	"github.com/geocoder89/hypnohub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint)
		if err != nil {
			observability.LogError(log, "tracer init failed", err)
			os.Exit(1)
		}
		defer func() {
			tctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(tctx)
		}()
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	st, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		observability.LogError(log, "store init failed", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer func() {
		cctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = st.close(cctx)
	}()

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authSvc := service.NewAuthService(st.users, security.NewBcryptHasher(), tokens, log)

	if err := authSvc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		observability.LogError(log, "admin seed failed", err)
		os.Exit(1)
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.AuthRateLimit, cfg.AuthRateWindow)
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			// the in-process limiter still protects a single instance
			observability.LogError(log, "redis unavailable, using in-memory rate limiter", err)
		} else {
			defer rdb.Close()
			limiter = ratelimit.NewRedis(rdb.Raw(), "hypnohub:rl", cfg.AuthRateLimit, cfg.AuthRateWindow)
		}
	}

	// set up routers with the log
	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Auth:        authSvc,
		Suggestions: service.NewSuggestionsService(st.sessions),
		Tokens:      tokens,
		Limiter:     limiter,
		Ping:        st.ping,
		Prom:        prom,
		Gatherer:    prometheus.DefaultGatherer,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			observability.LogError(log, "server failed", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(sctx); err != nil {
			observability.LogError(log, "graceful shutdown failed", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
