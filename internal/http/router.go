package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/hypnohub/internal/config"
	"github.com/geocoder89/hypnohub/internal/http/handlers"
	"github.com/geocoder89/hypnohub/internal/http/middlewares"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/geocoder89/hypnohub/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the collaborators the router mounts. Limiter, Ping, Prom and
// Gatherer are optional.
type Deps struct {
	Auth        handlers.AuthService
	Suggestions handlers.SuggestionsService
	Tokens      middlewares.TokenVerifier
	Limiter     ratelimit.Limiter
	Ping        func(ctx context.Context) error
	Prom        *observability.Prom
	Gatherer    prometheus.Gatherer
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers.RegisterValidators()

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(cfg.IsProd()))
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.RequireJSON())
	if cfg.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	}

	// health
	h := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Prom != nil {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// auth
	authHandler := handlers.NewAuthHandler(deps.Auth, log, cfg.RequestTimeout)
	authMW := middlewares.NewAuthMiddleware(deps.Tokens)

	authGroup := r.Group("/auth")
	if deps.Limiter != nil {
		authGroup.Use(middlewares.RateLimit(deps.Limiter, middlewares.KeyByIP, log))
	}
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)

	// suggestions
	suggestionsHandler := handlers.NewSuggestionsHandler(deps.Suggestions, log, cfg.RequestTimeout)

	r.POST("/suggestions", suggestionsHandler.Create)
	r.GET("/suggestions", suggestionsHandler.List)
	r.GET("/suggestions/:id", suggestionsHandler.Get)
	r.PATCH("/suggestions/:id", suggestionsHandler.Update)
	r.DELETE("/suggestions/:id", suggestionsHandler.Delete)

	return r
}
