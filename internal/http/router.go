package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/cache"
	"github.com/userhub/userhub/internal/config"
	"github.com/userhub/userhub/internal/http/handlers"
	"github.com/userhub/userhub/internal/http/middlewares"
	"github.com/userhub/userhub/internal/notifications"
	"github.com/userhub/userhub/internal/observability"
	storemongo "github.com/userhub/userhub/internal/store/mongo"
)

const (
	// multer-equivalent upload cap, in bytes
	maxAvatarBytes = 1_000_000
	// generous global cap; the upload filter enforces the tighter one
	maxBodyBytes = 2 << 20
)

type RouterDeps struct {
	Cfg     config.Config
	Log     *slog.Logger
	Users   *storemongo.UsersRepo
	Tokens  *auth.Manager
	Notify  *notifications.Dispatcher
	Avatars *cache.AvatarCache
	Metrics *observability.Prom
	PromReg *prometheus.Registry

	ReadyPings []func() error
}

// NewRouter wires every route explicitly into a fresh engine; there is no
// package-level route registry.
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(otelgin.Middleware("userhub"))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	if len(d.Cfg.AllowedOrigins) > 0 {
		r.Use(middlewares.CORSMiddleware(d.Cfg.AllowedOrigins))
	}

	if d.Metrics != nil {
		r.Use(d.Metrics.GinHandleMiddleware())
	}

	// health + metrics

	health := handlers.NewHealthHandler(d.ReadyPings...)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.PromReg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromReg, promhttp.HandlerOpts{})))
	}

	// handlers

	authGate := middlewares.NewAuthMiddleware(d.Tokens, d.Users)
	requireJSON := middlewares.RequireJSON()
	limiter := middlewares.NewRateLimiter(20, time.Minute)
	credLimit := limiter.RateLimiterMiddleware(middlewares.KeyByIP)

	usersHandler := handlers.NewUsersHandler(d.Users, d.Tokens, d.Notify, cache.New(5*time.Second), d.Avatars)
	avatarHandler := handlers.NewAvatarHandler(d.Users, d.Avatars)

	// public

	r.POST("/users", credLimit, requireJSON, usersHandler.Register)
	r.POST("/users/login", credLimit, requireJSON, usersHandler.Login)
	r.GET("/users/:id/avatar", avatarHandler.Fetch)

	if d.Cfg.PublicUserDirectory {
		r.GET("/users", usersHandler.List)
	} else {
		r.GET("/users", authGate.RequireAuth(), usersHandler.List)
	}

	// authenticated

	authed := r.Group("", authGate.RequireAuth())
	authed.POST("/users/logout", usersHandler.Logout)
	authed.POST("/users/logoutAll", usersHandler.LogoutAll)
	authed.GET("/users/me", usersHandler.Me)
	authed.PATCH("/users/me", requireJSON, usersHandler.Update)
	authed.DELETE("/users/me", usersHandler.Delete)
	authed.POST("/users/me/avatar", middlewares.AvatarUpload("avatar", maxAvatarBytes), avatarHandler.Upload)
	authed.DELETE("/users/me/avatar", avatarHandler.Remove)

	return r
}
