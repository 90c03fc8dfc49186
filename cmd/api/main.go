package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/cache"
	"github.com/userhub/userhub/internal/config"
	httpx "github.com/userhub/userhub/internal/http"
	"github.com/userhub/userhub/internal/notifications"
	"github.com/userhub/userhub/internal/observability"
	storemongo "github.com/userhub/userhub/internal/store/mongo"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	rootCtx := context.Background()

	// tracing (optional)

	var traceShutdown func(context.Context) error

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(rootCtx, "userhub", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		traceShutdown = shutdown
	}

	// document store

	client, err := storemongo.Connect(rootCtx, cfg.MongoURI)

	if err != nil {
		log.Error("mongo connect failed", "err", err)
		os.Exit(1)
	}

	db := client.Database(cfg.MongoDB)

	// metrics

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewProm(promReg)

	usersRepo := storemongo.NewUsersRepo(db, metrics)

	{
		ctx, cancel := config.WithTimeout(5 * time.Second)
		err := usersRepo.EnsureIndexes(ctx)
		cancel()

		if err != nil {
			log.Error("index creation failed", "err", err)
			os.Exit(1)
		}
	}

	// avatar cache (optional)

	var avatars *cache.AvatarCache

	if cfg.RedisAddr != "" {
		avatars = cache.NewAvatarCache(cache.AvatarCacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	// notifications: provider behind a circuit breaker, dispatched
	// off the request path

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		notifications.ProtectedNotifierConfig{},
	)
	dispatcher := notifications.NewDispatcher(notifier, log, metrics)

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	// readiness pings

	mongoPing := func() error {
		ctx, cancel := config.WithTimeout(1 * time.Second)
		defer cancel()

		return client.Ping(ctx, nil)
	}

	redisPing := func() error {
		ctx, cancel := config.WithTimeout(1 * time.Second)
		defer cancel()

		return avatars.Ping(ctx)
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:        cfg,
		Log:        log,
		Users:      usersRepo,
		Tokens:     tokens,
		Notify:     dispatcher,
		Avatars:    avatars,
		Metrics:    metrics,
		PromReg:    promReg,
		ReadyPings: []func() error{mongoPing, redisPing},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
			return
		}

		dispatcher.Drain(5 * time.Second)

		if err := client.Disconnect(ctx); err != nil {
			log.Error("mongo disconnect failed", "err", err)
		}

		if err := avatars.Close(); err != nil {
			log.Error("redis close failed", "err", err)
		}

		if traceShutdown != nil {
			if err := traceShutdown(ctx); err != nil {
				log.Error("tracer shutdown failed", "err", err)
			}
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(20 * time.Second):
		log.Error("shutdown timed out")
	}
}
