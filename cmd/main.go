package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutekitten000/backlog/backlog"
	"github.com/cutekitten000/backlog/cache"
	"github.com/cutekitten000/backlog/catalog"
	"github.com/cutekitten000/backlog/config"
	"github.com/cutekitten000/backlog/db"
	"github.com/cutekitten000/backlog/handlers"
	"github.com/cutekitten000/backlog/identity"
	"github.com/cutekitten000/backlog/middleware"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/store"
	"github.com/cutekitten000/backlog/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Log.WithField("error", err.Error()).Fatal("Invalid configuration")
	}

	utils.InitLogger(utils.LoggerConfig{
		Level:   cfg.LogLevel,
		Release: cfg.Release,
		File:    cfg.LogFile,
	})

	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		utils.Log.WithField("error", err.Error()).Fatal("Database unavailable")
	}

	// Redis is optional: without it rate limits fail open and the relay
	// does not cache.
	if cfg.RedisURL != "" {
		if err := cache.InitRedis(cfg.RedisURL, cfg.RedisPassword); err != nil {
			utils.Log.WithField("error", err.Error()).Warn("Redis unavailable, continuing without cache")
		} else {
			utils.Log.Info("Redis connected")
		}
	}
	defer cache.CloseRedis()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs := store.New(conn, store.WithNotifier(store.NewNotifier(cfg.ChangeBus, cache.RedisClient)))
	go func() {
		if err := docs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			utils.Log.WithField("error", err.Error()).Error("Change bus stopped")
		}
	}()

	provider := identity.NewProvider(conn)
	tokens := identity.NewTokens(cfg.JWTSecret, cfg.SessionTTL)
	sessions := backlog.NewSessions(provider, docs, cfg.SessionTTL)
	go sweepSessions(ctx, sessions)

	relay := catalog.NewRelay(catalog.RelayConfig{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		TokenURL:     cfg.TwitchTokenURL,
		BaseURL:      cfg.CatalogBaseURL,
		UseCache:     cache.RedisClient != nil,
	})
	if !cfg.CatalogEnabled() {
		utils.Log.Warn("TWITCH_CLIENT_ID or TWITCH_CLIENT_SECRET not set, catalog relay will answer 500")
	}

	api := &handlers.API{
		Provider:       provider,
		Tokens:         tokens,
		Sessions:       sessions,
		Catalog:        catalog.NewClient(relay, cfg.CatalogPlatforms),
		SearchDebounce: cfg.SearchDebounce,
		AllowedOrigins: cfg.CORSOrigins,
	}

	monitoring.InitMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RemovePoweredBy())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorLogger())
	r.Use(monitoring.PrometheusMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
	}))

	handlers.RegisterRoutes(r, api, relay)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.UseHTTPS && cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if useTLS {
		server.TLSConfig = &tls.Config{
			MinVersion:       tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256},
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			},
		}
	}

	go func() {
		fields := logrus.Fields{"port": cfg.Port, "tls": useTLS}
		var err error
		if useTLS {
			utils.Log.WithFields(fields).Info("Starting server with HTTPS")
			err = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			utils.Log.WithFields(fields).Info("Starting server with HTTP")
			if cfg.Release {
				utils.Log.Warn("Running without HTTPS. Set USE_HTTPS=true for production")
			}
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.WithField("error", err.Error()).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	utils.Log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.Log.WithField("error", err.Error()).Error("Server shutdown failed")
	}
	sessions.CloseAll()
	utils.Log.Info("Server stopped")
}

func sweepSessions(ctx context.Context, sessions *backlog.Sessions) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sessions.Sweep(now)
		}
	}
}
