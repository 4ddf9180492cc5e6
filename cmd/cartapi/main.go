// Command cartapi is the development backend the storefront client talks to.
// It keeps accounts and saved carts in memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/alecthomas/kong"
	"golang.org/x/time/rate"

	"storefront-client/config"
	"storefront-client/internal/delivery/http/middleware"
	v1 "storefront-client/internal/delivery/http/v1"
	"storefront-client/internal/infrastructure/cache"
	"storefront-client/internal/repository/memory"
	"storefront-client/internal/usecase"
	"storefront-client/pkg/logger"
	"storefront-client/pkg/utils"
)

type CLI struct {
	Port     string `help:"Port to listen on. Overrides PORT." placeholder:"PORT"`
	LogLevel string `help:"Log level. Overrides LOG_LEVEL." placeholder:"LEVEL"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("cartapi"),
		kong.Description("Development backend for the storefront cart client."),
	)

	cfg := config.LoadConfig()
	if cli.Port != "" {
		cfg.Port = cli.Port
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	utils.SetSecret(cfg.JWTSecret)

	// Accounts never expire; carts carry their own TTL.
	memCache := cache.NewMemoryCache(cfg.CacheCartTTL, 10*time.Minute)

	userRepo := memory.NewUserRepository(memCache)
	cartRepo := memory.NewCartRepository(memCache, cfg.CacheCartTTL)

	authUC := usecase.NewAuthUsecase(userRepo, cfg.AccessTokenExpiry)
	cartUC := usecase.NewCartUsecase(cartRepo, cfg.MaxCartQuantity)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin, err := authUC.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed admin account")
		}
		log.Info().Str("user_id", admin.ID).Str("email", admin.Email).Msg("Admin account ready")
	}

	mux := http.NewServeMux()
	v1.RegisterRoutes(mux, v1.Handlers{
		Auth:   v1.NewAuthHandler(authUC),
		Cart:   v1.NewCartHandler(cartUC),
		Health: v1.NewHealthHandler(),
	})

	rateLimiter := middleware.NewRateLimiter(
		context.Background(),
		rate.Limit(cfg.ServerRateLimit),
		cfg.ServerRateBurst,
		time.Minute,   // cleanup period
		3*time.Minute, // client TTL
	)

	// CORS, Request Logger, Rate Limit, then Gzip outermost
	handler := middleware.NewCORSMiddleware(cfg)(mux)
	handler = middleware.RequestLogger(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = gziphandler.GzipHandler(handler)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()
	logger.ServiceStart("cartapi", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")
	rateLimiter.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	logger.ServiceStop("cartapi")
}
