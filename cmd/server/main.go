package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/madeira/residential-services/internal/auth"
	"github.com/madeira/residential-services/internal/config"
	"github.com/madeira/residential-services/internal/database"
	"github.com/madeira/residential-services/internal/handler"
	"github.com/madeira/residential-services/internal/queue"
	"github.com/madeira/residential-services/internal/repository"
	"github.com/madeira/residential-services/internal/router"
	"github.com/madeira/residential-services/internal/service"
	"github.com/madeira/residential-services/pkg/logger"
)

func main() {
	// .env is optional; in containers configuration comes from the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Env != "prod"})

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	categories := repository.NewCategoryRepo(db)
	providers := repository.NewProviderRepo(db)
	reviews := repository.NewReviewRepo(db)
	favorites := repository.NewFavoriteRepo(db)
	audit := repository.NewAuditRepo(db)

	events := service.NewAuthEventPublisher(cfg.AMQPURL, log)
	tokenMgr := auth.NewTokenManager(tokens, cfg.RefreshTTLDays, log)
	validator := auth.NewValidator(users, roles, tokenMgr, events, log)
	codec := auth.NewSessionCodec(cfg.JWTSecret)

	h := router.Handlers{
		Auth: &handler.AuthHandler{
			Cfg: cfg, Validator: validator, Codec: codec, Tokens: tokenMgr,
			Users: users, Roles: roles, Events: events, Log: log,
		},
		Users:    &handler.UserAdminHandler{Users: users, Roles: roles, Tokens: tokenMgr, Log: log},
		Category: &handler.CategoryHandler{Categories: categories},
		Provider: &handler.ProviderHandler{Providers: providers, Log: log},
		Review:   &handler.ReviewHandler{Reviews: reviews, Providers: providers, Log: log},
		Favorite: &handler.FavoriteHandler{Favorites: favorites, Providers: providers},
		Audit:    &handler.AuditHandler{Audit: audit},
		Health:   &handler.HealthHandler{DB: db, Redis: rdb},
	}

	e := router.New(cfg, codec, rdb, h)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The consumer drains auth.events into auth_logs and reconnects on its
	// own; it stops when the signal context is cancelled.
	go queue.NewConsumer(cfg.AMQPURL, audit, log).Run(ctx)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
