package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/config"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/crypto"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/database"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/handlers"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/middleware"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/migrations"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/realtime"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/routes"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/services"
	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/store"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	logger.Init(cfg.Env)
	logger.Info().Str("environment", cfg.Env).Msg("Starting messaging service...")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	database.Connect()
	database.InitRedis()

	if err := migrations.NewMigrator(database.DB).Run(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate chat tables")
	}

	// built once; a bad key must stop startup, not fail per message
	codec, err := crypto.NewCodec(cfg.MessageEncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise message cipher")
	}

	allow := middleware.AllowedOrigin(cfg.FrontendURL)
	gateway := realtime.NewGateway(
		middleware.SocketTokenVerifier(database.DB),
		func(r *http.Request) bool { return allow(r.Header.Get("Origin")) },
	)

	// with redis every instance publishes to the shared channel and delivers
	// what it receives to its own sockets
	var sink realtime.Sink = gateway
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if database.Redis != nil {
		sink = realtime.NewRedisSink(database.Redis)
		go realtime.Subscribe(ctx, database.Redis, gateway)
	}
	hub := realtime.NewHub(sink, cfg.RealtimeQueueLen)
	hub.Start()

	chat := services.NewChatService(
		store.NewConversationStore(database.DB),
		store.NewMessageStore(database.DB),
		codec,
		services.NewSocialGraphGate(database.DB),
		services.NewUserDirectory(database.DB),
		hub,
	)
	gateway.Attach(chat)
	gateway.Serve()

	limiterStop := make(chan struct{})
	middleware.GeneralLimiter.StartPruning(limiterStop)
	middleware.ChatLimiter.StartPruning(limiterStop)

	r := routes.NewRouter(routes.Deps{
		DB:          database.DB,
		Redis:       database.Redis,
		Chat:        handlers.NewChatHandler(chat, cfg.HistoryPageSize),
		Socket:      gateway.Handler(),
		FrontendURL: cfg.FrontendURL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := gateway.Close(); err != nil {
		logger.Warn().Err(err).Msg("socket.io close")
	}
	hub.Close()
	stop()
	close(limiterStop)

	logger.Info().Msg("Server exited gracefully")
}
