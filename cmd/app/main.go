package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mlm-compensation-backend/internal/common/config"
	"mlm-compensation-backend/internal/common/logger"
	"mlm-compensation-backend/internal/common/middleware"
	activationHTTP "mlm-compensation-backend/internal/features/activation/delivery/http"
	activationRepo "mlm-compensation-backend/internal/features/activation/repository/redis"
	activationService "mlm-compensation-backend/internal/features/activation/service"
	memberHTTP "mlm-compensation-backend/internal/features/member/delivery/http"
	memberRepo "mlm-compensation-backend/internal/features/member/repository/redis"
	memberService "mlm-compensation-backend/internal/features/member/service"
	walletHTTP "mlm-compensation-backend/internal/features/wallet/delivery/http"
	walletRepo "mlm-compensation-backend/internal/features/wallet/repository/redis"
	walletService "mlm-compensation-backend/internal/features/wallet/service"
	"mlm-compensation-backend/internal/platform/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init("mlm-compensation-backend", cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("Starting MLM compensation backend")

	ctx := context.Background()
	redisClient, err := redis.Open(ctx,
		fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Msg("Redis connection established")

	memberRepository := memberRepo.NewMemberRepository(redisClient)
	transactionRepository := activationRepo.NewTransactionRepository(redisClient)
	walletRepository := walletRepo.NewWalletRepository(redisClient)

	memberSvc := memberService.NewMemberService(memberRepository, cfg)
	activationSvc := activationService.NewActivationService(memberRepository, transactionRepository, cfg)
	walletSvc := walletService.NewWalletService(memberRepository, walletRepository, cfg)

	if err := memberSvc.EnsureRoot(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to seed root member")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Authenticate(cfg.Auth.JWTSecret))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	memberHTTP.NewMemberHandler(memberSvc).RegisterRoutes(v1)
	activationHTTP.NewActivationHandler(activationSvc).RegisterRoutes(v1)
	walletHTTP.NewWalletHandler(walletSvc).RegisterRoutes(v1)

	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "mlm-compensation-backend",
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
