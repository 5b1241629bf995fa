package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/klear-profitshare/internal/app"
	"github.com/ksred/klear-profitshare/internal/audit"
	"github.com/ksred/klear-profitshare/internal/auth"
	"github.com/ksred/klear-profitshare/internal/config"
	"github.com/ksred/klear-profitshare/internal/jobs"
	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/profitsharing"
	"github.com/ksred/klear-profitshare/pkg/logging"
	"github.com/ksred/klear-profitshare/pkg/middleware"
)

// main runs the profit-share API with graceful shutdown
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty && !cfg.IsProduction())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	authService, err := auth.NewService(cfg.Auth)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize auth")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	router.Use(middleware.NewRateLimiter(ctx, cfg.Server.AuthPerMinute, cfg.Server.RatePerMinute).Handler())

	setupRoutes(
		router,
		authService,
		merchant.NewGinHandlers(a.Merchants),
		profitsharing.NewGinHandlers(a.ProfitSharing, a.Merchants),
		audit.NewGinHandlers(a.Audit),
		jobs.NewGinHandlers(a.Jobs, a.JobParams()),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zlog.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give in-flight provider calls time to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes registers the public token endpoint and the operator API behind JWT auth
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	merchantHandlers *merchant.GinHandlers,
	orderHandlers *profitsharing.GinHandlers,
	auditHandlers *audit.GinHandlers,
	jobHandlers *jobs.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", auth.NewGinHandlers(authService).GenerateTokenHandler())
		}

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(authService.Secret()))

		merchants := protected.Group("/merchants")
		{
			merchants.POST("", merchantHandlers.RegisterHandler())
			merchants.GET("/:mchid", merchantHandlers.GetHandler())
		}

		orders := protected.Group("/profitsharing/orders")
		{
			orders.POST("", orderHandlers.SubmitHandler())
			orders.POST("/unfreeze", orderHandlers.UnfreezeHandler())
			orders.GET("/:out_order_no", orderHandlers.QueryHandler())
			orders.GET("/:out_order_no/local", orderHandlers.LocalHandler())
		}

		protected.GET("/audit/logs", auditHandlers.ListHandler())

		jobGroup := protected.Group("/jobs")
		{
			jobGroup.POST("/retry", jobHandlers.RetryHandler())
			jobGroup.POST("/sync", jobHandlers.SyncHandler())
			jobGroup.POST("/unfreeze", jobHandlers.UnfreezeHandler())
		}
	}
}
