package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/klear-profitshare/internal/audit"
	"github.com/ksred/klear-profitshare/internal/config"
	"github.com/ksred/klear-profitshare/internal/database"
	"github.com/ksred/klear-profitshare/internal/jobs"
	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/profitsharing"
	"github.com/ksred/klear-profitshare/internal/provider"
)

// App holds the services shared by the HTTP server and the batch CLI.
type App struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Merchants     *merchant.Service
	Audit         *audit.Service
	ProfitSharing *profitsharing.Service
	Jobs          *jobs.Runner
}

// New opens the store and wires services. Redis is only dialled when enabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Merchants: merchant.NewService(db),
		Audit:     audit.NewService(db),
	}

	client := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.Timeout)
	a.ProfitSharing = profitsharing.NewService(db, client, a.Audit)

	var opts []jobs.Option
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = rdb
		opts = append(opts, jobs.WithLocker(jobs.NewRedisLocker(rdb, cfg.Redis.KeyPrefix), cfg.Redis.LockTTL))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("per-order job lock enabled")
	}

	a.Jobs = jobs.NewRunner(a.ProfitSharing.Database(), a.ProfitSharing, a.Merchants, opts...)
	return a, nil
}

// JobParams converts the configured job defaults.
func (a *App) JobParams() jobs.Params {
	j := a.Config.Jobs
	return jobs.Params{
		DryRun:               j.DryRun,
		MaxRetry:             j.MaxRetry,
		RetryIntervalMinutes: j.RetryIntervalMinutes,
		MerchantFilter:       j.MerchantFilter,
		LookbackDays:         j.LookbackDays,
	}
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
