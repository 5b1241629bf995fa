package jobs

import (
	"time"
)

const (
	DefaultMaxRetry             = 3
	DefaultRetryIntervalMinutes = 30
	DefaultLookbackDays         = 7
)

// Params are the knobs shared by every batch run.
type Params struct {
	DryRun               bool   `json:"dry_run" mapstructure:"dry_run"`
	MaxRetry             int    `json:"max_retry" mapstructure:"max_retry" validate:"gte=0"`
	RetryIntervalMinutes int    `json:"retry_interval_minutes" mapstructure:"retry_interval_minutes" validate:"gte=0"`
	MerchantFilter       string `json:"merchant_filter,omitempty" mapstructure:"merchant_filter"`
	LookbackDays         int    `json:"lookback_days" mapstructure:"lookback_days" validate:"gte=0"`
}

func DefaultParams() Params {
	return Params{
		MaxRetry:             DefaultMaxRetry,
		RetryIntervalMinutes: DefaultRetryIntervalMinutes,
		LookbackDays:         DefaultLookbackDays,
	}
}

func (p Params) retryInterval() time.Duration {
	return time.Duration(p.RetryIntervalMinutes) * time.Minute
}

func (p Params) since(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.LookbackDays)
}
