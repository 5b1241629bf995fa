package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/profitsharing"
)

var (
	ErrMissingOrder    = errors.New("parent order missing")
	ErrMissingMerchant = errors.New("merchant missing")
)

const (
	defaultLockTTL = 2 * time.Minute
	maxReasonLen   = 64
)

// Orchestrator is the subset of the order service the jobs re-drive.
type Orchestrator interface {
	QueryStatus(ctx context.Context, m *merchant.Merchant, subMchID, outOrderNo, transactionID string) (*profitsharing.Order, error)
	UnfreezeRemaining(ctx context.Context, m *merchant.Merchant, req profitsharing.UnfreezeRequest) (*profitsharing.Order, error)
}

type MerchantLookup interface {
	Lookup(ctx context.Context, mchID string) (*merchant.Merchant, error)
}

// Runner executes retry, sync and unfreeze batches. Candidates are processed one at a time,
// each inside its own failure boundary.
type Runner struct {
	ledger    *profitsharing.Database
	orders    Orchestrator
	merchants MerchantLookup
	locker    Locker
	lockTTL   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

type Option func(*Runner)

func WithLocker(l Locker, ttl time.Duration) Option {
	return func(r *Runner) {
		r.locker = l
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func NewRunner(ledger *profitsharing.Database, orders Orchestrator, merchants MerchantLookup, opts ...Option) *Runner {
	r := &Runner{
		ledger:    ledger,
		orders:    orders,
		merchants: merchants,
		locker:    NopLocker{},
		lockTTL:   defaultLockTTL,
		now:       time.Now,
		logger:    log.With().Str("component", "jobs").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolveMerchant separates a missing merchant, which is structural, from a store error.
func (r *Runner) resolveMerchant(ctx context.Context, mchID string) (*merchant.Merchant, error) {
	m, err := r.merchants.Lookup(ctx, mchID)
	if errors.Is(err, merchant.ErrMerchantNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingMerchant, mchID)
	}
	if err != nil {
		return nil, fmt.Errorf("look up merchant %s: %w", mchID, err)
	}
	return m, nil
}

func (r *Runner) lockOrder(ctx context.Context, outOrderNo string) (func(), bool, error) {
	return r.locker.Acquire(ctx, "order:"+outOrderNo, r.lockTTL)
}

// guard turns a panic inside one candidate into a failed outcome.
func (r *Runner) guard(res *CandidateResult) {
	if p := recover(); p != nil {
		r.logger.Error().
			Interface("panic", p).
			Str("out_order_no", res.OutOrderNo).
			Uint("receiver_id", res.ReceiverID).
			Msg("candidate panicked")
		res.Outcome = OutcomeFailed
		res.Reason = fmt.Sprintf("panic: %v", p)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func failed(res CandidateResult, err error) CandidateResult {
	res.Outcome = OutcomeFailed
	res.Reason = err.Error()
	return res
}

func skipped(res CandidateResult, reason string) CandidateResult {
	res.Outcome = OutcomeSkipped
	res.Reason = reason
	return res
}

func succeeded(res CandidateResult, reason string) CandidateResult {
	res.Outcome = OutcomeSuccess
	res.Reason = reason
	return res
}
