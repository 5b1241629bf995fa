package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ksred/klear-profitshare/internal/profitsharing"
)

// RunRetry re-drives unsettled receivers. The returned error is reserved for candidate
// selection failures and cancellation; per-candidate problems only show up in the report.
func (r *Runner) RunRetry(ctx context.Context, p Params) (*Report, error) {
	started := r.now()
	report := newReport("retry", p, started)

	candidates, err := r.ledger.FindRetryCandidates(ctx, profitsharing.ReceiverFilter{
		MerchantID:   p.MerchantFilter,
		CreatedAfter: p.since(started),
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to select retry candidates")
		return nil, fmt.Errorf("select retry candidates: %w", err)
	}

	r.logger.Info().
		Int("candidates", len(candidates)).
		Bool("dry_run", p.DryRun).
		Msg("starting retry run")

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = r.now()
			return report, err
		}
		report.add(r.retryOne(ctx, &candidates[i], p))
	}

	report.FinishedAt = r.now()
	report.log(r.logger)
	return report, nil
}

func (r *Runner) retryOne(ctx context.Context, rc *profitsharing.Receiver, p Params) (res CandidateResult) {
	res = CandidateResult{ReceiverID: rc.ID, Key: rc.Key().String()}
	defer r.guard(&res)

	logger := r.logger.With().
		Uint("receiver_id", rc.ID).
		Str("key", res.Key).
		Int("retry_count", rc.RetryCount).
		Logger()

	now := r.now()
	interval := p.retryInterval()

	if rc.RetryCount >= p.MaxRetry {
		if !p.DryRun {
			if err := r.ledger.MarkFinallyFailed(ctx, rc.ID); err != nil {
				logger.Error().Err(err).Msg("failed to mark receiver finally failed")
				return failed(res, err)
			}
		}
		logger.Warn().Msg("retry ceiling reached, receiver finally failed")
		res.Outcome = OutcomeCeilingReached
		return res
	}

	if rc.NextRetryAt != nil && rc.NextRetryAt.After(now) {
		return skipped(res, "next retry at "+rc.NextRetryAt.Format(time.RFC3339))
	}
	if now.Sub(rc.UpdatedAt) < interval {
		return skipped(res, "updated within retry interval")
	}

	order, err := r.ledger.GetOrderByID(ctx, rc.SplitOrderID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load parent order")
		return failed(res, err)
	}
	if order == nil {
		return r.structuralFailure(ctx, res, rc, p, fmt.Errorf("%w: id %d", ErrMissingOrder, rc.SplitOrderID))
	}
	res.OutOrderNo = order.OutOrderNo

	m, err := r.resolveMerchant(ctx, order.MerchantID)
	if errors.Is(err, ErrMissingMerchant) {
		return r.structuralFailure(ctx, res, rc, p, err)
	}
	if err != nil {
		return failed(res, err)
	}

	if p.DryRun {
		return succeeded(res, "dry run")
	}

	release, acquired, err := r.lockOrder(ctx, order.OutOrderNo)
	if err != nil {
		logger.Error().Err(err).Msg("lock backend unavailable")
		return failed(res, err)
	}
	if !acquired {
		return skipped(res, "order locked by another run")
	}
	defer release()

	refreshed, qerr := r.orders.QueryStatus(ctx, m, order.SubMchID, order.OutOrderNo, order.TransactionID)

	settled := false
	if qerr == nil {
		if matched := refreshed.FindReceiver(rc.Key()); matched != nil && matched.Result == profitsharing.ResultSuccess {
			settled = true
		}
	}

	retryCount := rc.RetryCount + 1
	next := now.Add(interval)
	nextRetryAt := &next
	if settled {
		nextRetryAt = nil
	}
	if err := r.ledger.UpdateRetryState(ctx, rc.ID, retryCount, nextRetryAt); err != nil {
		logger.Error().Err(err).Msg("failed to record retry attempt")
	}

	if qerr != nil {
		logger.Warn().Err(qerr).Time("next_retry_at", next).Msg("retry query failed")
		return failed(res, qerr)
	}
	if !settled {
		logger.Info().Time("next_retry_at", next).Msg("receiver still unsettled")
		return failed(res, errors.New("receiver not settled"))
	}

	logger.Info().Msg("receiver settled on retry")
	return succeeded(res, "")
}

// structuralFailure reports a data-integrity problem. It never bumps the retry count.
func (r *Runner) structuralFailure(ctx context.Context, res CandidateResult, rc *profitsharing.Receiver, p Params, cause error) CandidateResult {
	r.logger.Error().
		Err(cause).
		Uint("receiver_id", rc.ID).
		Msg("retry candidate has broken references")

	if !p.DryRun {
		if err := r.ledger.SetFailReason(ctx, rc.ID, truncate(cause.Error(), maxReasonLen)); err != nil {
			r.logger.Error().Err(err).Uint("receiver_id", rc.ID).Msg("failed to record fail reason")
		}
	}
	return failed(res, cause)
}
