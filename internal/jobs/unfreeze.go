package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ksred/klear-profitshare/internal/profitsharing"
)

const unfreezeDescription = "unfreeze remaining funds"

// RunUnfreeze releases the undistributed remainder of finished orders whose receivers have all settled.
func (r *Runner) RunUnfreeze(ctx context.Context, p Params) (*Report, error) {
	started := r.now()
	report := newReport("unfreeze", p, started)

	notUnfrozen := false
	orders, err := r.ledger.FindOrders(ctx, profitsharing.OrderFilter{
		MerchantID:      p.MerchantFilter,
		States:          []profitsharing.OrderState{profitsharing.StateFinished},
		CreatedAfter:    p.since(started),
		UnfreezeUnsplit: &notUnfrozen,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to select orders to unfreeze")
		return nil, fmt.Errorf("select orders to unfreeze: %w", err)
	}

	r.logger.Info().Int("candidates", len(orders)).Bool("dry_run", p.DryRun).Msg("starting unfreeze run")

	for i := range orders {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = r.now()
			return report, err
		}
		report.add(r.unfreezeOne(ctx, &orders[i], p))
	}

	report.FinishedAt = r.now()
	report.log(r.logger)
	return report, nil
}

func (r *Runner) unfreezeOne(ctx context.Context, order *profitsharing.Order, p Params) (res CandidateResult) {
	res = CandidateResult{OutOrderNo: order.OutOrderNo}
	defer r.guard(&res)

	if hasOutstandingReceivers(order) {
		return skipped(res, "receivers still awaiting settlement")
	}

	m, err := r.resolveMerchant(ctx, order.MerchantID)
	if err != nil {
		if errors.Is(err, ErrMissingMerchant) {
			r.logger.Error().Err(err).Str("out_order_no", order.OutOrderNo).Msg("order references unknown merchant")
		}
		return failed(res, err)
	}

	if p.DryRun {
		return succeeded(res, "dry run")
	}

	release, acquired, err := r.lockOrder(ctx, order.OutOrderNo)
	if err != nil {
		return failed(res, err)
	}
	if !acquired {
		return skipped(res, "order locked by another run")
	}
	defer release()

	updated, err := r.orders.UnfreezeRemaining(ctx, m, profitsharing.UnfreezeRequest{
		SubMchID:      order.SubMchID,
		TransactionID: order.TransactionID,
		OutOrderNo:    order.OutOrderNo,
		Description:   unfreezeDescription,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("out_order_no", order.OutOrderNo).Msg("unfreeze failed")
		return failed(res, err)
	}
	if !updated.UnfreezeUnsplit {
		return failed(res, errors.New("unfreeze flag not set"))
	}

	return succeeded(res, "")
}

// hasOutstandingReceivers reports receivers the retry job may still settle.
func hasOutstandingReceivers(order *profitsharing.Order) bool {
	for _, rc := range order.Receivers {
		if rc.Result.Retryable() && !rc.FinallyFailed {
			return true
		}
	}
	return false
}
