package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ksred/klear-profitshare/internal/profitsharing"
)

// RunSync refreshes orders the provider has not finished yet.
func (r *Runner) RunSync(ctx context.Context, p Params) (*Report, error) {
	started := r.now()
	report := newReport("sync", p, started)

	orders, err := r.ledger.FindOrders(ctx, profitsharing.OrderFilter{
		MerchantID:   p.MerchantFilter,
		States:       []profitsharing.OrderState{profitsharing.StateProcessing},
		CreatedAfter: p.since(started),
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to select orders to sync")
		return nil, fmt.Errorf("select orders to sync: %w", err)
	}

	r.logger.Info().Int("candidates", len(orders)).Bool("dry_run", p.DryRun).Msg("starting sync run")

	for i := range orders {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = r.now()
			return report, err
		}
		report.add(r.syncOne(ctx, &orders[i], p))
	}

	report.FinishedAt = r.now()
	report.log(r.logger)
	return report, nil
}

func (r *Runner) syncOne(ctx context.Context, order *profitsharing.Order, p Params) (res CandidateResult) {
	res = CandidateResult{OutOrderNo: order.OutOrderNo}
	defer r.guard(&res)

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

	refreshed, err := r.orders.QueryStatus(ctx, m, order.SubMchID, order.OutOrderNo, order.TransactionID)
	if err != nil {
		r.logger.Warn().Err(err).Str("out_order_no", order.OutOrderNo).Msg("sync query failed")
		return failed(res, err)
	}

	return succeeded(res, "state "+string(refreshed.State))
}
