package profitsharing

import (
	"github.com/ksred/klear-profitshare/internal/provider"
)

// ApplyResponse merges a provider response into the order aggregate.
// Missing or mistyped fields carry no information and are skipped; the merge never fails.
func ApplyResponse(order *Order, resp provider.Payload) {
	if order == nil || resp == nil {
		return
	}

	applyOrderFields(order, resp)

	rows, ok := resp.List("receivers")
	if !ok {
		return
	}

	incoming := make(map[CorrelationKey]provider.Payload, len(rows))
	for _, row := range rows {
		key, ok := rowKey(row)
		if !ok {
			continue
		}
		incoming[key] = row
	}

	local := make(map[CorrelationKey]*Receiver, len(order.Receivers))
	for i := range order.Receivers {
		local[order.Receivers[i].Key()] = &order.Receivers[i]
	}

	for key, row := range incoming {
		r, ok := local[key]
		if !ok {
			continue
		}
		applyReceiverRow(r, row)
	}

	applyTimeline(order, rows)
}

func applyOrderFields(order *Order, resp provider.Payload) {
	if s, ok := resp.GetString("state"); ok {
		if next, ok := ParseOrderState(s); ok && order.State.CanTransitionTo(next) {
			order.State = next
		}
	}

	// order_id mirrors the provider snapshot, including its absence.
	orderID, _ := resp.GetString("order_id")
	order.OrderID = orderID

	if txID, ok := resp.NonEmptyString("transaction_id"); ok {
		order.TransactionID = txID
	}
	if v, ok := resp.NonEmptyString("create_time"); ok {
		order.ProviderCreateTime = v
	}
	if v, ok := resp.NonEmptyString("finish_time"); ok {
		order.ProviderFinishTime = v
	}
	if amt, ok := resp.Amount("unfreeze_unsplit_amount"); ok {
		order.UnsplitAmount = amt
	}

	if raw := resp.JSON(); raw != nil {
		order.ResponsePayload = raw
	}
}

func rowKey(row provider.Payload) (CorrelationKey, bool) {
	typ, ok := row.NonEmptyString("type")
	if !ok {
		return CorrelationKey{}, false
	}
	account, ok := row.NonEmptyString("account")
	if !ok {
		return CorrelationKey{}, false
	}
	amount, ok := row.Amount("amount")
	if !ok {
		return CorrelationKey{}, false
	}
	return CorrelationKey{Type: typ, Account: account, Amount: amount}, true
}

func applyReceiverRow(r *Receiver, row provider.Payload) {
	if raw := row.JSON(); raw != nil {
		r.Detail = raw
	}
	if amt, ok := row.Amount("amount"); ok {
		r.FinishAmount = amt
	}
	if s, ok := row.GetString("result"); ok {
		if result, ok := ParseProviderResult(s); ok {
			r.Result = result
		}
	}
	if v, ok := row.NonEmptyString("detail_id"); ok {
		r.DetailID = v
	}
	if v, ok := row.NonEmptyString("fail_reason"); ok {
		r.FailReason = v
	}
	if v, ok := row.NonEmptyString("finish_time"); ok {
		r.FinishTime = v
	}
}

// applyTimeline uses string ordering; provider timestamps are fixed-width RFC 3339.
func applyTimeline(order *Order, rows []provider.Payload) {
	var latest, earliestSuccess string
	for _, row := range rows {
		ft, ok := row.NonEmptyString("finish_time")
		if !ok {
			continue
		}
		if ft > latest {
			latest = ft
		}
		if result, _ := row.GetString("result"); result == string(ResultSuccess) {
			if earliestSuccess == "" || ft < earliestSuccess {
				earliestSuccess = ft
			}
		}
	}

	if latest != "" {
		order.FinishTime = latest
	}
	if earliestSuccess != "" {
		order.SuccessTime = earliestSuccess
	}
}
