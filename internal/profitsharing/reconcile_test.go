package profitsharing

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/ksred/klear-profitshare/internal/provider"
)

func twoReceiverOrder() *Order {
	return &Order{
		OutOrderNo:    "P100",
		TransactionID: "tx-100",
		State:         StateProcessing,
		Receivers: []Receiver{
			{Sequence: 1, Type: "MERCHANT_ID", Account: "A", Amount: 100, Result: ResultPending},
			{Sequence: 2, Type: "PERSONAL_OPENID", Account: "B", Amount: 50, Result: ResultPending},
		},
	}
}

func row(typ, account string, amount int64, result, finishTime string) map[string]any {
	r := map[string]any{
		"type":    typ,
		"account": account,
		"amount":  json.Number(strconv.FormatInt(amount, 10)),
	}
	if result != "" {
		r["result"] = result
	}
	if finishTime != "" {
		r["finish_time"] = finishTime
	}
	return r
}

func TestApplyResponseCorrelatesByTupleNotPosition(t *testing.T) {
	order := twoReceiverOrder()

	ApplyResponse(order, provider.Payload{
		"state": "FINISHED",
		"receivers": []any{
			row("PERSONAL_OPENID", "B", 50, "FAILED", ""),
			row("MERCHANT_ID", "A", 100, "SUCCESS", ""),
		},
	})

	if got := order.Receivers[0].Result; got != ResultSuccess {
		t.Fatalf("receiver A result = %s, want SUCCESS", got)
	}
	if got := order.Receivers[1].Result; got != ResultFailed {
		t.Fatalf("receiver B result = %s, want FAILED", got)
	}
	if order.Receivers[0].FinishAmount != 100 || order.Receivers[1].FinishAmount != 50 {
		t.Fatalf("finish amounts = %d, %d", order.Receivers[0].FinishAmount, order.Receivers[1].FinishAmount)
	}
	if len(order.Receivers[0].Detail) == 0 {
		t.Fatal("detail snapshot was not stored")
	}
}

func TestApplyResponseNeverRegressesResult(t *testing.T) {
	order := twoReceiverOrder()
	order.Receivers[0].Result = ResultSuccess

	// Receiver A omitted entirely.
	ApplyResponse(order, provider.Payload{
		"receivers": []any{row("PERSONAL_OPENID", "B", 50, "PENDING", "")},
	})
	if order.Receivers[0].Result != ResultSuccess {
		t.Fatalf("omitted receiver changed to %s", order.Receivers[0].Result)
	}
	if order.Receivers[1].Result != ResultPending {
		t.Fatalf("PENDING row should leave result untouched, got %s", order.Receivers[1].Result)
	}

	// Receiver A present with an unrecognized result.
	ApplyResponse(order, provider.Payload{
		"receivers": []any{row("MERCHANT_ID", "A", 100, "SOMETHING_NEW", "")},
	})
	if order.Receivers[0].Result != ResultSuccess {
		t.Fatalf("unknown result regressed receiver to %s", order.Receivers[0].Result)
	}

	// Receiver A present with PENDING.
	ApplyResponse(order, provider.Payload{
		"receivers": []any{row("MERCHANT_ID", "A", 100, "PENDING", "")},
	})
	if order.Receivers[0].Result != ResultSuccess {
		t.Fatalf("PENDING regressed receiver to %s", order.Receivers[0].Result)
	}
}

func TestApplyResponseTimeline(t *testing.T) {
	order := twoReceiverOrder()
	order.Receivers[1].Type = "MERCHANT_ID"

	ApplyResponse(order, provider.Payload{
		"receivers": []any{
			row("MERCHANT_ID", "B", 50, "SUCCESS", "2024-01-01T12:00:00+08:00"),
			row("MERCHANT_ID", "A", 100, "SUCCESS", "2024-01-01T10:00:00+08:00"),
		},
	})

	if order.SuccessTime != "2024-01-01T10:00:00+08:00" {
		t.Fatalf("successTime = %q", order.SuccessTime)
	}
	if order.FinishTime != "2024-01-01T12:00:00+08:00" {
		t.Fatalf("finishTime = %q", order.FinishTime)
	}
	if order.Receivers[0].FinishTime != "2024-01-01T10:00:00+08:00" {
		t.Fatalf("receiver finish time = %q", order.Receivers[0].FinishTime)
	}
}

func TestApplyResponseTimelineIgnoresFailedForSuccessTime(t *testing.T) {
	order := twoReceiverOrder()

	ApplyResponse(order, provider.Payload{
		"receivers": []any{
			row("MERCHANT_ID", "A", 100, "SUCCESS", "2024-01-01T11:00:00+08:00"),
			row("PERSONAL_OPENID", "B", 50, "FAILED", "2024-01-01T09:00:00+08:00"),
		},
	})

	if order.SuccessTime != "2024-01-01T11:00:00+08:00" {
		t.Fatalf("successTime = %q", order.SuccessTime)
	}
	if order.FinishTime != "2024-01-01T11:00:00+08:00" {
		t.Fatalf("finishTime = %q", order.FinishTime)
	}
}

func TestApplyResponseTimelineAbsentWithoutTimestamps(t *testing.T) {
	order := twoReceiverOrder()
	order.FinishTime = "2023-12-31T00:00:00+08:00"

	ApplyResponse(order, provider.Payload{
		"receivers": []any{row("MERCHANT_ID", "A", 100, "SUCCESS", "")},
	})

	if order.FinishTime != "2023-12-31T00:00:00+08:00" {
		t.Fatalf("finishTime changed to %q", order.FinishTime)
	}
	if order.SuccessTime != "" {
		t.Fatalf("successTime = %q, want empty", order.SuccessTime)
	}
}

func TestApplyResponseOrderFields(t *testing.T) {
	order := twoReceiverOrder()
	order.OrderID = "old"

	ApplyResponse(order, provider.Payload{
		"out_order_no":            "SOMETHING_ELSE",
		"order_id":                "3008450740201411110007820472",
		"transaction_id":          "",
		"state":                   "FINISHED",
		"unfreeze_unsplit_amount": json.Number("250"),
	})

	if order.OutOrderNo != "P100" {
		t.Fatalf("out_order_no was rewritten to %q", order.OutOrderNo)
	}
	if order.OrderID != "3008450740201411110007820472" {
		t.Fatalf("order_id = %q", order.OrderID)
	}
	if order.TransactionID != "tx-100" {
		t.Fatalf("empty transaction_id overwrote local value: %q", order.TransactionID)
	}
	if order.State != StateFinished {
		t.Fatalf("state = %s", order.State)
	}
	if order.UnsplitAmount != 250 {
		t.Fatalf("unsplit amount = %d", order.UnsplitAmount)
	}
	if len(order.ResponsePayload) == 0 {
		t.Fatal("response snapshot not stored")
	}

	// Stop early: no receivers key means receivers are untouched.
	if order.Receivers[0].Result != ResultPending {
		t.Fatalf("receivers touched without a receivers list")
	}
}

func TestApplyResponseStateNeverRegresses(t *testing.T) {
	order := twoReceiverOrder()
	order.State = StateFinished

	ApplyResponse(order, provider.Payload{"state": "PROCESSING"})
	if order.State != StateFinished {
		t.Fatalf("state regressed to %s", order.State)
	}

	ApplyResponse(order, provider.Payload{"state": "CLOSED"})
	if order.State != StateFinished {
		t.Fatalf("terminal state changed to %s", order.State)
	}

	ApplyResponse(order, provider.Payload{"state": 42})
	if order.State != StateFinished {
		t.Fatalf("mistyped state changed order to %s", order.State)
	}
}

func TestApplyResponseSkipsIncompleteRows(t *testing.T) {
	order := twoReceiverOrder()

	ApplyResponse(order, provider.Payload{
		"receivers": []any{
			map[string]any{"type": "MERCHANT_ID", "account": "A", "result": "SUCCESS"},
			map[string]any{"type": "MERCHANT_ID", "amount": json.Number("100"), "result": "SUCCESS"},
			map[string]any{"type": "MERCHANT_ID", "account": "A", "amount": json.Number("100.5"), "result": "SUCCESS"},
			"not an object",
		},
	})

	for _, r := range order.Receivers {
		if r.Result != ResultPending {
			t.Fatalf("incomplete row matched receiver %s", r.Account)
		}
	}
}

func TestApplyResponseAcceptsFloatAmounts(t *testing.T) {
	order := twoReceiverOrder()

	ApplyResponse(order, provider.Payload{
		"receivers": []any{
			map[string]any{"type": "MERCHANT_ID", "account": "A", "amount": float64(100), "result": "CLOSED"},
		},
	})

	if order.Receivers[0].Result != ResultClosed {
		t.Fatalf("result = %s, want CLOSED", order.Receivers[0].Result)
	}
}

func TestCorrelationKeyString(t *testing.T) {
	k := CorrelationKey{Type: "MERCHANT_ID", Account: "1900000109", Amount: 100}
	if k.String() != "MERCHANT_ID|1900000109|100" {
		t.Fatalf("key = %q", k.String())
	}
}
