package profitsharing

import (
	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/provider"
)

type ReceiverRequest struct {
	Type        string `json:"type" validate:"required,oneof=MERCHANT_ID PERSONAL_OPENID PERSONAL_SUB_OPENID"`
	Account     string `json:"account" validate:"required,max=64"`
	Name        string `json:"name,omitempty" validate:"max=1024"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description" validate:"required,max=80"`
}

type SplitRequest struct {
	SubMchID        string            `json:"sub_mchid,omitempty" validate:"max=32"`
	SubAppID        string            `json:"sub_appid,omitempty" validate:"max=32"`
	TransactionID   string            `json:"transaction_id" validate:"required,max=32"`
	OutOrderNo      string            `json:"out_order_no" validate:"required,max=64"`
	Receivers       []ReceiverRequest `json:"receivers" validate:"max=50,dive"`
	UnfreezeUnsplit bool              `json:"unfreeze_unsplit"`
}

type UnfreezeRequest struct {
	SubMchID      string `json:"sub_mchid,omitempty" validate:"max=32"`
	TransactionID string `json:"transaction_id" validate:"required,max=32"`
	OutOrderNo    string `json:"out_order_no" validate:"required,max=64"`
	Description   string `json:"description" validate:"required,max=80"`
}

func buildSplitPayload(m *merchant.Merchant, req SplitRequest) provider.Payload {
	receivers := make([]any, 0, len(req.Receivers))
	for _, r := range req.Receivers {
		row := map[string]any{
			"type":        r.Type,
			"account":     r.Account,
			"amount":      r.Amount,
			"description": r.Description,
		}
		if r.Name != "" {
			row["name"] = r.Name
		}
		receivers = append(receivers, row)
	}

	payload := provider.Payload{
		"appid":            m.AppID,
		"transaction_id":   req.TransactionID,
		"out_order_no":     req.OutOrderNo,
		"receivers":        receivers,
		"unfreeze_unsplit": req.UnfreezeUnsplit,
	}
	if req.SubMchID != "" {
		payload["sub_mchid"] = req.SubMchID
	}
	if req.SubAppID != "" {
		payload["sub_appid"] = req.SubAppID
	}
	return payload
}

func buildUnfreezePayload(req UnfreezeRequest) provider.Payload {
	payload := provider.Payload{
		"transaction_id": req.TransactionID,
		"out_order_no":   req.OutOrderNo,
		"description":    req.Description,
	}
	if req.SubMchID != "" {
		payload["sub_mchid"] = req.SubMchID
	}
	return payload
}

func newOrder(m *merchant.Merchant, req SplitRequest) *Order {
	order := &Order{
		OutOrderNo:      req.OutOrderNo,
		MerchantID:      m.MchID,
		SubMchID:        req.SubMchID,
		TransactionID:   req.TransactionID,
		State:           StateProcessing,
		UnfreezeUnsplit: req.UnfreezeUnsplit,
		Receivers:       make([]Receiver, 0, len(req.Receivers)),
	}
	for i, r := range req.Receivers {
		order.Receivers = append(order.Receivers, Receiver{
			Sequence:    i + 1,
			Type:        r.Type,
			Account:     r.Account,
			Name:        r.Name,
			Amount:      r.Amount,
			Description: r.Description,
			Result:      ResultPending,
		})
	}
	return order
}

// synthesizeOrder builds a local record for an order first seen through a provider response.
func synthesizeOrder(m *merchant.Merchant, subMchID, outOrderNo, transactionID string, resp provider.Payload) *Order {
	order := &Order{
		OutOrderNo:    outOrderNo,
		MerchantID:    m.MchID,
		SubMchID:      subMchID,
		TransactionID: transactionID,
		State:         StateProcessing,
	}
	if order.SubMchID == "" {
		order.SubMchID, _ = resp.GetString("sub_mchid")
	}

	rows, _ := resp.List("receivers")
	seen := make(map[CorrelationKey]bool, len(rows))
	for _, row := range rows {
		key, ok := rowKey(row)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		desc, _ := row.GetString("description")
		order.Receivers = append(order.Receivers, Receiver{
			Sequence:    len(order.Receivers) + 1,
			Type:        key.Type,
			Account:     key.Account,
			Amount:      key.Amount,
			Description: desc,
			Result:      ResultPending,
		})
	}
	return order
}
