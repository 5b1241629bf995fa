package profitsharing

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"

	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/provider"
	"github.com/ksred/klear-profitshare/pkg/response"
)

// MerchantLookup resolves the signing merchant for a request.
type MerchantLookup interface {
	Lookup(ctx context.Context, mchID string) (*merchant.Merchant, error)
}

type OrderView struct {
	OutOrderNo      string         `json:"out_order_no"`
	MerchantID      string         `json:"mchid"`
	SubMchID        string         `json:"sub_mchid,omitempty"`
	TransactionID   string         `json:"transaction_id"`
	OrderID         string         `json:"order_id,omitempty"`
	State           OrderState     `json:"state"`
	UnfreezeUnsplit bool           `json:"unfreeze_unsplit"`
	UnsplitAmount   int64          `json:"unsplit_amount"`
	FinishTime      string         `json:"finish_time,omitempty"`
	SuccessTime     string         `json:"success_time,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Payees          []ReceiverView `json:"receivers"`
}

type ReceiverView struct {
	Sequence      int            `json:"sequence"`
	Type          string         `json:"type"`
	Account       string         `json:"account"`
	Name          string         `json:"name,omitempty"`
	Amount        int64          `json:"amount"`
	AmountYuan    string         `json:"amount_yuan"`
	Description   string         `json:"description"`
	Result        ReceiverResult `json:"result"`
	FailReason    string         `json:"fail_reason,omitempty"`
	DetailID      string         `json:"detail_id,omitempty"`
	FinishAmount  int64          `json:"finish_amount"`
	FinishTime    string         `json:"finish_time,omitempty"`
	RetryCount    int            `json:"retry_count"`
	NextRetryAt   *time.Time     `json:"next_retry_at,omitempty"`
	FinallyFailed bool           `json:"finally_failed"`
}

// NewOrderView flattens an order for API responses.
func NewOrderView(order *Order) (*OrderView, error) {
	var view OrderView
	if err := copier.Copy(&view, order); err != nil {
		return nil, err
	}
	if err := copier.Copy(&view.Payees, &order.Receivers); err != nil {
		return nil, err
	}
	for i := range view.Payees {
		view.Payees[i].AmountYuan = provider.FormatYuan(view.Payees[i].Amount)
	}
	return &view, nil
}

type submitBody struct {
	MchID string `json:"mchid" binding:"required"`
	SplitRequest
}

type unfreezeBody struct {
	MchID string `json:"mchid" binding:"required"`
	UnfreezeRequest
}

type GinHandlers struct {
	service   *Service
	merchants MerchantLookup
}

func NewGinHandlers(service *Service, merchants MerchantLookup) *GinHandlers {
	return &GinHandlers{
		service:   service,
		merchants: merchants,
	}
}

func (h *GinHandlers) SubmitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body submitBody
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		m, err := h.merchants.Lookup(c.Request.Context(), body.MchID)
		if err != nil {
			h.respond(c, nil, err)
			return
		}

		order, err := h.service.RequestSplit(c.Request.Context(), m, body.SplitRequest)
		h.respond(c, order, err)
	}
}

func (h *GinHandlers) QueryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := h.merchants.Lookup(c.Request.Context(), c.Query("mchid"))
		if err != nil {
			h.respond(c, nil, err)
			return
		}

		order, err := h.service.QueryStatus(c.Request.Context(), m,
			c.Query("sub_mchid"), c.Param("out_order_no"), c.Query("transaction_id"))
		h.respond(c, order, err)
	}
}

func (h *GinHandlers) LocalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.GetLocal(c.Request.Context(), c.Param("out_order_no"))
		h.respond(c, order, err)
	}
}

func (h *GinHandlers) UnfreezeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body unfreezeBody
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		m, err := h.merchants.Lookup(c.Request.Context(), body.MchID)
		if err != nil {
			h.respond(c, nil, err)
			return
		}

		order, err := h.service.UnfreezeRemaining(c.Request.Context(), m, body.UnfreezeRequest)
		h.respond(c, order, err)
	}
}

func (h *GinHandlers) respond(c *gin.Context, order *Order, err error) {
	switch {
	case errors.Is(err, ErrNoReceivers), errors.Is(err, ErrInvalidRequest):
		response.ValidationFailed(c, err.Error())
		return
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, merchant.ErrMerchantNotFound):
		response.NotFound(c, err.Error())
		return
	case err != nil:
		response.Handle(c, nil, err)
		return
	}

	view, err := NewOrderView(order)
	response.Handle(c, view, err)
}
