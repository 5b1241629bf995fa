package profitsharing

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type OrderState string

const (
	StateProcessing OrderState = "PROCESSING"
	StateFinished   OrderState = "FINISHED"
	StateClosed     OrderState = "CLOSED"
)

// ParseOrderState reports whether s names a known order state.
func ParseOrderState(s string) (OrderState, bool) {
	switch OrderState(s) {
	case StateProcessing, StateFinished, StateClosed:
		return OrderState(s), true
	default:
		return "", false
	}
}

// CanTransitionTo enforces PROCESSING -> FINISHED|CLOSED. An unset state may take any value.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	switch s {
	case "":
		return true
	case StateProcessing:
		return next == StateProcessing || next == StateFinished || next == StateClosed
	case StateFinished, StateClosed:
		return next == s
	default:
		return false
	}
}

type ReceiverResult string

const (
	ResultPending ReceiverResult = "PENDING"
	ResultSuccess ReceiverResult = "SUCCESS"
	ResultClosed  ReceiverResult = "CLOSED"
	ResultFailed  ReceiverResult = "FAILED"
)

// ParseProviderResult translates a provider result string.
// PENDING and unknown values are rejected so reconciliation never resets a receiver.
func ParseProviderResult(s string) (ReceiverResult, bool) {
	switch ReceiverResult(s) {
	case ResultSuccess, ResultClosed, ResultFailed:
		return ReceiverResult(s), true
	default:
		return "", false
	}
}

// Retryable reports whether the scheduler may still pick up a receiver with this result.
func (r ReceiverResult) Retryable() bool {
	switch r {
	case ResultPending, ResultFailed:
		return true
	case ResultSuccess, ResultClosed:
		return false
	default:
		return false
	}
}

// Order is one split request against a single payment transaction.
type Order struct {
	ID                 uint           `gorm:"primaryKey" json:"-"`
	OutOrderNo         string         `gorm:"size:64;uniqueIndex;not null" json:"out_order_no"`
	MerchantID         string         `gorm:"size:32;index" json:"mchid"`
	SubMchID           string         `gorm:"size:32" json:"sub_mchid,omitempty"`
	TransactionID      string         `gorm:"size:64;index" json:"transaction_id"`
	OrderID            string         `gorm:"size:64" json:"order_id,omitempty"`
	State              OrderState     `gorm:"size:16;index" json:"state"`
	UnfreezeUnsplit    bool           `json:"unfreeze_unsplit"`
	UnsplitAmount      int64          `json:"unsplit_amount"`
	RequestPayload     datatypes.JSON `json:"-"`
	ResponsePayload    datatypes.JSON `json:"-"`
	ProviderCreateTime string         `gorm:"size:32" json:"provider_create_time,omitempty"`
	ProviderFinishTime string         `gorm:"size:32" json:"provider_finish_time,omitempty"`
	FinishTime         string         `gorm:"size:32" json:"finish_time,omitempty"`
	SuccessTime        string         `gorm:"size:32" json:"success_time,omitempty"`
	Receivers          []Receiver     `gorm:"foreignKey:SplitOrderID;constraint:OnDelete:CASCADE" json:"receivers"`
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (Order) TableName() string {
	return "split_orders"
}

// Receiver is one payee line within an Order.
type Receiver struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SplitOrderID  uint           `gorm:"index;not null" json:"-"`
	Sequence      int            `json:"sequence"`
	Type          string         `gorm:"size:32" json:"type"`
	Account       string         `gorm:"size:64" json:"account"`
	Name          string         `gorm:"size:64" json:"name,omitempty"`
	Amount        int64          `json:"amount"`
	Description   string         `gorm:"size:80" json:"description"`
	Result        ReceiverResult `gorm:"size:16;index" json:"result"`
	FailReason    string         `gorm:"size:64" json:"fail_reason,omitempty"`
	DetailID      string         `gorm:"size:64" json:"detail_id,omitempty"`
	FinishAmount  int64          `json:"finish_amount"`
	FinishTime    string         `gorm:"size:32" json:"finish_time,omitempty"`
	Detail        datatypes.JSON `json:"-"`
	RetryCount    int            `json:"retry_count"`
	NextRetryAt   *time.Time     `json:"next_retry_at,omitempty"`
	FinallyFailed bool           `gorm:"index" json:"finally_failed"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Receiver) TableName() string {
	return "split_receivers"
}

// CorrelationKey matches local receivers against provider rows.
// The provider assigns no receiver id at submission, so (type, account, amount) is the only shared identity.
type CorrelationKey struct {
	Type    string
	Account string
	Amount  int64
}

func (k CorrelationKey) String() string {
	return fmt.Sprintf("%s|%s|%d", k.Type, k.Account, k.Amount)
}

func (r *Receiver) Key() CorrelationKey {
	return CorrelationKey{Type: r.Type, Account: r.Account, Amount: r.Amount}
}

// FindReceiver returns the receiver of o matching key, or nil.
func (o *Order) FindReceiver(key CorrelationKey) *Receiver {
	for i := range o.Receivers {
		if o.Receivers[i].Key() == key {
			return &o.Receivers[i]
		}
	}
	return nil
}
