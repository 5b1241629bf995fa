package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ksred/klear-profitshare/internal/merchant"
)

var ErrMissingCredentials = errors.New("merchant has no signing credentials")

// Error is a non-2xx answer from the provider.
type Error struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *Error) UpstreamCode() string {
	return e.Code
}

func (e *Error) UpstreamMessage() string {
	return e.Message
}

// Query identifies one split order on the provider side.
type Query struct {
	SubMchID      string
	OutOrderNo    string
	TransactionID string
}

// Client sends profit-share requests to the payment provider.
// Every call is a blocking round trip and returns either the decoded body or an error.
type Client interface {
	SubmitSplit(ctx context.Context, m *merchant.Merchant, payload Payload) (Payload, error)
	QueryStatus(ctx context.Context, m *merchant.Merchant, q Query) (Payload, error)
	Unfreeze(ctx context.Context, m *merchant.Merchant, payload Payload) (Payload, error)
}

// ErrorDetails extracts the audit code and message for any error returned by a Client.
func ErrorDetails(err error) (code, message string) {
	if err == nil {
		return "", ""
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code, perr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT", err.Error()
	}
	return "TRANSPORT_ERROR", err.Error()
}
