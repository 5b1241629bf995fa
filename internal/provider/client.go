package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/klear-profitshare/internal/merchant"
)

const (
	ordersPath   = "/v3/profitsharing/orders"
	unfreezePath = "/v3/profitsharing/orders/unfreeze"

	maxResponseBytes = 1 << 20
)

// HTTPClient talks to the provider's v3 JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.With().Str("component", "provider").Logger(),
	}
}

func (c *HTTPClient) SubmitSplit(ctx context.Context, m *merchant.Merchant, payload Payload) (Payload, error) {
	return c.do(ctx, m, http.MethodPost, ordersPath, nil, payload)
}

func (c *HTTPClient) QueryStatus(ctx context.Context, m *merchant.Merchant, q Query) (Payload, error) {
	params := url.Values{}
	if q.SubMchID != "" {
		params.Set("sub_mchid", q.SubMchID)
	}
	if q.TransactionID != "" {
		params.Set("transaction_id", q.TransactionID)
	}
	path := ordersPath + "/" + url.PathEscape(q.OutOrderNo)
	return c.do(ctx, m, http.MethodGet, path, params, nil)
}

func (c *HTTPClient) Unfreeze(ctx context.Context, m *merchant.Merchant, payload Payload) (Payload, error) {
	return c.do(ctx, m, http.MethodPost, unfreezePath, nil, payload)
}

func (c *HTTPClient) do(ctx context.Context, m *merchant.Merchant, method, path string, params url.Values, payload Payload) (Payload, error) {
	signer, err := NewSigner(m)
	if err != nil {
		return nil, err
	}

	canonical := path
	if len(params) > 0 {
		canonical += "?" + params.Encode()
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode provider request: %w", err)
		}
	}

	auth, err := signer.Authorization(method, canonical, body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+canonical, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Str("mchid", m.MchID).
			Msg("provider request failed")
		return nil, fmt.Errorf("provider request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("provider call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &Error{StatusCode: resp.StatusCode}
		if decoded, derr := ParsePayload(raw); derr == nil {
			perr.Code, _ = decoded.GetString("code")
			perr.Message, _ = decoded.GetString("message")
		}
		if perr.Message == "" {
			perr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, perr
	}

	return ParsePayload(raw)
}
