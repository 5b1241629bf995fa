package profitsharing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/provider"
	"github.com/ksred/klear-profitshare/pkg/response"
)

type staticMerchants map[string]*merchant.Merchant

func (s staticMerchants) Lookup(ctx context.Context, mchID string) (*merchant.Merchant, error) {
	if m, ok := s[mchID]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", merchant.ErrMerchantNotFound, mchID)
}

func newTestRouter(t *testing.T, client *fakeProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _, _ := newTestService(t, client)
	h := NewGinHandlers(svc, staticMerchants{testMerchant.MchID: testMerchant})

	r := gin.New()
	r.POST("/orders", h.SubmitHandler())
	r.GET("/orders/:out_order_no", h.QueryHandler())
	r.GET("/orders/:out_order_no/local", h.LocalHandler())
	r.POST("/orders/unfreeze", h.UnfreezeHandler())
	return r
}

func doJSON(r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestSubmitHandler(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{submitResp: provider.Payload{"state": "PROCESSING"}})

	body := map[string]any{
		"mchid":          testMerchant.MchID,
		"transaction_id": "4208450740201411110007820472",
		"out_order_no":   "H1",
		"receivers": []map[string]any{
			{"type": "MERCHANT_ID", "account": "1900000109", "amount": 12345, "description": "share"},
		},
	}
	w, resp := doJSON(r, http.MethodPost, "/orders", body)
	if w.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	data, _ := json.Marshal(resp.Data)
	var view OrderView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.OutOrderNo != "H1" || len(view.Payees) != 1 {
		t.Fatalf("view = %+v", view)
	}
	if view.Payees[0].AmountYuan != "123.45" {
		t.Fatalf("amount_yuan = %q", view.Payees[0].AmountYuan)
	}
}

func TestSubmitHandlerValidation(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{})

	w, resp := doJSON(r, http.MethodPost, "/orders", map[string]any{
		"mchid":          testMerchant.MchID,
		"transaction_id": "tx",
		"out_order_no":   "H2",
		"receivers":      []any{},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != response.ErrCodeValidationFailed {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestSubmitHandlerUnknownMerchant(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{})

	w, _ := doJSON(r, http.MethodPost, "/orders", map[string]any{
		"mchid":          "nobody",
		"transaction_id": "tx",
		"out_order_no":   "H3",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestQueryHandlerProviderError(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{err: &provider.Error{StatusCode: 404, Code: "RESOURCE_NOT_EXISTS", Message: "no such order"}})

	w, resp := doJSON(r, http.MethodGet, "/orders/H4?mchid="+testMerchant.MchID, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.Error == nil || resp.Error.Code != "RESOURCE_NOT_EXISTS" {
		t.Fatalf("error = %+v", resp.Error)
	}
}

func TestLocalHandlerNotFound(t *testing.T) {
	r := newTestRouter(t, &fakeProvider{})

	w, _ := doJSON(r, http.MethodGet, "/orders/H5/local", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
