package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type upstreamErr struct{ code, msg string }

func (e upstreamErr) Error() string           { return e.code + ": " + e.msg }
func (e upstreamErr) UpstreamCode() string    { return e.code }
func (e upstreamErr) UpstreamMessage() string { return e.msg }

func run(method string, data interface{}, err error) (*httptest.ResponseRecorder, Response) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", nil)
	Handle(c, data, err)

	var resp Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHandle(t *testing.T) {
	type payload struct {
		Amount int `validate:"gt=0"`
	}
	validationErr := validator.New().Struct(payload{})

	tests := []struct {
		name     string
		method   string
		err      error
		wantCode int
		wantErr  string
	}{
		{"get success", http.MethodGet, nil, http.StatusOK, ""},
		{"post success", http.MethodPost, nil, http.StatusCreated, ""},
		{"not found", http.MethodGet, fmt.Errorf("load: %w", gorm.ErrRecordNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"duplicate", http.MethodPost, gorm.ErrDuplicatedKey, http.StatusConflict, ErrCodeDuplicateResource},
		{"validation", http.MethodPost, validationErr, http.StatusBadRequest, ErrCodeValidationFailed},
		{"upstream", http.MethodPost, fmt.Errorf("submit: %w", upstreamErr{"PARAM_ERROR", "bad"}), http.StatusBadGateway, "PARAM_ERROR"},
		{"upstream without code", http.MethodPost, upstreamErr{"", "down"}, http.StatusBadGateway, ErrCodeUpstream},
		{"unexpected", http.MethodGet, errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := run(tt.method, map[string]string{"ok": "yes"}, tt.err)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantErr == "" {
				if !resp.Success || resp.Error != nil {
					t.Fatalf("resp = %+v", resp)
				}
				return
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantErr {
				t.Fatalf("resp = %+v", resp)
			}
		})
	}
}
