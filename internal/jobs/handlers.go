package jobs

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ksred/klear-profitshare/pkg/response"
)

type runFunc func(ctx context.Context, p Params) (*Report, error)

type GinHandlers struct {
	runner   *Runner
	defaults Params
	validate *validator.Validate
}

// NewGinHandlers fills fields missing from a request body with defaults.
func NewGinHandlers(runner *Runner, defaults Params) *GinHandlers {
	return &GinHandlers{
		runner:   runner,
		defaults: defaults,
		validate: validator.New(),
	}
}

func (h *GinHandlers) RetryHandler() gin.HandlerFunc {
	return h.run(h.runner.RunRetry)
}

func (h *GinHandlers) SyncHandler() gin.HandlerFunc {
	return h.run(h.runner.RunSync)
}

func (h *GinHandlers) UnfreezeHandler() gin.HandlerFunc {
	return h.run(h.runner.RunUnfreeze)
}

func (h *GinHandlers) run(fn runFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := h.defaults
		if err := c.ShouldBindJSON(&params); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, err.Error())
			return
		}
		if err := h.validate.Struct(params); err != nil {
			response.Handle(c, nil, err)
			return
		}

		report, err := fn(c.Request.Context(), params)
		response.Handle(c, report, err)
	}
}
