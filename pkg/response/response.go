package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UpstreamError is implemented by errors that carry a code from an external system.
type UpstreamError interface {
	error
	UpstreamCode() string
	UpstreamMessage() string
}

// Common error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeTooManyRequests   = "TOO_MANY_REQUESTS"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeDuplicateResource = "DUPLICATE_RESOURCE"
	ErrCodeUpstream          = "UPSTREAM_ERROR"
)

// Handle processes the error and returns appropriate response
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	var validationErrs validator.ValidationErrors
	var upstream UpstreamError

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	case errors.As(err, &validationErrs):
		ValidationFailed(c, validationErrs.Error())
	case errors.As(err, &upstream):
		BadGateway(c, upstream.UpstreamCode(), upstream.UpstreamMessage())
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == http.MethodPost {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

func abort(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	abort(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// ValidationFailed sends a 400 response for rejected input
func ValidationFailed(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, ErrCodeValidationFailed, message)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *gin.Context, message string) {
	abort(c, http.StatusTooManyRequests, ErrCodeTooManyRequests, message)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	abort(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	abort(c, http.StatusConflict, ErrCodeDuplicateResource, message)
}

// BadGateway sends a 502 response carrying the upstream code when there is one
func BadGateway(c *gin.Context, code, message string) {
	if code == "" {
		code = ErrCodeUpstream
	}
	abort(c, http.StatusBadGateway, code, message)
}
