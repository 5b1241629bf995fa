package merchant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/klear-profitshare/pkg/response"
)

var ErrMerchantNotFound = errors.New("merchant not found")

// Service manages the merchants registered for profit sharing
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Register creates the merchant or replaces its signing credentials when it already exists
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Merchant, error) {
	logger := log.With().
		Str("mchid", req.MchID).
		Str("service", "merchant").
		Logger()

	existing, err := s.db.GetMerchant(ctx, req.MchID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to look up merchant")
		return nil, fmt.Errorf("failed to look up merchant: %w", err)
	}

	if existing != nil {
		existing.AppID = req.AppID
		existing.Name = req.Name
		existing.CertSerialNo = req.CertSerialNo
		existing.PrivateKeyPEM = strings.TrimSpace(req.PrivateKeyPEM)
		existing.Enabled = true
		if err := s.db.UpdateMerchant(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update merchant: %w", err)
		}
		logger.Info().Msg("merchant credentials replaced")
		return existing, nil
	}

	m := &Merchant{
		MchID:         req.MchID,
		AppID:         req.AppID,
		Name:          req.Name,
		CertSerialNo:  req.CertSerialNo,
		PrivateKeyPEM: strings.TrimSpace(req.PrivateKeyPEM),
		Enabled:       true,
	}
	if err := s.db.CreateMerchant(ctx, m); err != nil {
		logger.Error().Err(err).Msg("failed to create merchant")
		return nil, fmt.Errorf("failed to create merchant: %w", err)
	}

	logger.Info().Msg("merchant registered")
	return m, nil
}

// Lookup returns ErrMerchantNotFound for unknown or disabled merchants
func (s *Service) Lookup(ctx context.Context, mchID string) (*Merchant, error) {
	m, err := s.db.GetMerchant(ctx, mchID)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrMerchantNotFound, mchID)
	}
	return m, nil
}

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		m, err := h.service.Register(c.Request.Context(), req)
		response.Handle(c, m, err)
	}
}

func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := h.service.Lookup(c.Request.Context(), c.Param("mchid"))
		if errors.Is(err, ErrMerchantNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.Handle(c, m, err)
	}
}
