package audit

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/klear-profitshare/pkg/response"
)

const defaultListLimit = 100

// Recorder is a write-only sink. Failures are logged, never returned,
// so ledger updates do not depend on the audit trail.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:     gormDB,
		logger: log.With().Str("service", "audit").Logger(),
	}
}

func (s *Service) Record(ctx context.Context, entry Entry) {
	entry.ID = 0
	if entry.EntryID == "" {
		entry.EntryID = uuid.New().String()
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Error().
			Err(err).
			Str("type", string(entry.Type)).
			Str("out_order_no", entry.OutOrderNo).
			Bool("success", entry.Success).
			Msg("failed to write audit entry")
		return
	}

	s.logger.Debug().
		Str("entry_id", entry.EntryID).
		Str("type", string(entry.Type)).
		Str("out_order_no", entry.OutOrderNo).
		Bool("success", entry.Success).
		Msg("audit entry recorded")
}

// List returns the newest entries first, optionally for a single order.
func (s *Service) List(ctx context.Context, outOrderNo string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if outOrderNo != "" {
		q = q.Where("out_order_no = ?", outOrderNo)
	}

	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := h.service.List(c.Request.Context(), c.Query("out_order_no"), limit)
		response.Handle(c, entries, err)
	}
}
