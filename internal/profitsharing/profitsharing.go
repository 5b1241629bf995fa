package profitsharing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/klear-profitshare/internal/audit"
	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/provider"
)

var (
	ErrNoReceivers    = errors.New("no receivers")
	ErrInvalidRequest = errors.New("invalid request")
	ErrOrderNotFound  = errors.New("order not found")
)

// Service drives submit, query and unfreeze against the provider and keeps the ledger in step.
// None of its operations retry; that is left to the batch jobs.
type Service struct {
	db       *Database
	provider provider.Client
	audit    audit.Recorder
	validate *validator.Validate
}

func NewService(gormDB *gorm.DB, client provider.Client, recorder audit.Recorder) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		provider: client,
		audit:    recorder,
		validate: validator.New(),
	}
}

// Database exposes the ledger store to batch jobs.
func (s *Service) Database() *Database {
	return s.db
}

func (s *Service) logger(op string, m *merchant.Merchant, outOrderNo string) zerolog.Logger {
	ctx := log.With().
		Str("service", "profitsharing").
		Str("operation", op).
		Str("out_order_no", outOrderNo)
	if m != nil {
		ctx = ctx.Str("mchid", m.MchID)
	}
	return ctx.Logger()
}

// RequestSplit submits a new split. A known out_order_no returns the stored order without calling the provider.
func (s *Service) RequestSplit(ctx context.Context, m *merchant.Merchant, req SplitRequest) (*Order, error) {
	logger := s.logger("submit", m, req.OutOrderNo)

	if len(req.Receivers) == 0 {
		return nil, ErrNoReceivers
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	existing, err := s.db.FindByOutOrderNo(ctx, req.OutOrderNo)
	if err != nil {
		logger.Error().Err(err).Msg("failed to look up order")
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if existing != nil {
		logger.Info().Msg("order already submitted, returning stored copy")
		return existing, nil
	}

	order := newOrder(m, req)
	payload := buildSplitPayload(m, req)
	order.RequestPayload = payload.JSON()

	resp, err := s.provider.SubmitSplit(ctx, m, payload)
	if err != nil {
		logger.Error().Err(err).Msg("provider rejected split request")
		s.recordFailure(ctx, audit.OperationSubmit, m, req.OutOrderNo, payload, err)
		return nil, fmt.Errorf("submit split %s: %w", req.OutOrderNo, err)
	}

	ApplyResponse(order, resp)

	if err := s.db.SaveOrder(ctx, order); err != nil {
		logger.Error().Err(err).Msg("failed to persist split order")
		s.recordSuccess(ctx, audit.OperationSubmit, m, req.OutOrderNo, payload, resp)
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	s.recordSuccess(ctx, audit.OperationSubmit, m, req.OutOrderNo, payload, resp)
	logger.Info().
		Str("state", string(order.State)).
		Int("receivers", len(order.Receivers)).
		Msg("split order submitted")

	return order, nil
}

// QueryStatus always asks the provider and merges the answer into the ledger.
// Orders unknown locally are created from the response.
func (s *Service) QueryStatus(ctx context.Context, m *merchant.Merchant, subMchID, outOrderNo, transactionID string) (*Order, error) {
	logger := s.logger("query", m, outOrderNo)

	if strings.TrimSpace(outOrderNo) == "" {
		return nil, fmt.Errorf("%w: out_order_no is required", ErrInvalidRequest)
	}

	q := provider.Query{SubMchID: subMchID, OutOrderNo: outOrderNo, TransactionID: transactionID}
	snapshot := provider.Payload{"out_order_no": outOrderNo}
	if subMchID != "" {
		snapshot["sub_mchid"] = subMchID
	}
	if transactionID != "" {
		snapshot["transaction_id"] = transactionID
	}

	resp, err := s.provider.QueryStatus(ctx, m, q)
	if err != nil {
		logger.Error().Err(err).Msg("provider query failed")
		s.recordFailure(ctx, audit.OperationQuery, m, outOrderNo, snapshot, err)
		return nil, fmt.Errorf("query split %s: %w", outOrderNo, err)
	}

	order, err := s.mergeIntoLedger(ctx, m, subMchID, outOrderNo, transactionID, resp)
	s.recordSuccess(ctx, audit.OperationQuery, m, outOrderNo, snapshot, resp)
	if err != nil {
		logger.Error().Err(err).Msg("failed to merge query response")
		return nil, err
	}

	logger.Debug().Str("state", string(order.State)).Msg("split order refreshed")
	return order, nil
}

// UnfreezeRemaining releases undistributed funds. A successful call sets UnfreezeUnsplit on the order.
func (s *Service) UnfreezeRemaining(ctx context.Context, m *merchant.Merchant, req UnfreezeRequest) (*Order, error) {
	logger := s.logger("unfreeze", m, req.OutOrderNo)

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	payload := buildUnfreezePayload(req)
	resp, err := s.provider.Unfreeze(ctx, m, payload)
	if err != nil {
		logger.Error().Err(err).Msg("provider unfreeze failed")
		s.recordFailure(ctx, audit.OperationUnfreeze, m, req.OutOrderNo, payload, err)
		return nil, fmt.Errorf("unfreeze %s: %w", req.OutOrderNo, err)
	}

	order, err := s.db.FindByOutOrderNo(ctx, req.OutOrderNo)
	if err != nil {
		s.recordSuccess(ctx, audit.OperationUnfreeze, m, req.OutOrderNo, payload, resp)
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if order == nil {
		order = synthesizeOrder(m, req.SubMchID, req.OutOrderNo, req.TransactionID, resp)
	}

	ApplyResponse(order, resp)
	order.UnfreezeUnsplit = true

	err = s.db.SaveOrder(ctx, order)
	s.recordSuccess(ctx, audit.OperationUnfreeze, m, req.OutOrderNo, payload, resp)
	if err != nil {
		logger.Error().Err(err).Msg("failed to persist unfreeze result")
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	logger.Info().Int64("unsplit_amount", order.UnsplitAmount).Msg("remaining funds unfrozen")
	return order, nil
}

// GetLocal reads the ledger without contacting the provider.
func (s *Service) GetLocal(ctx context.Context, outOrderNo string) (*Order, error) {
	order, err := s.db.FindByOutOrderNo(ctx, outOrderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, outOrderNo)
	}
	return order, nil
}

func (s *Service) mergeIntoLedger(ctx context.Context, m *merchant.Merchant, subMchID, outOrderNo, transactionID string, resp provider.Payload) (*Order, error) {
	order, err := s.db.FindByOutOrderNo(ctx, outOrderNo)
	if err != nil {
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if order == nil {
		order = synthesizeOrder(m, subMchID, outOrderNo, transactionID, resp)
	}

	ApplyResponse(order, resp)

	if err := s.db.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	return order, nil
}

func (s *Service) recordSuccess(ctx context.Context, op audit.OperationType, m *merchant.Merchant, outOrderNo string, req, resp provider.Payload) {
	s.audit.Record(ctx, audit.Entry{
		Type:             op,
		MerchantID:       m.MchID,
		OutOrderNo:       outOrderNo,
		Success:          true,
		RequestSnapshot:  req.JSON(),
		ResponseSnapshot: resp.JSON(),
	})
}

func (s *Service) recordFailure(ctx context.Context, op audit.OperationType, m *merchant.Merchant, outOrderNo string, req provider.Payload, cause error) {
	code, message := provider.ErrorDetails(cause)
	s.audit.Record(ctx, audit.Entry{
		Type:            op,
		MerchantID:      m.MchID,
		OutOrderNo:      outOrderNo,
		Success:         false,
		ErrorCode:       code,
		ErrorMessage:    message,
		RequestSnapshot: req.JSON(),
	})
}
