package profitsharing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// OrderFilter selects orders for batch jobs. Zero values are ignored.
type OrderFilter struct {
	MerchantID      string
	States          []OrderState
	CreatedAfter    time.Time
	UnfreezeUnsplit *bool
	Limit           int
}

// ReceiverFilter selects retry candidates.
type ReceiverFilter struct {
	MerchantID   string
	CreatedAfter time.Time
	Limit        int
}

func preloadReceivers(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC, id ASC")
}

func (d *Database) FindByOutOrderNo(ctx context.Context, outOrderNo string) (*Order, error) {
	var order Order
	err := d.db.WithContext(ctx).
		Preload("Receivers", preloadReceivers).
		Where("out_order_no = ?", outOrderNo).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrderByID(ctx context.Context, id uint) (*Order, error) {
	var order Order
	err := d.db.WithContext(ctx).
		Preload("Receivers", preloadReceivers).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) FindOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	q := d.db.WithContext(ctx).Preload("Receivers", preloadReceivers)
	if filter.MerchantID != "" {
		q = q.Where("merchant_id = ?", filter.MerchantID)
	}
	if len(filter.States) > 0 {
		q = q.Where("state IN ?", filter.States)
	}
	if !filter.CreatedAfter.IsZero() {
		q = q.Where("created_at >= ?", filter.CreatedAfter)
	}
	if filter.UnfreezeUnsplit != nil {
		q = q.Where("unfreeze_unsplit = ?", *filter.UnfreezeUnsplit)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var orders []Order
	if err := q.Order("id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// SaveOrder upserts the order together with its receivers in one transaction.
func (d *Database) SaveOrder(ctx context.Context, order *Order) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(order).Error
	})
}

// FindRetryCandidates returns unsettled receivers that have not exhausted their retries.
// The parent order is joined loosely so receivers with a missing order still surface.
func (d *Database) FindRetryCandidates(ctx context.Context, filter ReceiverFilter) ([]Receiver, error) {
	q := d.db.WithContext(ctx).
		Model(&Receiver{}).
		Select("split_receivers.*").
		Joins("LEFT JOIN split_orders ON split_orders.id = split_receivers.split_order_id").
		Where("split_receivers.result IN ?", []ReceiverResult{ResultFailed, ResultPending}).
		Where("split_receivers.finally_failed = ?", false)
	if !filter.CreatedAfter.IsZero() {
		q = q.Where("split_receivers.created_at >= ?", filter.CreatedAfter)
	}
	if filter.MerchantID != "" {
		q = q.Where("split_orders.merchant_id = ?", filter.MerchantID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var receivers []Receiver
	if err := q.Order("split_receivers.id ASC").Find(&receivers).Error; err != nil {
		return nil, err
	}
	return receivers, nil
}

func (d *Database) UpdateRetryState(ctx context.Context, receiverID uint, retryCount int, nextRetryAt *time.Time) error {
	return d.db.WithContext(ctx).
		Model(&Receiver{}).
		Where("id = ?", receiverID).
		Updates(map[string]interface{}{
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
		}).Error
}

func (d *Database) MarkFinallyFailed(ctx context.Context, receiverID uint) error {
	return d.db.WithContext(ctx).
		Model(&Receiver{}).
		Where("id = ?", receiverID).
		Update("finally_failed", true).Error
}

func (d *Database) SetFailReason(ctx context.Context, receiverID uint, reason string) error {
	return d.db.WithContext(ctx).
		Model(&Receiver{}).
		Where("id = ?", receiverID).
		Update("fail_reason", reason).Error
}
