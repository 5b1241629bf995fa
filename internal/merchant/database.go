package merchant

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetMerchant returns nil, nil when the merchant does not exist.
func (d *Database) GetMerchant(ctx context.Context, mchID string) (*Merchant, error) {
	var m Merchant
	if err := d.db.WithContext(ctx).Where("mch_id = ?", mchID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (d *Database) CreateMerchant(ctx context.Context, m *Merchant) error {
	return d.db.WithContext(ctx).Create(m).Error
}

func (d *Database) UpdateMerchant(ctx context.Context, m *Merchant) error {
	return d.db.WithContext(ctx).Save(m).Error
}
