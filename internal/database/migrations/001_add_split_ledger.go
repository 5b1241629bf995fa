package migrations

import (
	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/profitsharing"
	"gorm.io/gorm"
)

type index struct {
	model   interface{}
	name    string
	table   string
	columns string
}

func createIndexes(db *gorm.DB, indexes []index) error {
	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			continue
		}
		if err := db.Exec("CREATE INDEX " + idx.name + " ON " + idx.table + "(" + idx.columns + ")").Error; err != nil {
			return err
		}
	}
	return nil
}

// AddSplitLedger creates the merchant, order and receiver tables
func AddSplitLedger(db *gorm.DB) error {
	if err := db.AutoMigrate(&merchant.Merchant{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(&profitsharing.Order{}, &profitsharing.Receiver{}); err != nil {
		return err
	}

	return createIndexes(db, []index{
		// Retry candidate selection
		{&profitsharing.Receiver{}, "idx_split_receivers_retry", "split_receivers", "result, finally_failed, created_at"},
		// Sync and unfreeze selection
		{&profitsharing.Order{}, "idx_split_orders_state_created", "split_orders", "state, created_at"},
		{&profitsharing.Order{}, "idx_split_orders_merchant_state", "split_orders", "merchant_id, state"},
	})
}
