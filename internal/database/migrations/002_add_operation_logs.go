package migrations

import (
	"github.com/ksred/klear-profitshare/internal/audit"
	"gorm.io/gorm"
)

// AddOperationLogs creates the append-only audit table
func AddOperationLogs(db *gorm.DB) error {
	if err := db.AutoMigrate(&audit.Entry{}); err != nil {
		return err
	}

	return createIndexes(db, []index{
		{&audit.Entry{}, "idx_operation_logs_order_created", "operation_logs", "out_order_no, created_at"},
	})
}
