package audit

import (
	"time"

	"gorm.io/datatypes"
)

type OperationType string

const (
	OperationSubmit   OperationType = "SUBMIT"
	OperationQuery    OperationType = "QUERY"
	OperationUnfreeze OperationType = "UNFREEZE"
)

// Entry records one provider interaction. Rows are append-only.
type Entry struct {
	ID               uint           `gorm:"primaryKey" json:"-"`
	EntryID          string         `gorm:"size:36;uniqueIndex" json:"entry_id"`
	Type             OperationType  `gorm:"size:16;index" json:"type"`
	MerchantID       string         `gorm:"size:32;index" json:"mchid"`
	OutOrderNo       string         `gorm:"size:64;index" json:"out_order_no"`
	Success          bool           `json:"success"`
	ErrorCode        string         `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	RequestSnapshot  datatypes.JSON `json:"request_snapshot,omitempty"`
	ResponseSnapshot datatypes.JSON `json:"response_snapshot,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
}

func (Entry) TableName() string {
	return "operation_logs"
}
