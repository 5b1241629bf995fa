package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ksred/klear-profitshare/internal/audit"
	"github.com/ksred/klear-profitshare/internal/config"
	"github.com/ksred/klear-profitshare/internal/merchant"
	"github.com/ksred/klear-profitshare/internal/profitsharing"
)

func TestNewDatabaseMigratesSchema(t *testing.T) {
	db, err := NewDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}

	m := db.Migrator()
	for _, model := range []interface{}{&merchant.Merchant{}, &profitsharing.Order{}, &profitsharing.Receiver{}, &audit.Entry{}} {
		if !m.HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}
	if !m.HasIndex(&profitsharing.Receiver{}, "idx_split_receivers_retry") {
		t.Fatal("retry index missing")
	}
	if !m.HasIndex(&audit.Entry{}, "idx_operation_logs_order_created") {
		t.Fatal("audit index missing")
	}

	// Re-running is a no-op.
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestNewDatabaseRejectsUnknownDriver(t *testing.T) {
	if _, err := NewDatabase(config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
