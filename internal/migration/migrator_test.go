package migration_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/database/dbtest"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/migration"
)

func TestUpgradeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	mig := migration.New(conns, zap.NewNop())

	first, err := mig.Upgrade(ctx)
	if err != nil {
		t.Fatalf("first Upgrade() error = %v", err)
	}
	if first.AlreadyApplied {
		t.Fatal("first Upgrade() reported already applied")
	}

	// Mutate seeded data so a second run that reseeded would be noticed.
	if _, err := conns.Writer.NewDelete().Model((*entity.Order)(nil)).Where("order_number = ?", "ORD-1004").Exec(ctx); err != nil {
		t.Fatalf("delete seed row: %v", err)
	}

	second, err := mig.Upgrade(ctx)
	if err != nil {
		t.Fatalf("second Upgrade() error = %v", err)
	}
	if !second.AlreadyApplied {
		t.Fatal("second Upgrade() did not report already applied")
	}
	if second.Name != migration.CreateOrdersTable {
		t.Fatalf("result name = %q, want %q", second.Name, migration.CreateOrdersTable)
	}

	count, err := conns.Reader.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	if err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 3 {
		t.Fatalf("orders after second upgrade = %d, want 3", count)
	}

	records, err := mig.Applied(ctx)
	if err != nil {
		t.Fatalf("Applied() error = %v", err)
	}
	if len(records) != 1 || records[0].Name != migration.CreateOrdersTable {
		t.Fatalf("ledger = %+v, want single %s entry", records, migration.CreateOrdersTable)
	}
}

func TestDowngradeThenUpgradeReseeds(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.Open(t)
	mig := migration.New(conns, zap.NewNop())

	if _, err := mig.Upgrade(ctx); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}
	extra := &entity.Order{OrderNumber: "ORD-9000", CustomerName: "Zed", OrderDate: "2026-03-01T00:00:00", Status: "Pending", TotalAmount: 1, PaymentStatus: "Unpaid"}
	if _, err := conns.Writer.NewInsert().Model(extra).Exec(ctx); err != nil {
		t.Fatalf("insert extra order: %v", err)
	}

	if _, err := mig.Downgrade(ctx); err != nil {
		t.Fatalf("Downgrade() error = %v", err)
	}
	records, err := mig.Applied(ctx)
	if err != nil {
		t.Fatalf("Applied() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("ledger after downgrade = %+v, want empty", records)
	}

	res, err := mig.Upgrade(ctx)
	if err != nil {
		t.Fatalf("Upgrade() after downgrade error = %v", err)
	}
	if res.AlreadyApplied {
		t.Fatal("Upgrade() after downgrade reported already applied")
	}

	var orders []entity.Order
	if err := conns.Reader.NewSelect().Model(&orders).Order("id ASC").Scan(ctx); err != nil {
		t.Fatalf("select orders: %v", err)
	}
	want := []string{"ORD-1001", "ORD-1002", "ORD-1003", "ORD-1004"}
	if len(orders) != len(want) {
		t.Fatalf("orders = %d rows, want %d", len(orders), len(want))
	}
	for i, o := range orders {
		if o.OrderNumber != want[i] {
			t.Errorf("orders[%d].OrderNumber = %q, want %q", i, o.OrderNumber, want[i])
		}
		if o.CustomerAvatar != "" {
			t.Errorf("orders[%d].CustomerAvatar = %q, want empty", i, o.CustomerAvatar)
		}
	}
}

func TestDowngradeOnEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	mig := migration.New(dbtest.Open(t), zap.NewNop())

	for i := 0; i < 2; i++ {
		if _, err := mig.Downgrade(ctx); err != nil {
			t.Fatalf("Downgrade() #%d error = %v", i+1, err)
		}
	}
}
