package seeder

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// SampleOrders returns the demo orders shipped with the orders table. They cover every
// observed status and both payment states.
func SampleOrders() []entity.Order {
	return []entity.Order{
		{OrderNumber: "ORD-1001", CustomerName: "Alice Johnson", OrderDate: "2026-01-10T10:00:00", Status: "Pending", TotalAmount: 120.50, PaymentStatus: "Unpaid"},
		{OrderNumber: "ORD-1002", CustomerName: "Bob Smith", OrderDate: "2026-01-12T14:30:00", Status: "Completed", TotalAmount: 45.00, PaymentStatus: "Paid"},
		{OrderNumber: "ORD-1003", CustomerName: "Cara Lee", OrderDate: "2026-01-15T09:15:00", Status: "Refunded", TotalAmount: 78.99, PaymentStatus: "Paid"},
		{OrderNumber: "ORD-1004", CustomerName: "David Kim", OrderDate: "2026-02-01T11:20:00", Status: "Pending", TotalAmount: 34.20, PaymentStatus: "Unpaid"},
	}
}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders re-inserts the sample orders, leaving rows whose order number already exists untouched.
// It returns the number of rows actually inserted.
func (s *Seeder) Orders(ctx context.Context) (int64, error) {
	samples := SampleOrders()

	q := s.db.NewInsert().Model(&samples).Returning("NULL")
	if s.db.Dialect().Name() == dialect.MySQL {
		q = q.Ignore()
	} else {
		q = q.On("CONFLICT (order_number) DO NOTHING")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int64("inserted", inserted), zap.Int("samples", len(samples)))
	}
	return inserted, nil
}
