package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/seeder"
)

// CreateOrdersTable is the ledger name of the migration that creates and seeds the orders table.
const CreateOrdersTable = "002_create_orders_table"

// Module provides the Migrator to Fx.
var Module = fx.Provide(New)

// Record is a row of the _migrations ledger.
type Record struct {
	bun.BaseModel `bun:"table:_migrations"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull,unique"`
	AppliedAt time.Time `bun:"applied_at,notnull"`
}

// Result describes the outcome of a migration run.
type Result struct {
	Name           string
	AlreadyApplied bool
}

// Migrator applies and reverts the orders schema migration.
type Migrator struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Migrator on the writer connection.
func New(conns *database.Connections, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		db:     conns.Writer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upgrade creates the orders table, seeds it and records the migration, all in one transaction.
// When the migration is already recorded nothing is changed and Result.AlreadyApplied is set.
func (m *Migrator) Upgrade(ctx context.Context) (Result, error) {
	res := Result{Name: CreateOrdersTable}

	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureLedger(ctx, tx); err != nil {
			return err
		}

		applied, err := tx.NewSelect().
			Model((*Record)(nil)).
			Where("name = ?", CreateOrdersTable).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		if applied {
			res.AlreadyApplied = true
			return nil
		}

		ddl, err := ordersTableDDL(tx.Dialect().Name())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create orders table: %w", err)
		}

		samples := seeder.SampleOrders()
		if _, err := tx.NewInsert().Model(&samples).Returning("NULL").Exec(ctx); err != nil {
			return fmt.Errorf("seed orders: %w", err)
		}

		record := &Record{Name: CreateOrdersTable, AppliedAt: m.now()}
		if _, err := tx.NewInsert().Model(record).Returning("NULL").Exec(ctx); err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("upgrade %s: %w", CreateOrdersTable, err)
	}

	if res.AlreadyApplied {
		m.logger.Info("migration already applied; skipping", zap.String("migration", CreateOrdersTable))
	} else {
		m.logger.Info("migration applied", zap.String("migration", CreateOrdersTable))
	}
	return res, nil
}

// Downgrade drops the orders table and forgets the migration. It runs whether or not the
// migration is currently applied, so it doubles as a development reset.
func (m *Migrator) Downgrade(ctx context.Context) (Result, error) {
	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureLedger(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.NewDropTable().Model((*entity.Order)(nil)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop orders table: %w", err)
		}
		if _, err := tx.NewDelete().Model((*Record)(nil)).Where("name = ?", CreateOrdersTable).Exec(ctx); err != nil {
			return fmt.Errorf("delete ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("downgrade %s: %w", CreateOrdersTable, err)
	}

	m.logger.Info("migration reverted", zap.String("migration", CreateOrdersTable))
	return Result{Name: CreateOrdersTable}, nil
}

// Applied lists the migration names recorded in the ledger.
func (m *Migrator) Applied(ctx context.Context) ([]Record, error) {
	if err := ensureLedger(ctx, m.db); err != nil {
		return nil, err
	}
	var records []Record
	if err := m.db.NewSelect().Model(&records).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return records, nil
}

func ensureLedger(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create migrations ledger: %w", err)
	}
	return nil
}
