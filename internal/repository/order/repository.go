package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
)

// Module provides the order repository to Fx.
var Module = fx.Provide(NewRepository)

var repoTracer = otel.Tracer("github.com/Additional-Code/orderdesk/repository/order")

// DuplicateSuffix is appended to the order number of a duplicated order.
const DuplicateSuffix = "-COPY"

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrConstraint wraps store errors caused by a violated table constraint.
	ErrConstraint = errors.New("constraint violation")
	// ErrUnknownColumn is returned when an update targets a column outside the allow-list.
	ErrUnknownColumn = errors.New("unknown order column")
)

// updatableColumns are the only columns Update may write.
var updatableColumns = map[string]struct{}{
	"customer_name":   {},
	"customer_avatar": {},
	"order_date":      {},
	"status":          {},
	"total_amount":    {},
	"payment_status":  {},
}

// Changes maps column names to their new values for a partial update.
type Changes map[string]any

// Validate checks every column against the updatable allow-list.
func (c Changes) Validate() error {
	for col := range c {
		if _, ok := updatableColumns[col]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
	}
	return nil
}

func (c Changes) columns() []string {
	cols := make([]string, 0, len(c))
	for col := range c {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// ListFilter narrows and pages List results.
type ListFilter struct {
	Status *string
	Limit  int
	Offset int
}

// StatusCount is the number of orders sharing a status.
type StatusCount struct {
	Status string `bun:"status"`
	Total  int64  `bun:"total"`
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// List returns a page of orders in ascending id order, optionally restricted to one status.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(
		attribute.Int("query.limit", f.Limit),
		attribute.Int("query.offset", f.Offset),
	))
	defer span.End()

	orders := make([]entity.Order, 0)
	if f.Limit == 0 {
		return orders, nil
	}

	q := r.reader.NewSelect().Model(&orders).Order("id ASC").Limit(f.Limit).Offset(f.Offset)
	if f.Status != nil {
		span.SetAttributes(attribute.String("order.status", *f.Status))
		q = q.Where("status = ?", *f.Status)
	}
	if err := q.Scan(ctx); err != nil {
		recordError(span, err, "select failed")
		return nil, err
	}
	return orders, nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		recordError(span, err, "select failed")
		return nil, err
	}
	return order, nil
}

// Create persists a new order and fills in its assigned id.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.OrderNumber)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(order).Exec(ctx); err != nil {
		recordError(span, err, "insert failed")
		return classify(err)
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	return nil
}

// Update writes the given columns of an order and returns the stored row. Empty changes
// return the current row without writing.
func (r *Repository) Update(ctx context.Context, id int64, changes Changes) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.Int("update.columns", len(changes)),
	))
	defer span.End()

	if err := changes.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid column")
		return nil, err
	}

	order := new(entity.Order)
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(order).Where("id = ?", id).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		q := tx.NewUpdate().Model((*entity.Order)(nil)).Where("id = ?", id)
		for _, col := range changes.columns() {
			q = q.Set("? = ?", bun.Ident(col), changes[col])
		}
		if _, err := q.Exec(ctx); err != nil {
			return classify(err)
		}

		*order = entity.Order{}
		return tx.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	})
	if errors.Is(err, ErrNotFound) {
		span.SetStatus(codes.Error, "not found")
		return nil, err
	}
	if err != nil {
		recordError(span, err, "update failed")
		return nil, err
	}
	return order, nil
}

// Delete removes a single order.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		recordError(span, err, "delete failed")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		recordError(span, err, "rows affected")
		return err
	}
	if n == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// BulkUpdateStatus sets status on every listed order and returns how many rows changed.
func (r *Repository) BulkUpdateStatus(ctx context.Context, ids []int64, status string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.BulkUpdateStatus", trace.WithAttributes(
		attribute.Int("order.ids", len(ids)),
		attribute.String("order.status", status),
	))
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", status).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		recordError(span, err, "update failed")
		return 0, classify(err)
	}
	return rowsAffected(span, res)
}

// BulkDuplicate copies every existing listed order under "<order_number>-COPY" and returns the
// new ids in input order. Missing ids are skipped. The batch runs in one transaction, so a failed
// insert discards the copies made before it.
func (r *Repository) BulkDuplicate(ctx context.Context, ids []int64) ([]int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.BulkDuplicate", trace.WithAttributes(attribute.Int("order.ids", len(ids))))
	defer span.End()

	created := make([]int64, 0, len(ids))
	if len(ids) == 0 {
		return created, nil
	}

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, id := range ids {
			var src entity.Order
			err := tx.NewSelect().Model(&src).Where("id = ?", id).Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}

			dup := src.Copy(src.OrderNumber + DuplicateSuffix)
			if _, err := tx.NewInsert().Model(&dup).Exec(ctx); err != nil {
				return classify(err)
			}
			created = append(created, dup.ID)
		}
		return nil
	})
	if err != nil {
		recordError(span, err, "duplicate failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.duplicated", len(created)))
	return created, nil
}

// BulkDelete removes every listed order and returns how many rows were deleted.
func (r *Repository) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.BulkDelete", trace.WithAttributes(attribute.Int("order.ids", len(ids))))
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}

	res, err := r.writer.NewDelete().
		Model((*entity.Order)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		recordError(span, err, "delete failed")
		return 0, err
	}
	return rowsAffected(span, res)
}

// CountByStatus returns order totals grouped by status, sorted by status.
func (r *Repository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatus")
	defer span.End()

	counts := make([]StatusCount, 0)
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS total").
		Group("status").
		Order("status ASC").
		Scan(ctx, &counts)
	if err != nil {
		recordError(span, err, "select failed")
		return nil, err
	}
	return counts, nil
}

func rowsAffected(span trace.Span, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		recordError(span, err, "rows affected")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	return n, nil
}

func classify(err error) error {
	if database.IsConstraintViolation(err) {
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	return err
}

func recordError(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
