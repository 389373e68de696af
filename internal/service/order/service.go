package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	"github.com/Additional-Code/orderdesk/internal/observability"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

const instrumentationName = "github.com/Additional-Code/orderdesk/service/order"

var serviceTracer = otel.Tracer(instrumentationName)

// Module provides the order service to Fx.
var Module = fx.Provide(NewService)

// Outcome values of the orders.operations counter.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

// Stats summarises the orders table.
type Stats struct {
	Total    int64
	ByStatus map[string]int64
}

// Service encapsulates business logic around orders.
type Service struct {
	repo       *repo.Repository
	cache      cache.Store
	cacheTTL   time.Duration
	logger     *zap.Logger
	publisher  messaging.Client
	messaging  messagingConfig
	operations metric.Int64Counter
	now        func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client

	Observability *observability.Manager `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	counter, err := p.Observability.Meter(instrumentationName).Int64Counter(
		"orders.operations",
		metric.WithDescription("Order operations handled, by operation and outcome"),
	)
	if err != nil {
		logger.Warn("orders.operations counter unavailable", zap.Error(err))
		counter = noop.Int64Counter{}
	}

	return &Service{
		repo:       p.Repository,
		cache:      p.Cache,
		cacheTTL:   p.Config.Cache.DefaultTTL,
		logger:     logger,
		publisher:  p.Publisher,
		operations: counter,
		now:        func() time.Time { return time.Now().UTC() },
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// List returns a page of orders.
func (s *Service) List(ctx context.Context, f repo.ListFilter) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.fail(ctx, span, "list", err)
	}
	s.record(ctx, "list", outcomeOK)
	return orders, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		s.record(ctx, "get", outcomeOK)
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, span, "get", err)
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	s.record(ctx, "get", outcomeOK)
	return order, nil
}

// Create persists a new order and fills in its assigned id.
func (s *Service) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errorbank.BadRequest("order payload is required")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.number", order.OrderNumber)))
	defer span.End()

	if err := s.repo.Create(ctx, order); err != nil {
		return s.fail(ctx, span, "create", err)
	}

	s.record(ctx, "create", outcomeOK)
	s.publish(ctx, Event{
		Type:        EventOrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Affected:    1,
	})
	return nil
}

// Update applies a partial update. Empty changes return the current row unchanged.
func (s *Service) Update(ctx context.Context, id int64, changes repo.Changes) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, s.fail(ctx, span, "update", err)
	}

	s.invalidate(ctx, id)
	s.record(ctx, "update", outcomeOK)
	if len(changes) > 0 {
		s.publish(ctx, Event{
			Type:        EventOrderUpdated,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			Affected:    1,
		})
	}
	return order, nil
}

// Delete removes one order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail(ctx, span, "delete", err)
	}

	s.invalidate(ctx, id)
	s.record(ctx, "delete", outcomeOK)
	s.publish(ctx, Event{Type: EventOrderDeleted, OrderID: id, Affected: 1})
	return nil
}

// BulkUpdateStatus overwrites the status of every listed order.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []int64, status string) (int64, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.BulkUpdateStatus", trace.WithAttributes(attribute.Int("order.ids", len(ids))))
	defer span.End()

	n, err := s.repo.BulkUpdateStatus(ctx, ids, status)
	if err != nil {
		return 0, s.fail(ctx, span, "bulk_update_status", err)
	}

	s.invalidate(ctx, ids...)
	s.record(ctx, "bulk_update_status", outcomeOK)
	if n > 0 {
		s.publish(ctx, Event{Type: EventOrdersStatusUpdated, Status: status, IDs: ids, Affected: n})
	}
	return n, nil
}

// BulkDuplicate copies every existing listed order and returns the new ids.
func (s *Service) BulkDuplicate(ctx context.Context, ids []int64) ([]int64, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.BulkDuplicate", trace.WithAttributes(attribute.Int("order.ids", len(ids))))
	defer span.End()

	created, err := s.repo.BulkDuplicate(ctx, ids)
	if err != nil {
		return nil, s.fail(ctx, span, "bulk_duplicate", err)
	}

	s.record(ctx, "bulk_duplicate", outcomeOK)
	if len(created) > 0 {
		s.publish(ctx, Event{Type: EventOrdersDuplicated, IDs: ids, CreatedIDs: created, Affected: int64(len(created))})
	}
	return created, nil
}

// BulkDelete removes every listed order.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.BulkDelete", trace.WithAttributes(attribute.Int("order.ids", len(ids))))
	defer span.End()

	n, err := s.repo.BulkDelete(ctx, ids)
	if err != nil {
		return 0, s.fail(ctx, span, "bulk_delete", err)
	}

	s.invalidate(ctx, ids...)
	s.record(ctx, "bulk_delete", outcomeOK)
	if n > 0 {
		s.publish(ctx, Event{Type: EventOrdersDeleted, IDs: ids, Affected: n})
	}
	return n, nil
}

// Stats counts orders in total and per status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Stats")
	defer span.End()

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, s.fail(ctx, span, "stats", err)
	}

	stats := Stats{ByStatus: make(map[string]int64, len(counts))}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Total
		stats.Total += c.Total
	}
	s.record(ctx, "stats", outcomeOK)
	return stats, nil
}

// fail maps repository errors onto errorbank kinds and records the failed operation.
func (s *Service) fail(ctx context.Context, span trace.Span, op string, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		span.SetStatus(codes.Error, "not found")
		s.record(ctx, op, outcomeNotFound)
		return errorbank.NotFound("Order not found")
	case errors.Is(err, repo.ErrUnknownColumn):
		span.SetStatus(codes.Error, "invalid column")
		s.record(ctx, op, outcomeInvalid)
		return errorbank.Unprocessable(err.Error())
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	s.record(ctx, op, outcomeError)
	s.logger.Error("order store failure", zap.String("operation", op), zap.Error(err))

	opts := []errorbank.Option{errorbank.WithCause(err)}
	if errors.Is(err, repo.ErrConstraint) {
		opts = append(opts, errorbank.WithDetail("reason", "constraint_violation"))
	}
	return errorbank.Internal("Database error", opts...)
}

func (s *Service) record(ctx context.Context, op, outcome string) {
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func (s *Service) publish(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event.OccurredAt = s.now()

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	key := event.Type
	if event.OrderID != 0 {
		key = "order-" + strconv.FormatInt(event.OrderID, 10)
	}
	headers := map[string]string{messaging.HeaderEventType: event.Type}
	if err := s.publisher.Publish(ctx, []byte(key), payload, headers); err != nil {
		s.logger.Error("publish order event", zap.String("type", event.Type), zap.String("topic", s.messaging.topic), zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.cacheKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}
