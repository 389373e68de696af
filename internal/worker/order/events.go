package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/messaging"
	ordersvc "github.com/Additional-Code/orderdesk/internal/service/order"
	"github.com/Additional-Code/orderdesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/orderdesk/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewAuditHandlers,
			fx.ResultTags(`group:"worker.handlers,flatten"`),
		),
	),
)

// auditedEvents are the order event types written to the audit log.
var auditedEvents = []string{
	ordersvc.EventOrderCreated,
	ordersvc.EventOrderUpdated,
	ordersvc.EventOrderDeleted,
	ordersvc.EventOrdersStatusUpdated,
	ordersvc.EventOrdersDuplicated,
	ordersvc.EventOrdersDeleted,
}

// NewAuditHandlers registers one audit-logging handler per order event type.
func NewAuditHandlers(logger *zap.Logger) []worker.HandlerRegistration {
	audit := logger.Named("orders.audit")
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.audit", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("event.type", msg.Headers[messaging.HeaderEventType]),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err), zap.Int64("offset", msg.Offset))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		fields := []zap.Field{
			zap.String("type", event.Type),
			zap.Time("occurred_at", event.OccurredAt),
			zap.Int64("affected", event.Affected),
		}
		if event.OrderID != 0 {
			fields = append(fields, zap.Int64("order_id", event.OrderID))
		}
		if event.OrderNumber != "" {
			fields = append(fields, zap.String("order_number", event.OrderNumber))
		}
		if event.Status != "" {
			fields = append(fields, zap.String("status", event.Status))
		}
		if len(event.IDs) > 0 {
			fields = append(fields, zap.Int64s("ids", event.IDs))
		}
		if len(event.CreatedIDs) > 0 {
			fields = append(fields, zap.Int64s("created_ids", event.CreatedIDs))
		}
		audit.Info("order event", fields...)
		return nil
	}

	regs := make([]worker.HandlerRegistration, 0, len(auditedEvents))
	for _, t := range auditedEvents {
		regs = append(regs, worker.HandlerRegistration{EventType: t, Handler: handler})
	}
	return regs
}
