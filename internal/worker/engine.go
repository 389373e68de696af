package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/messaging"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// HandlerRegistration binds an event type, read from the event-type header, to a handler.
type HandlerRegistration struct {
	EventType string
	Handler   messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs a fixed number of consumers over the order events topic.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	workers  config.Worker
	enabled  bool
	handlers map[string]messaging.Handler
	consumed metric.Int64Counter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Module wires the engine into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, e *Engine) {
		lc.Append(fx.Hook{OnStart: e.start, OnStop: e.stop})
	}),
)

// NewEngine indexes the registrations by event type. Later registrations for the same type win.
func NewEngine(p Params) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.EventType == "" || r.Handler == nil {
			continue
		}
		if _, dup := handlers[r.EventType]; dup {
			logger.Warn("replacing handler", zap.String("event_type", r.EventType))
		}
		handlers[r.EventType] = r.Handler
	}

	consumed, err := otel.Meter("github.com/Additional-Code/orderdesk/worker").Int64Counter(
		"orders.events.consumed",
		metric.WithDescription("Order events consumed, by event type and result"),
	)
	if err != nil {
		logger.Warn("orders.events.consumed counter unavailable", zap.Error(err))
	}

	return &Engine{
		client:   p.Client,
		logger:   logger,
		workers:  p.Config.Messaging.Workers,
		enabled:  p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		handlers: handlers,
		consumed: consumed,
	}
}

func (e *Engine) start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.handlers) == 0 {
		e.logger.Info("worker engine has no handlers")
		return nil
	}

	n := max(e.workers.Concurrency, 1)
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	for i := range n {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.run(ctx, i)
		}()
	}

	e.logger.Info("worker engine started",
		zap.Int("workers", n),
		zap.String("topic", e.client.Topic()),
		zap.Int("handlers", len(e.handlers)),
	)
	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run restarts Consume with exponential backoff until ctx is cancelled.
func (e *Engine) run(ctx context.Context, worker int) {
	backoff := initialBackoff
	for ctx.Err() == nil {
		err := e.client.Consume(ctx, func(ctx context.Context, msg messaging.Message) error {
			e.logger.Debug("order event received", zap.Int("worker", worker), zap.Int64("offset", msg.Offset))
			return e.Dispatch(ctx, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consumer stopped, restarting", zap.Int("worker", worker), zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Dispatch routes a message to the handler registered for its event type. Messages without a
// registered handler are acknowledged and dropped.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	eventType := msg.Headers[messaging.HeaderEventType]
	handler, ok := e.handlers[eventType]
	if !ok {
		e.logger.Debug("no handler for event type", zap.String("event_type", eventType), zap.String("topic", msg.Topic))
		e.count(ctx, eventType, "skipped")
		return nil
	}

	if err := handler(ctx, msg); err != nil {
		e.count(ctx, eventType, "failed")
		return err
	}
	e.count(ctx, eventType, "handled")
	return nil
}

func (e *Engine) count(ctx context.Context, eventType, result string) {
	if e.consumed == nil {
		return
	}
	e.consumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("result", result),
	))
}
