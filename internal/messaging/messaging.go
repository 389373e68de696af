package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

// HeaderEventType names the header carrying the event type of an order event.
const HeaderEventType = "event-type"

const fetchRetryDelay = time.Second

// Message is an order event read from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes one message. A non-nil error leaves the message uncommitted.
type Handler func(context.Context, Message) error

// Client publishes and consumes order events on a single topic.
type Client interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient returns a kafka client, or a client that drops everything when messaging is off.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := cfg.Messaging
	if !m.Enabled || m.Driver == "noop" {
		logger.Info("order events disabled")
		return discard{topic: m.Kafka.Topic}, nil
	}
	if m.Driver != "kafka" {
		return nil, fmt.Errorf("unsupported messaging driver: %s", m.Driver)
	}

	k := newKafka(m, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return k.close()
		},
	})
	return k, nil
}

type discard struct {
	topic string
}

func (discard) Publish(context.Context, []byte, []byte, map[string]string) error { return nil }

func (discard) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d discard) Topic() string { return d.topic }

type kafkaClient struct {
	cfg    config.Messaging
	writer *kafka.Writer
	logger *zap.Logger

	// The reader joins the consumer group, so only processes that consume create it.
	readerOnce sync.Once
	reader     *kafka.Reader
	mu         sync.Mutex
}

func newKafka(cfg config.Messaging, logger *zap.Logger) *kafkaClient {
	log := kafkaLogger{logger: logger.Named("kafka")}
	return &kafkaClient{
		cfg:    cfg,
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Logger:       kafka.LoggerFunc(log.debug),
			ErrorLogger:  kafka.LoggerFunc(log.error),
		},
	}
}

func (k *kafkaClient) Topic() string { return k.cfg.Kafka.Topic }

// Publish writes one message. The trace context of ctx travels in the headers.
func (k *kafkaClient) Publish(ctx context.Context, key, value []byte, headers map[string]string) error {
	carrier := propagation.MapCarrier{}
	for name, v := range headers {
		carrier[name] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msg := kafka.Message{Key: key, Value: value}
	for name, v := range carrier {
		msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(v)})
	}
	return k.writer.WriteMessages(ctx, msg)
}

// Consume fetches until ctx ends. Handler failures are logged and the message stays uncommitted,
// so it is redelivered after the next rebalance.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	reader := k.consumer()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			k.logger.Error("kafka fetch failed", zap.String("topic", k.Topic()), zap.Error(err))
			select {
			case <-time.After(fetchRetryDelay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		headers := headerMap(msg.Headers)
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
		err = handler(msgCtx, Message{
			Topic:   msg.Topic,
			Key:     msg.Key,
			Value:   msg.Value,
			Headers: headers,
			Offset:  msg.Offset,
			Time:    msg.Time,
		})
		if err != nil {
			k.logger.Error("order event handler failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			k.logger.Warn("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (k *kafkaClient) consumer() *kafka.Reader {
	k.readerOnce.Do(func() {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        k.cfg.Kafka.Brokers,
			GroupID:        k.cfg.ConsumerGroup,
			Topic:          k.cfg.Kafka.Topic,
			MinBytes:       k.cfg.Kafka.MinBytes,
			MaxBytes:       k.cfg.Kafka.MaxBytes,
			CommitInterval: k.cfg.Kafka.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  k.cfg.Kafka.ConnectTimeout,
				ClientID: k.cfg.Kafka.ClientID,
			},
		})
		k.mu.Lock()
		k.reader = r
		k.mu.Unlock()
	})
	return k.reader
}

func (k *kafkaClient) close() error {
	err := k.writer.Close()
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.reader != nil {
		err = errors.Join(err, k.reader.Close())
	}
	return err
}

func headerMap(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (l kafkaLogger) debug(msg string, args ...any) {
	l.logger.Sugar().Debugf(msg, args...)
}

func (l kafkaLogger) error(msg string, args ...any) {
	l.logger.Sugar().Errorf(msg, args...)
}
