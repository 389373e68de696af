package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

func TestNewClientDisabled(t *testing.T) {
	cfg := config.Config{}
	cfg.Messaging.Kafka.Topic = "orders.events"

	client, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.Topic() != "orders.events" {
		t.Fatalf("Topic() = %q", client.Topic())
	}
	if err := client.Publish(context.Background(), []byte("k"), []byte("v"), map[string]string{HeaderEventType: "order.created"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := client.Consume(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Consume() error = %v, want deadline exceeded", err)
	}
}

func TestNewClientUnsupportedDriver(t *testing.T) {
	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Driver = "nats"

	if _, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop()); err == nil {
		t.Fatal("NewClient() error = nil, want unsupported driver")
	}
}

func TestHeaderMap(t *testing.T) {
	if headerMap(nil) != nil {
		t.Fatal("headerMap(nil) != nil")
	}
	got := headerMap([]kafka.Header{
		{Key: HeaderEventType, Value: []byte("orders.deleted")},
		{Key: "trace", Value: []byte("abc")},
	})
	if got[HeaderEventType] != "orders.deleted" || got["trace"] != "abc" {
		t.Fatalf("headerMap() = %v", got)
	}
}

func TestKafkaReaderCreatedOnConsume(t *testing.T) {
	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Driver = "kafka"
	cfg.Messaging.ConsumerGroup = "orderdesk-audit"
	cfg.Messaging.Kafka.Brokers = []string{"127.0.0.1:0"}
	cfg.Messaging.Kafka.Topic = "orders.events"

	client, err := NewClient(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	k, ok := client.(*kafkaClient)
	if !ok {
		t.Fatalf("NewClient() = %T, want *kafkaClient", client)
	}
	if k.reader != nil {
		t.Fatal("reader created before Consume")
	}
	if err := k.close(); err != nil {
		t.Fatalf("close() error = %v", err)
	}
}
