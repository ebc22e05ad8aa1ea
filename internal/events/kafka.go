package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

const (
	// enqueueTimeout bounds Publish on the request path.
	enqueueTimeout = 250 * time.Millisecond
	// deliveryTimeout bounds the background write to the brokers.
	deliveryTimeout = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the producer. Username enables SASL/PLAIN over TLS.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
}

// Kafka writes events as JSON messages keyed by Event.Key.
type Kafka struct {
	w   messageWriter
	log *zap.Logger
}

// NewKafka builds an async producer. Publish only enqueues; delivery
// failures are logged from the writer's completion callback.
func NewKafka(cfg KafkaConfig, log *zap.Logger) *Kafka {
	if log == nil {
		log = zap.NewNop()
	}
	k := &Kafka{log: log}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion:   k.completed,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: deliveryTimeout,
	}
	if cfg.Username != "" {
		w.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}
	k.w = w
	return k
}

func (k *Kafka) completed(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		k.log.Warn("event delivery failed",
			zap.String("key", string(m.Key)),
			zap.String("type", headerValue(m, "type")),
			zap.Error(err))
	}
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Publish encodes e and hands it to the writer, waiting at most
// enqueueTimeout.
func (k *Kafka) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error { return k.w.Close() }
