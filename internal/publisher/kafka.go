package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LJTian/EdNewsHub/internal/aggregator"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 把 ContentUpdate 以 JSON 写入 Kafka，key 为内容 ID，
// 同一内容总是落到同一个分区
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

var _ aggregator.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(broker, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
	}
	logger = logger.With("component", "publisher")
	logger.Info("kafka publisher initialized", "broker", broker, "topic", topic)
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, updates []aggregator.ContentUpdate) error {
	msgs, err := buildMessages(updates)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to kafka: %w", len(msgs), err)
	}
	p.logger.Debug("published content updates", "count", len(msgs))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildMessages(updates []aggregator.ContentUpdate) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(updates))
	for _, u := range updates {
		value, err := json.Marshal(u)
		if err != nil {
			return nil, fmt.Errorf("marshal update %s: %w", u.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(u.ID),
			Value: value,
			Time:  u.Timestamp,
		})
	}
	return msgs, nil
}
