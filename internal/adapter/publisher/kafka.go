package publisher

import (
	"ainews/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter - часть kafka.Writer, которой пользуется KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher отправляет событие о каждой новой статье в топик Kafka.
// Ключ сообщения - ID статьи, поэтому события одной статьи попадают в одну партицию.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *slog.Logger
}

// NewKafkaPublisher создает publisher с синхронным writer'ом.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	log = log.With(slog.String("component", "kafka"))
	log.Info("Kafka publisher initialized",
		slog.Any("brokers", brokers),
		slog.String("topic", topic),
	)
	return newKafkaPublisher(writer, topic, log)
}

func newKafkaPublisher(writer messageWriter, topic string, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, log: log}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish отправляет статьи одним вызовом WriteMessages.
func (p *KafkaPublisher) Publish(ctx context.Context, articles []domain.Article) error {
	const op = "publisher.kafka.Publish"
	if len(articles) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(articles))
	for _, a := range articles {
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal article %s: %w", op, a.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(a.ID),
			Value: value,
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("%s: failed to write messages to %s: %w", op, p.topic, err)
	}
	p.log.Debug("Articles produced", slog.String("op", op), slog.Int("count", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.log.Info("Closing Kafka publisher")
	return p.writer.Close()
}
