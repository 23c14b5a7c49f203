package membership

import (
	"context"
	"encoding/json"
	"fmt"

	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Журнал изменений счетчиков участников в Kafka, ключ сообщения - email
type AuditWriter struct {
	writer messageWriter
}

func NewAuditWriter(url string, port string, topic string) (*AuditWriter, error) {
	if url == "" {
		return nil, fmt.Errorf("env KAFKA_AUDIT_URL is not set")
	}
	if topic == "" {
		return nil, fmt.Errorf("env KAFKA_AUDIT_TOPIC is not set")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(url + ":" + port),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &AuditWriter{w}, nil
}

func (a *AuditWriter) Record(ctx context.Context, entry models.AuditEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return a.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.Email),
		Value: value,
		Time:  entry.At,
	})
}

func (a *AuditWriter) Close() {
	a.writer.Close()
}
