package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink публикует уведомления как события для внешних потребителей (email, push)
type KafkaSink struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter создаёт writer для топика уведомлений
func NewKafkaWriter(brokers []string, topic string, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
}

func NewKafkaSink(writer MessageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger}
}

func (s *KafkaSink) Name() string { return "kafka" }

type notificationEvent struct {
	RecipientUserID int64                  `json:"recipient_user_id"`
	Type            model.NotificationType `json:"type"`
	Message         string                 `json:"message"`
	Link            *string                `json:"link,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Send пишет событие с ключом = ID получателя, чтобы события одного пользователя шли по порядку
func (s *KafkaSink) Send(ctx context.Context, n model.Notification) error {
	value, err := json.Marshal(notificationEvent{
		RecipientUserID: n.RecipientUserID,
		Type:            n.Type,
		Message:         n.Message,
		Link:            n.Link,
		CreatedAt:       n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(n.RecipientUserID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(n.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write notification event: %w", err)
	}

	return nil
}

func (s *KafkaSink) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	s.logger.Info("Kafka notification writer closed")
	return nil
}
