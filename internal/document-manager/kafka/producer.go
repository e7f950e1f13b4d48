package kafka

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"document-generator-service/internal/config"
)

// NewProducer returns a synchronous writer for topic on the configured brokers.
func NewProducer(cfg config.KafkaConfig, topic string, logger zerolog.Logger) *kafka.Writer {
	producer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", topic).Msg("Kafka producer configured")
	return producer
}

// NewConsumer returns a group reader for topic.
func NewConsumer(cfg config.KafkaConfig, topic, groupID string, logger zerolog.Logger) *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	logger.Info().Str("topic", topic).Str("group_id", groupID).Msg("Kafka consumer configured")
	return reader
}
