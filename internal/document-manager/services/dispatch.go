package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"document-generator-service/internal/document-manager/events"
	"document-generator-service/internal/document-manager/scheduling"
	"document-generator-service/internal/document-worker/generation"
)

const defaultDispatchTimeout = 10 * time.Second

// Dispatcher hands a fired schedule to whatever runs the generation job.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload events.GenerationDispatchPayload) error
}

// KafkaProducerInterface is the part of *kafka.Writer the dispatcher uses.
type KafkaProducerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// KafkaDispatcher publishes dispatches for the document worker, keyed by
// document id so firings of one document stay ordered on a partition.
type KafkaDispatcher struct {
	Producer KafkaProducerInterface
	Timeout  time.Duration
	log      zerolog.Logger
}

func NewKafkaDispatcher(producer KafkaProducerInterface, logger zerolog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{
		Producer: producer,
		Timeout:  defaultDispatchTimeout,
		log:      logger.With().Str("component", "kafka_dispatcher").Logger(),
	}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, payload events.GenerationDispatchPayload) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dispatch %s: %w", payload.DispatchID, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(payload.DocumentID), 10)),
		Value: value,
	}
	writeCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	if err := d.Producer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("send dispatch %s for document %d to Kafka: %w", payload.DispatchID, payload.DocumentID, err)
	}
	d.log.Info().Str("dispatch_id", payload.DispatchID).Uint("document_id", payload.DocumentID).
		Str("schedule", payload.ScheduleName).Msg("Generation dispatched to Kafka")
	return nil
}

// Runner executes one firing in process.
type Runner interface {
	Run(ctx context.Context, f scheduling.Firing) (generation.Result, error)
}

// ResultRecorder stores the outcome of a generation run.
type ResultRecorder interface {
	Record(ctx context.Context, result events.GenerationResultPayload) error
}

// LocalDispatcher runs the generation job in the manager process and records
// its outcome the same way results coming back from Kafka are recorded.
type LocalDispatcher struct {
	Runner   Runner
	Recorder ResultRecorder
	log      zerolog.Logger
}

func NewLocalDispatcher(runner Runner, recorder ResultRecorder, logger zerolog.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		Runner:   runner,
		Recorder: recorder,
		log:      logger.With().Str("component", "local_dispatcher").Logger(),
	}
}

// Dispatch returns an error only when the outcome could not be recorded.
// Job failures end up in the recorded result.
func (d *LocalDispatcher) Dispatch(ctx context.Context, payload events.GenerationDispatchPayload) error {
	res, runErr := d.Runner.Run(ctx, scheduling.Firing{DocumentID: payload.DocumentID, ScheduleName: payload.ScheduleName})
	return d.Recorder.Record(ctx, generation.ResultPayload(payload, res, runErr))
}
