package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/events"
	"document-generator-service/pkg/validation"
)

var resultSchema = validation.MustCompile("generation_result.json", `{
	"type": "object",
	"properties": {
		"dispatch_id": {"type": "string", "minLength": 1},
		"document_id": {"type": "integer", "minimum": 1},
		"schedule_name": {"type": "string"},
		"status": {"enum": ["COMPLETED", "FAILED", "SKIPPED"]},
		"file_path": {"type": "string"},
		"error": {"type": "string"}
	},
	"required": ["dispatch_id", "document_id", "status"]
}`)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// SyncRequester is notified after a completed run, since completing a
// sequence step changes the set of enabled schedules.
type SyncRequester interface {
	RequestSync()
}

// ResultService records generation outcomes, from the local dispatcher or
// from the worker's result topic.
type ResultService struct {
	DB     *gorm.DB
	Reader MessageReader
	Syncer SyncRequester
	log    zerolog.Logger
}

func NewResultService(gormDB *gorm.DB, reader MessageReader, logger zerolog.Logger) *ResultService {
	return &ResultService{
		DB:     gormDB,
		Reader: reader,
		log:    logger.With().Str("component", "result_service").Logger(),
	}
}

// Record stores one run. A redelivered result with a known dispatch id is ignored.
func (s *ResultService) Record(ctx context.Context, result events.GenerationResultPayload) error {
	run := taskDB.GenerationRun{
		RunID:        result.DispatchID,
		DocumentID:   result.DocumentID,
		ScheduleName: result.ScheduleName,
		Status:       result.Status,
		FilePath:     result.FilePath,
		Error:        result.Error,
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		DoNothing: true,
	}).Create(&run)
	if res.Error != nil {
		return fmt.Errorf("record generation run %s: %w", result.DispatchID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.log.Debug().Str("dispatch_id", result.DispatchID).Msg("Generation run already recorded")
		return nil
	}

	event := s.log.Info()
	if result.Status == taskDB.RunStatusFailed {
		event = s.log.Warn().Str("error", result.Error)
	}
	event.Str("dispatch_id", result.DispatchID).Uint("document_id", result.DocumentID).
		Str("schedule", result.ScheduleName).Str("status", result.Status).Msg("Generation run recorded")

	if result.Status == taskDB.RunStatusCompleted && s.Syncer != nil {
		s.Syncer.RequestSync()
	}
	return nil
}

func (s *ResultService) handleMessage(ctx context.Context, msg kafka.Message) error {
	if err := resultSchema.Validate(msg.Value); err != nil {
		return fmt.Errorf("invalid generation result: %w", err)
	}
	var payload events.GenerationResultPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("error unmarshalling generation result: %w", err)
	}
	return s.Record(ctx, payload)
}

func (s *ResultService) StartConsuming(ctx context.Context) {
	s.log.Info().Msg("ResultService starting to consume generation results...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("ResultService: context cancelled, stopping consumer")
				return
			default:
			}

			readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			msg, err := s.Reader.ReadMessage(readCtx)
			cancel()

			switch {
			case err == nil:
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				s.log.Info().Msg("ResultService: read context cancelled")
				return
			case errors.Is(err, io.EOF):
				s.log.Info().Msg("ResultService: Kafka reader closed (EOF), stopping consumption")
				return
			default:
				s.log.Error().Err(err).Msg("ResultService: error reading message")
				time.Sleep(time.Second)
				continue
			}

			s.log.Debug().Str("topic", msg.Topic).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("ResultService: received message")
			if err := s.handleMessage(ctx, msg); err != nil {
				s.log.Error().Err(err).Bytes("value", msg.Value).Msg("ResultService: dropping message")
			}
		}
	}()
}

func (s *ResultService) Close() {
	if s.Reader != nil {
		s.log.Info().Msg("ResultService: closing Kafka reader")
		if err := s.Reader.Close(); err != nil {
			s.log.Warn().Err(err).Msg("ResultService: error closing Kafka reader")
		}
	}
}
