// Package consumer drives the generation job from the dispatch topic.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"document-generator-service/internal/document-manager/events"
	"document-generator-service/internal/document-manager/scheduling"
	"document-generator-service/internal/document-worker/generation"
	"document-generator-service/pkg/validation"
)

var dispatchSchema = validation.MustCompile("generation_dispatch.json", `{
	"type": "object",
	"properties": {
		"dispatch_id": {"type": "string", "minLength": 1},
		"document_id": {"type": "integer", "minimum": 1},
		"schedule_name": {"type": "string"},
		"dispatched_at": {"type": "string"}
	},
	"required": ["dispatch_id", "document_id"]
}`)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Runner executes one firing.
type Runner interface {
	Run(ctx context.Context, f scheduling.Firing) (generation.Result, error)
}

// Consumer reads dispatches, runs them one at a time under a rate limit and
// publishes one result per dispatch.
type Consumer struct {
	Reader  MessageReader
	Results MessageWriter
	Runner  Runner
	Limiter *rate.Limiter
	log     zerolog.Logger
}

// New builds a consumer allowing perSecond runs per second with a burst of one.
func New(reader MessageReader, results MessageWriter, runner Runner, perSecond int, logger zerolog.Logger) *Consumer {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Consumer{
		Reader:  reader,
		Results: results,
		Runner:  runner,
		Limiter: rate.NewLimiter(limit, 1),
		log:     logger.With().Str("component", "generation_consumer").Logger(),
	}
}

// Run consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Msg("Document worker listening for dispatches...")
	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("Context cancelled, exiting message loop")
			return nil
		}
		readCtx, cancel := context.WithTimeout(ctx, time.Second)
		msg, err := c.Reader.ReadMessage(readCtx)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded):
			continue
		case errors.Is(err, context.Canceled):
			continue
		case errors.Is(err, io.EOF):
			c.log.Info().Msg("Kafka reader closed (EOF), exiting")
			return nil
		default:
			c.log.Error().Err(err).Msg("Kafka read error, retrying")
			time.Sleep(time.Second)
			continue
		}

		if err := c.Limiter.Wait(ctx); err != nil {
			return nil
		}
		c.Handle(ctx, msg)
	}
}

// Handle runs one dispatch message and publishes its result. Malformed
// messages are logged and dropped.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	c.log.Debug().Str("topic", msg.Topic).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("Received dispatch")
	if err := dispatchSchema.Validate(msg.Value); err != nil {
		c.log.Error().Err(err).Bytes("value", msg.Value).Msg("Dropping invalid dispatch")
		return
	}
	var dispatch events.GenerationDispatchPayload
	if err := json.Unmarshal(msg.Value, &dispatch); err != nil {
		c.log.Error().Err(err).Bytes("value", msg.Value).Msg("Dropping undecodable dispatch")
		return
	}

	res, runErr := c.Runner.Run(ctx, scheduling.Firing{DocumentID: dispatch.DocumentID, ScheduleName: dispatch.ScheduleName})
	result := generation.ResultPayload(dispatch, res, runErr)
	if err := c.publish(result); err != nil {
		c.log.Error().Err(err).Str("dispatch_id", dispatch.DispatchID).Msg("Error sending result")
		return
	}
	c.log.Info().Str("dispatch_id", dispatch.DispatchID).Uint("document_id", dispatch.DocumentID).
		Str("status", result.Status).Msg("Result sent")
}

func (c *Consumer) publish(result events.GenerationResultPayload) error {
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	msg := kafka.Message{Key: []byte(strconv.FormatUint(uint64(result.DocumentID), 10)), Value: value}
	// Results are sent even while shutting down so the manager sees every run.
	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Results.WriteMessages(writeCtx, msg)
}
