// Package generation runs the unit of work fired by a document schedule:
// render, store, then hand the result to the scheduler core.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/events"
	"document-generator-service/internal/document-manager/scheduling"
	"document-generator-service/internal/document-worker/renderers"
	"document-generator-service/internal/document-worker/storage"
)

// Completer records a successful firing and advances any sequence.
type Completer interface {
	CompleteFiring(ctx context.Context, f scheduling.Firing, content string) (scheduling.Completion, error)
}

type Job struct {
	DB        *gorm.DB
	Core      Completer
	Sink      storage.Sink
	OutputDir string
	log       zerolog.Logger
}

func NewJob(db *gorm.DB, core Completer, sink storage.Sink, outputDir string, logger zerolog.Logger) *Job {
	if sink == nil {
		sink = storage.LocalSink{}
	}
	return &Job{
		DB:        db,
		Core:      core,
		Sink:      sink,
		OutputDir: outputDir,
		log:       logger.With().Str("component", "generation_job").Logger(),
	}
}

// Result is what a successful firing produced.
type Result struct {
	DocumentID  uint
	Location    string
	Content     string
	ContentType string
	Completion  scheduling.Completion
}

// Run executes one firing. A delivered document is skipped with
// ErrAlreadyDelivered before rendering. Render or storage failures return
// ErrRenderFailed and leave every flag untouched so the next firing retries.
func (j *Job) Run(ctx context.Context, f scheduling.Firing) (Result, error) {
	logger := j.log.With().Uint("document_id", f.DocumentID).Str("schedule", f.ScheduleName).Logger()

	doc, err := j.loadDocument(ctx, f.DocumentID)
	if err != nil {
		logger.Error().Err(err).Msg("Cannot run generation")
		return Result{}, err
	}
	if doc.Delivered {
		logger.Info().Msg("Document already delivered, skipping firing")
		return Result{}, fmt.Errorf("%w: document %d", scheduling.ErrAlreadyDelivered, doc.ID)
	}

	out, location, err := j.render(ctx, doc)
	if err != nil {
		logger.Error().Err(err).Msg("Render failed, document left eligible for retry")
		return Result{}, err
	}

	completion, err := j.Core.CompleteFiring(ctx, f, out.Content)
	if err != nil {
		logger.Warn().Err(err).Msg("Firing not recorded")
		return Result{}, err
	}
	logger.Info().Str("location", location).Int("completed_order", completion.CompletedOrder).
		Bool("next_scheduled", completion.NextScheduled).Msg("Document generated and delivered")
	return Result{
		DocumentID:  doc.ID,
		Location:    location,
		Content:     out.Content,
		ContentType: out.ContentType,
		Completion:  completion,
	}, nil
}

// Generate renders a document on demand. It stores the content and marks the
// document generated but does not touch its delivery or sequence state.
func (j *Job) Generate(ctx context.Context, documentID uint) (renderers.Output, error) {
	doc, err := j.loadDocument(ctx, documentID)
	if err != nil {
		return renderers.Output{}, err
	}
	out, _, err := j.render(ctx, doc)
	if err != nil {
		return renderers.Output{}, err
	}
	err = j.DB.WithContext(ctx).Model(&taskDB.Document{}).Where("id = ?", doc.ID).
		Updates(map[string]interface{}{"content": out.Content, "generated": true}).Error
	if err != nil {
		return renderers.Output{}, fmt.Errorf("failed to store content of document %d: %w", doc.ID, err)
	}
	j.log.Info().Uint("document_id", doc.ID).Str("file", out.FilePath).Msg("Document generated on demand")
	return out, nil
}

func (j *Job) loadDocument(ctx context.Context, documentID uint) (taskDB.Document, error) {
	var doc taskDB.Document
	err := j.DB.WithContext(ctx).First(&doc, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return doc, fmt.Errorf("%w: id %d", scheduling.ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return doc, fmt.Errorf("failed to load document %d: %w", documentID, err)
	}
	return doc, nil
}

func (j *Job) render(ctx context.Context, doc taskDB.Document) (renderers.Output, string, error) {
	renderer, err := renderers.GetRenderer(doc.Format)
	if err != nil {
		return renderers.Output{}, "", fmt.Errorf("%w: %w", scheduling.ErrRenderFailed, err)
	}
	out, err := renderer.Render(doc, j.OutputDir)
	if err != nil {
		return renderers.Output{}, "", fmt.Errorf("%w: %w", scheduling.ErrRenderFailed, err)
	}
	location, err := j.Sink.Store(ctx, doc.ID, out.FilePath)
	if err != nil {
		return renderers.Output{}, "", fmt.Errorf("%w: %w", scheduling.ErrRenderFailed, err)
	}
	return out, location, nil
}

// Status maps the outcome of Run to a generation run status.
func Status(err error) string {
	switch {
	case err == nil:
		return taskDB.RunStatusCompleted
	case errors.Is(err, scheduling.ErrAlreadyDelivered), errors.Is(err, scheduling.ErrStaleFiring):
		return taskDB.RunStatusSkipped
	default:
		return taskDB.RunStatusFailed
	}
}

// ResultPayload builds the result message of one dispatched run.
func ResultPayload(dispatch events.GenerationDispatchPayload, res Result, runErr error) events.GenerationResultPayload {
	result := events.GenerationResultPayload{
		DispatchID:   dispatch.DispatchID,
		DocumentID:   dispatch.DocumentID,
		ScheduleName: dispatch.ScheduleName,
		Status:       Status(runErr),
		FilePath:     res.Location,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result
}
