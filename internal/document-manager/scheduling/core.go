package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"document-generator-service/internal/document-manager/db"
)

// Registrar creates or replaces descriptor registrations with the execution
// engine. Registering an existing name updates it in place.
type Registrar interface {
	UpsertSchedule(ctx context.Context, d Descriptor) error
	DisableSchedule(ctx context.Context, name string) error
}

// TxRegistrar is a Registrar that can join a gorm transaction.
type TxRegistrar interface {
	Registrar
	WithTx(tx *gorm.DB) Registrar
}

// Core decides which descriptors a document's task configuration needs and
// drives the sequence state machine.
type Core struct {
	db        *gorm.DB
	registrar Registrar
	log       zerolog.Logger
}

func NewCore(gormDB *gorm.DB, registrar Registrar, logger zerolog.Logger) *Core {
	return &Core{
		db:        gormDB,
		registrar: registrar,
		log:       logger.With().Str("component", "scheduler_core").Logger(),
	}
}

func (c *Core) registrarFor(tx *gorm.DB) Registrar {
	if tr, ok := c.registrar.(TxRegistrar); ok {
		return tr.WithTx(tx)
	}
	return c.registrar
}

// CreateTask validates and stores a task configuration, opens a new delivery
// cycle for its document and computes the initial schedule, all in one
// transaction.
func (c *Core) CreateTask(ctx context.Context, task *db.Task) error {
	if err := ValidateTask(task); err != nil {
		return err
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc db.Document
		if err := tx.First(&doc, task.DocumentID).Error; err != nil {
			return documentLookupError(task.DocumentID, err)
		}
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("failed to create task for document %d: %w", task.DocumentID, err)
		}
		cycle := map[string]interface{}{"delivered": false, "current_sequence_position": 0}
		if err := tx.Model(&db.Document{}).Where("id = ?", doc.ID).Updates(cycle).Error; err != nil {
			return fmt.Errorf("failed to reset delivery cycle of document %d: %w", doc.ID, err)
		}
		if err := c.retireOtherSurface(ctx, tx, task, doc.CurrentSequencePosition); err != nil {
			return err
		}
		return c.scheduleInitial(ctx, tx, task)
	})
}

// retireOtherSurface disables the registrations a new task replaces: an
// interval task ends any running sequence, a sequence task ends the flat
// recurring schedule.
func (c *Core) retireOtherSurface(ctx context.Context, tx *gorm.DB, task *db.Task, pendingOrder int) error {
	var names []string
	switch {
	case isSet(task.Interval):
		var orders []int
		if err := tx.Model(&db.SequenceStep{}).Where("document_id = ?", task.DocumentID).
			Pluck("step_order", &orders).Error; err != nil {
			return fmt.Errorf("failed to list steps of document %d: %w", task.DocumentID, err)
		}
		if pendingOrder > 0 {
			orders = append(orders, pendingOrder)
		}
		for _, order := range orders {
			names = append(names, SequenceScheduleName(task.DocumentID, order))
		}
	case isSet(task.PeriodicityDays):
		names = append(names, DocumentScheduleName(task.DocumentID))
	}

	reg := c.registrarFor(tx)
	for _, name := range names {
		if err := reg.DisableSchedule(ctx, name); err != nil {
			return fmt.Errorf("failed to disable %q: %w", name, err)
		}
	}
	return nil
}

// ScheduleInitial registers the first descriptor for an already stored task.
// Calling it again for the same task updates the same registration.
func (c *Core) ScheduleInitial(ctx context.Context, task *db.Task) error {
	if err := ValidateTask(task); err != nil {
		return err
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return c.scheduleInitial(ctx, tx, task)
	})
}

func (c *Core) scheduleInitial(ctx context.Context, tx *gorm.DB, task *db.Task) error {
	switch {
	case isSet(task.Interval):
		d := intervalDescriptor(task.DocumentID, *task.Interval, UnitDays)
		if _, err := d.Interval(); err != nil {
			return err
		}
		if err := c.registrarFor(tx).UpsertSchedule(ctx, d); err != nil {
			return fmt.Errorf("failed to register %q: %w", d.Name, err)
		}
		c.log.Info().Uint("document_id", task.DocumentID).Str("schedule", d.Name).Int("every", d.Every).
			Str("unit", string(d.Unit)).Msg("Registered recurring document schedule")
		return nil
	case isSet(task.PeriodicityDays):
		_, err := c.scheduleSequenceStep(ctx, tx, task.DocumentID, 1)
		return err
	default:
		c.log.Debug().Uint("document_id", task.DocumentID).Msg("Task has no scheduling fields, nothing registered")
		return nil
	}
}

// ScheduleSequenceStep registers the descriptor of the step at order and
// makes it the document's pending step. A missing step is the normal end of
// a chain: it is logged and reported as scheduled=false with a nil error.
func (c *Core) ScheduleSequenceStep(ctx context.Context, documentID uint, order int) (bool, error) {
	var scheduled bool
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		scheduled, err = c.scheduleSequenceStep(ctx, tx, documentID, order)
		return err
	})
	return scheduled, err
}

func (c *Core) scheduleSequenceStep(ctx context.Context, tx *gorm.DB, documentID uint, order int) (bool, error) {
	step, err := findStep(tx, documentID, order)
	if errors.Is(err, ErrSequenceStepNotFound) {
		c.log.Info().Err(err).Uint("document_id", documentID).Int("order", order).
			Msg("No sequence step at this order, nothing scheduled")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	d := sequenceDescriptor(documentID, order, step.DaysSincePrevious)
	if _, err := d.Interval(); err != nil {
		return false, err
	}
	pending := map[string]interface{}{"current_sequence_position": order, "delivered": false}
	if err := tx.Model(&db.Document{}).Where("id = ?", documentID).Updates(pending).Error; err != nil {
		return false, fmt.Errorf("failed to set pending step %d of document %d: %w", order, documentID, err)
	}
	if err := c.registrarFor(tx).UpsertSchedule(ctx, d); err != nil {
		return false, fmt.Errorf("failed to register %q: %w", d.Name, err)
	}
	c.log.Info().Uint("document_id", documentID).Int("order", order).Str("schedule", d.Name).
		Int("every", d.Every).Msg("Registered sequence step schedule")
	return true, nil
}

func findStep(tx *gorm.DB, documentID uint, order int) (*db.SequenceStep, error) {
	var step db.SequenceStep
	err := tx.Where("document_id = ? AND step_order = ?", documentID, order).First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: document %d order %d", ErrSequenceStepNotFound, documentID, order)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load step %d of document %d: %w", order, documentID, err)
	}
	return &step, nil
}
