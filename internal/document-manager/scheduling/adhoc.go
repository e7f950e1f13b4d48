package scheduling

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"document-generator-service/internal/document-manager/db"
)

// ConfigureInterval is the ad-hoc reconfiguration path. It stores a task and
// registers a minute-granularity recurring descriptor under the document's
// flat schedule name (DefaultAdHocMinutes when minutes is nil). A delivered
// document is refused with ErrAlreadyDelivered before anything is written.
func (c *Core) ConfigureInterval(ctx context.Context, documentID uint, minutes *int) (*db.Task, Descriptor, error) {
	every := DefaultAdHocMinutes
	if minutes != nil {
		every = *minutes
	}
	d := intervalDescriptor(documentID, every, UnitMinutes)
	if _, err := d.Interval(); err != nil {
		return nil, Descriptor{}, err
	}

	task := &db.Task{DocumentID: documentID, IntervalMinutes: &every}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc db.Document
		if err := tx.First(&doc, documentID).Error; err != nil {
			return documentLookupError(documentID, err)
		}
		if doc.Delivered {
			return fmt.Errorf("%w: document %d", ErrAlreadyDelivered, documentID)
		}
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("failed to create task for document %d: %w", documentID, err)
		}
		if err := c.registrarFor(tx).UpsertSchedule(ctx, d); err != nil {
			return fmt.Errorf("failed to register %q: %w", d.Name, err)
		}
		return nil
	})
	if err != nil {
		return nil, Descriptor{}, err
	}
	c.log.Info().Uint("document_id", documentID).Str("schedule", d.Name).Int("every", every).
		Msg("Registered ad-hoc minute schedule")
	return task, d, nil
}
