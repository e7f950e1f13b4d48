package scheduling

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"document-generator-service/internal/document-manager/db"
)

// Firing identifies one execution of a registered descriptor.
// ScheduleName is empty for firings that did not come from the engine.
type Firing struct {
	DocumentID   uint
	ScheduleName string
}

// Completion describes what CompleteFiring did to the sequence.
type Completion struct {
	// CompletedOrder is the step marked completed, 0 when the document is not in a sequence.
	CompletedOrder int
	NextOrder      int
	NextScheduled  bool
}

// CompleteFiring records a successful render: it marks the document generated
// and delivered, and when a sequence step is pending it completes that step
// and schedules the next one. The delivered flag is flipped with a
// compare-and-set so that concurrent firings of the same document advance the
// sequence at most once; the loser gets ErrAlreadyDelivered.
func (c *Core) CompleteFiring(ctx context.Context, f Firing, content string) (Completion, error) {
	var out Completion
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Document{}).
			Where("id = ? AND delivered = ?", f.DocumentID, false).
			Updates(map[string]interface{}{"delivered": true, "generated": true, "content": content})
		if res.Error != nil {
			return fmt.Errorf("failed to mark document %d delivered: %w", f.DocumentID, res.Error)
		}

		var doc db.Document
		if err := tx.First(&doc, f.DocumentID).Error; err != nil {
			return documentLookupError(f.DocumentID, err)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: document %d", ErrAlreadyDelivered, f.DocumentID)
		}

		pos := doc.CurrentSequencePosition
		if f.ScheduleName != "" && isSequenceScheduleName(f.DocumentID, f.ScheduleName) {
			if pos == 0 {
				return fmt.Errorf("%w: %q fired with no sequence step pending", ErrStaleFiring, f.ScheduleName)
			}
			if f.ScheduleName != SequenceScheduleName(f.DocumentID, pos) {
				return fmt.Errorf("%w: %q fired while step %d is pending", ErrStaleFiring, f.ScheduleName, pos)
			}
		}
		if pos == 0 {
			return nil
		}
		return c.advanceSequence(ctx, tx, f.DocumentID, pos, &out)
	})
	if err != nil {
		return Completion{}, err
	}
	return out, nil
}

func (c *Core) advanceSequence(ctx context.Context, tx *gorm.DB, documentID uint, pos int, out *Completion) error {
	step, err := findStep(tx, documentID, pos)
	if errors.Is(err, ErrSequenceStepNotFound) {
		// The pending step was removed after it was scheduled.
		c.log.Warn().Err(err).Uint("document_id", documentID).Int("order", pos).Msg("Pending sequence step vanished, ending sequence")
		if err := c.registrarFor(tx).DisableSchedule(ctx, SequenceScheduleName(documentID, pos)); err != nil {
			return fmt.Errorf("failed to disable schedule of step %d: %w", pos, err)
		}
		return clearSequencePosition(tx, documentID)
	}
	if err != nil {
		return err
	}

	res := tx.Model(&db.SequenceStep{}).Where("id = ? AND completed = ?", step.ID, false).Update("completed", true)
	if res.Error != nil {
		return fmt.Errorf("failed to complete step %d of document %d: %w", pos, documentID, res.Error)
	}
	if res.RowsAffected == 0 {
		c.log.Warn().Uint("document_id", documentID).Int("order", pos).Msg("Sequence step was already completed")
	}
	if err := c.registrarFor(tx).DisableSchedule(ctx, SequenceScheduleName(documentID, pos)); err != nil {
		return fmt.Errorf("failed to disable schedule of step %d: %w", pos, err)
	}

	next := pos + 1
	scheduled, err := c.scheduleSequenceStep(ctx, tx, documentID, next)
	if errors.Is(err, ErrInvalidSchedule) {
		// The current step still counts as done; the chain cannot go further.
		c.log.Error().Err(err).Uint("document_id", documentID).Int("order", next).
			Msg("Next sequence step cannot be scheduled, ending sequence")
		scheduled, err = false, nil
	}
	if err != nil {
		return err
	}
	if !scheduled {
		if err := clearSequencePosition(tx, documentID); err != nil {
			return err
		}
		c.log.Info().Uint("document_id", documentID).Int("last_order", pos).Msg("Sequence finished")
	}
	*out = Completion{CompletedOrder: pos, NextOrder: next, NextScheduled: scheduled}
	return nil
}

func clearSequencePosition(tx *gorm.DB, documentID uint) error {
	if err := tx.Model(&db.Document{}).Where("id = ?", documentID).Update("current_sequence_position", 0).Error; err != nil {
		return fmt.Errorf("failed to clear sequence position of document %d: %w", documentID, err)
	}
	return nil
}
