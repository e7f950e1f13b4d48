package scheduling

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrConflictingScheduleFields rejects a task with both interval and periodicity set.
	ErrConflictingScheduleFields = errors.New("only one of 'intervalo' or 'periodicidad_dias' may be set")
	// ErrSequenceStepNotFound marks the end of a sequence chain. It is logged, never returned.
	ErrSequenceStepNotFound = errors.New("sequence step not found")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrAlreadyDelivered     = errors.New("document already delivered")
	ErrRenderFailed         = errors.New("document render failed")
	ErrInvalidSchedule      = errors.New("invalid schedule descriptor")
	// ErrStaleFiring is returned when a sequence firing does not belong to the pending step.
	ErrStaleFiring = errors.New("firing does not match the pending sequence step")
)

func documentLookupError(documentID uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id %d", ErrDocumentNotFound, documentID)
	}
	return fmt.Errorf("failed to load document %d: %w", documentID, err)
}
