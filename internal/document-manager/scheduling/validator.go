package scheduling

import (
	"document-generator-service/internal/document-manager/db"
)

// ValidateTask rejects a task that sets both the flat interval and the
// sequence periodicity. A task with neither is valid and schedules nothing.
func ValidateTask(task *db.Task) error {
	if isSet(task.Interval) && isSet(task.PeriodicityDays) {
		return ErrConflictingScheduleFields
	}
	return nil
}

func isSet(v *int) bool { return v != nil && *v != 0 }
