package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Output formats a document can be rendered to.
const (
	FormatText        = "txt"
	FormatWord        = "docx"
	FormatSpreadsheet = "xlsx"
)

// ValidFormat reports whether f is one of the supported output formats.
func ValidFormat(f string) bool {
	return f == FormatText || f == FormatWord || f == FormatSpreadsheet
}

// Document holds the template fields of a generated document and its delivery state.
type Document struct {
	gorm.Model
	Name      string `json:"nombre" gorm:"size:100;not null"`
	Plate     string `json:"placa" gorm:"size:10;not null"`
	Entity    int    `json:"entidad"`
	Content   string `json:"contenido" gorm:"type:text"`
	Format    string `json:"formato" gorm:"size:10;default:txt"`
	Generated bool   `json:"generado" gorm:"default:false"`
	Delivered bool   `json:"entregado" gorm:"default:false;index"`
	// CurrentSequencePosition is the order of the sequence step whose firing is
	// pending. Zero means the document is not running a sequence.
	CurrentSequencePosition int `json:"posicion_secuencia" gorm:"default:0"`
}

// Task is a document's scheduling policy: a flat interval in days or a
// sequence started at step 1. At most one of the two fields is set.
type Task struct {
	gorm.Model                // CreatedAt is the generation timestamp
	DocumentID      uint      `json:"documento" gorm:"index;not null"`
	Document        *Document `json:"-"`
	Interval        *int      `json:"intervalo,omitempty"`
	PeriodicityDays *int      `json:"periodicidad_dias,omitempty"`
	// IntervalMinutes is only set by the ad-hoc reconfiguration path.
	IntervalMinutes *int `json:"intervalo_minutos,omitempty"`
}

// SequenceStep is one ordered link in a document's chain of deferred deliveries.
type SequenceStep struct {
	gorm.Model
	DocumentID        uint      `json:"documento" gorm:"not null;uniqueIndex:idx_sequence_document_order,priority:1"`
	Document          *Document `json:"-"`
	Order             int       `json:"orden" gorm:"column:step_order;not null;uniqueIndex:idx_sequence_document_order,priority:2"`
	DaysSincePrevious int       `json:"dias_desde_anterior" gorm:"not null;check:chk_sequence_steps_days,days_since_previous >= 1"`
	Completed         bool      `json:"completado" gorm:"default:false"`
}

// PeriodicSchedule is a registered schedule descriptor. Name is unique: a new
// registration under an existing name updates the row in place.
type PeriodicSchedule struct {
	gorm.Model
	Name          string         `json:"name" gorm:"size:200;uniqueIndex;not null"`
	Every         int            `json:"every" gorm:"not null"`
	Period        string         `json:"period" gorm:"size:16;not null"`
	Task          string         `json:"task" gorm:"size:200;not null"`
	Args          datatypes.JSON `json:"args"`
	Enabled       bool           `json:"enabled" gorm:"default:true;index"`
	LastRunAt     *time.Time     `json:"last_run_at,omitempty"`
	TotalRunCount int            `json:"total_run_count" gorm:"default:0"`
}

// Generation run statuses.
const (
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
	RunStatusSkipped   = "SKIPPED"
)

// GenerationRun records the outcome of one generation firing.
type GenerationRun struct {
	gorm.Model
	RunID        string `json:"run_id" gorm:"size:36;uniqueIndex"`
	DocumentID   uint   `json:"documento" gorm:"index"`
	ScheduleName string `json:"schedule_name" gorm:"size:200"`
	Status       string `json:"status" gorm:"size:16;index"`
	FilePath     string `json:"file_path,omitempty"`
	Error        string `json:"error,omitempty" gorm:"type:text"`
}

// AllModels lists every model for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Document{}, &Task{}, &SequenceStep{}, &PeriodicSchedule{}, &GenerationRun{},
	}
}
