package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Unit is the period of a schedule descriptor.
type Unit string

const (
	UnitDays    Unit = "days"
	UnitMinutes Unit = "minutes"
)

const (
	// GenerateDocumentTask is the job name every descriptor points at.
	GenerateDocumentTask = "documents.generate"
	// DefaultAdHocMinutes is the ad-hoc interval when the caller gives none.
	DefaultAdHocMinutes = 2
)

// Duration returns the length of one unit.
func (u Unit) Duration() (time.Duration, bool) {
	switch u {
	case UnitDays:
		return 24 * time.Hour, true
	case UnitMinutes:
		return time.Minute, true
	}
	return 0, false
}

// Descriptor is the (interval, unit, job, args) tuple registered with the
// execution engine. Name identifies the registration.
type Descriptor struct {
	Name  string
	Every int
	Unit  Unit
	Task  string
	Args  []uint
}

// Interval returns Every*Unit, or ErrInvalidSchedule.
func (d Descriptor) Interval() (time.Duration, error) {
	if d.Every <= 0 {
		return 0, fmt.Errorf("%w: every must be positive, got %d for %q", ErrInvalidSchedule, d.Every, d.Name)
	}
	base, ok := d.Unit.Duration()
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q for %q", ErrInvalidSchedule, d.Unit, d.Name)
	}
	return time.Duration(d.Every) * base, nil
}

// DocumentScheduleName names the flat recurring registration of a document.
func DocumentScheduleName(documentID uint) string {
	return fmt.Sprintf("Generate document %d", documentID)
}

// SequenceScheduleName names the registration of one sequence step.
func SequenceScheduleName(documentID uint, order int) string {
	return fmt.Sprintf("Generate document %d - Sequence %d", documentID, order)
}

func isSequenceScheduleName(documentID uint, name string) bool {
	return strings.HasPrefix(name, DocumentScheduleName(documentID)+" - Sequence ")
}

func intervalDescriptor(documentID uint, every int, unit Unit) Descriptor {
	return Descriptor{
		Name:  DocumentScheduleName(documentID),
		Every: every,
		Unit:  unit,
		Task:  GenerateDocumentTask,
		Args:  []uint{documentID},
	}
}

func sequenceDescriptor(documentID uint, order, days int) Descriptor {
	return Descriptor{
		Name:  SequenceScheduleName(documentID, order),
		Every: days,
		Unit:  UnitDays,
		Task:  GenerateDocumentTask,
		Args:  []uint{documentID},
	}
}
