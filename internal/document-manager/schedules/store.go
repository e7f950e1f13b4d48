// Package schedules persists schedule descriptors. It is the registration
// side of the execution engine: the engine reads enabled rows and runs them.
package schedules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/scheduling"
)

var ErrScheduleNotFound = errors.New("schedule not found")

// Store is a gorm-backed scheduling.Registrar.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ scheduling.TxRegistrar = (*Store)(nil)

// WithTx returns a Store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) scheduling.Registrar {
	return &Store{db: tx}
}

// UpsertSchedule creates the named registration or updates it in place.
func (s *Store) UpsertSchedule(ctx context.Context, d scheduling.Descriptor) error {
	args, err := json.Marshal(d.Args)
	if err != nil {
		return fmt.Errorf("marshal args of %q: %w", d.Name, err)
	}
	row := taskDB.PeriodicSchedule{
		Name:    d.Name,
		Every:   d.Every,
		Period:  string(d.Unit),
		Task:    d.Task,
		Args:    datatypes.JSON(args),
		Enabled: true,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"every", "period", "task", "args", "enabled", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert schedule %q: %w", d.Name, err)
	}
	return nil
}

// DisableSchedule stops the named registration from firing. Unknown names are ignored.
func (s *Store) DisableSchedule(ctx context.Context, name string) error {
	err := s.db.WithContext(ctx).Model(&taskDB.PeriodicSchedule{}).
		Where("name = ?", name).
		Update("enabled", false).Error
	if err != nil {
		return fmt.Errorf("disable schedule %q: %w", name, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (*taskDB.PeriodicSchedule, error) {
	var row taskDB.PeriodicSchedule
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrScheduleNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %q: %w", name, err)
	}
	return &row, nil
}

func (s *Store) List(ctx context.Context) ([]taskDB.PeriodicSchedule, error) {
	var rows []taskDB.PeriodicSchedule
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return rows, nil
}

func (s *Store) ListEnabled(ctx context.Context) ([]taskDB.PeriodicSchedule, error) {
	var rows []taskDB.PeriodicSchedule
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	return rows, nil
}

// MarkRun bumps the run counter of the named registration.
func (s *Store) MarkRun(ctx context.Context, name string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&taskDB.PeriodicSchedule{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"last_run_at":     at,
			"total_run_count": gorm.Expr("total_run_count + ?", 1),
		}).Error
	if err != nil {
		return fmt.Errorf("mark run of %q: %w", name, err)
	}
	return nil
}

// Descriptor converts a stored row back to the descriptor it was registered from.
func Descriptor(row taskDB.PeriodicSchedule) (scheduling.Descriptor, error) {
	d := scheduling.Descriptor{
		Name:  row.Name,
		Every: row.Every,
		Unit:  scheduling.Unit(row.Period),
		Task:  row.Task,
	}
	if len(row.Args) > 0 {
		if err := json.Unmarshal(row.Args, &d.Args); err != nil {
			return d, fmt.Errorf("decode args of %q: %w", row.Name, err)
		}
	}
	return d, nil
}

// DocumentID returns the single document id argument of a generation descriptor.
func DocumentID(d scheduling.Descriptor) (uint, error) {
	if len(d.Args) != 1 {
		return 0, fmt.Errorf("schedule %q: expected exactly one document id argument, got %d", d.Name, len(d.Args))
	}
	return d.Args[0], nil
}
