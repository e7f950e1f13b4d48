package scheduling_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/db/dbtest"
	"document-generator-service/internal/document-manager/schedules"
	"document-generator-service/internal/document-manager/scheduling"
)

// recordingRegistrar counts registration calls without touching the database.
type recordingRegistrar struct {
	mu       sync.Mutex
	upserts  []scheduling.Descriptor
	disabled []string
}

func (r *recordingRegistrar) UpsertSchedule(_ context.Context, d scheduling.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, d)
	return nil
}

func (r *recordingRegistrar) DisableSchedule(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled = append(r.disabled, name)
	return nil
}

func intPtr(v int) *int { return &v }

func newStoreCore(t *testing.T) (*scheduling.Core, *schedules.Store, *gorm.DB) {
	gormDB := dbtest.Open(t)
	store := schedules.NewStore(gormDB)
	return scheduling.NewCore(gormDB, store, zerolog.Nop()), store, gormDB
}

func loadDocument(t *testing.T, gormDB *gorm.DB, id uint) db.Document {
	var doc db.Document
	require.NoError(t, gormDB.First(&doc, id).Error)
	return doc
}

func TestValidateTask(t *testing.T) {
	testCases := []struct {
		name     string
		task     db.Task
		conflict bool
	}{
		{name: "both unset", task: db.Task{}},
		{name: "interval only", task: db.Task{Interval: intPtr(5)}},
		{name: "periodicity only", task: db.Task{PeriodicityDays: intPtr(1)}},
		{name: "both set", task: db.Task{Interval: intPtr(5), PeriodicityDays: intPtr(1)}, conflict: true},
		{name: "interval zero counts as unset", task: db.Task{Interval: intPtr(0), PeriodicityDays: intPtr(1)}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := scheduling.ValidateTask(&tc.task)
			if tc.conflict {
				assert.ErrorIs(t, err, scheduling.ErrConflictingScheduleFields)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateTask_ConflictingFieldsHasNoSideEffects(t *testing.T) {
	gormDB := dbtest.Open(t)
	reg := &recordingRegistrar{}
	core := scheduling.NewCore(gormDB, reg, zerolog.Nop())
	doc := dbtest.CreateDocument(t, gormDB, "Conflicto")

	err := core.CreateTask(context.Background(), &db.Task{DocumentID: doc.ID, Interval: intPtr(5), PeriodicityDays: intPtr(1)})
	assert.ErrorIs(t, err, scheduling.ErrConflictingScheduleFields)

	var count int64
	gormDB.Model(&db.Task{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, reg.upserts)
}

func TestCreateTask_IntervalRegistersOnceAndUpdatesInPlace(t *testing.T) {
	core, store, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "Intervalo")

	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, Interval: intPtr(5)}))

	row, err := store.Get(ctx, scheduling.DocumentScheduleName(doc.ID))
	require.NoError(t, err)
	assert.Equal(t, 5, row.Every)
	assert.Equal(t, string(scheduling.UnitDays), row.Period)
	assert.Equal(t, scheduling.GenerateDocumentTask, row.Task)
	assert.JSONEq(t, "["+strconv.FormatUint(uint64(doc.ID), 10)+"]", string(row.Args))

	// Re-creating the same configuration must not duplicate the registration.
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, Interval: intPtr(5)}))
	// A different interval replaces it.
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, Interval: intPtr(9)}))

	rows, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 9, rows[0].Every)
}

func TestScheduleInitial_SingleRegistrationCall(t *testing.T) {
	gormDB := dbtest.Open(t)
	reg := &recordingRegistrar{}
	core := scheduling.NewCore(gormDB, reg, zerolog.Nop())
	doc := dbtest.CreateDocument(t, gormDB, "Llamadas")
	dbtest.CreateSteps(t, gormDB, doc.ID, 3)
	ctx := context.Background()

	require.NoError(t, core.ScheduleInitial(ctx, &db.Task{DocumentID: doc.ID, Interval: intPtr(2)}))
	require.NoError(t, core.ScheduleInitial(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))
	require.NoError(t, core.ScheduleInitial(ctx, &db.Task{DocumentID: doc.ID}))

	require.Len(t, reg.upserts, 2)
	assert.Equal(t, scheduling.Descriptor{
		Name: scheduling.DocumentScheduleName(doc.ID), Every: 2, Unit: scheduling.UnitDays,
		Task: scheduling.GenerateDocumentTask, Args: []uint{doc.ID},
	}, reg.upserts[0])
	assert.Equal(t, scheduling.SequenceScheduleName(doc.ID, 1), reg.upserts[1].Name)
	assert.Equal(t, 3, reg.upserts[1].Every)
}

func TestSequence_AdvancesUntilLastStep(t *testing.T) {
	core, store, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "D")
	dbtest.CreateSteps(t, gormDB, doc.ID, 3, 7)

	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))

	step1 := scheduling.SequenceScheduleName(doc.ID, 1)
	row, err := store.Get(ctx, step1)
	require.NoError(t, err)
	assert.Equal(t, 3, row.Every)
	assert.Equal(t, "days", row.Period)
	assert.True(t, row.Enabled)
	assert.Equal(t, 1, loadDocument(t, gormDB, doc.ID).CurrentSequencePosition)

	// Step 1 fires.
	done, err := core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: step1}, "contenido")
	require.NoError(t, err)
	assert.Equal(t, scheduling.Completion{CompletedOrder: 1, NextOrder: 2, NextScheduled: true}, done)

	var s1 db.SequenceStep
	require.NoError(t, gormDB.Where("document_id = ? AND step_order = ?", doc.ID, 1).First(&s1).Error)
	assert.True(t, s1.Completed)
	step2 := scheduling.SequenceScheduleName(doc.ID, 2)
	row, err = store.Get(ctx, step2)
	require.NoError(t, err)
	assert.Equal(t, 7, row.Every)
	row, err = store.Get(ctx, step1)
	require.NoError(t, err)
	assert.False(t, row.Enabled, "completed step must stop firing")

	current := loadDocument(t, gormDB, doc.ID)
	assert.Equal(t, 2, current.CurrentSequencePosition)
	assert.False(t, current.Delivered, "next step opens a new delivery cycle")
	assert.True(t, current.Generated)

	// Step 2 fires: order 3 does not exist, the chain ends.
	done, err = core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: step2}, "contenido")
	require.NoError(t, err)
	assert.Equal(t, scheduling.Completion{CompletedOrder: 2, NextOrder: 3, NextScheduled: false}, done)

	rows, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	_, err = store.Get(ctx, scheduling.SequenceScheduleName(doc.ID, 3))
	assert.ErrorIs(t, err, schedules.ErrScheduleNotFound)

	final := loadDocument(t, gormDB, doc.ID)
	assert.True(t, final.Delivered)
	assert.Zero(t, final.CurrentSequencePosition)
}

func TestScheduleSequenceStep_MissingStepIsNotAnError(t *testing.T) {
	gormDB := dbtest.Open(t)
	reg := &recordingRegistrar{}
	core := scheduling.NewCore(gormDB, reg, zerolog.Nop())
	doc := dbtest.CreateDocument(t, gormDB, "SinPasos")

	scheduled, err := core.ScheduleSequenceStep(context.Background(), doc.ID, 1)
	assert.NoError(t, err)
	assert.False(t, scheduled)
	assert.Empty(t, reg.upserts)
}

func TestCompleteFiring_RedeliveredFiringDoesNotAdvance(t *testing.T) {
	core, _, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "Redelivery")
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, Interval: intPtr(1)}))

	firing := scheduling.Firing{DocumentID: doc.ID, ScheduleName: scheduling.DocumentScheduleName(doc.ID)}
	_, err := core.CompleteFiring(ctx, firing, "primero")
	require.NoError(t, err)
	_, err = core.CompleteFiring(ctx, firing, "segundo")
	assert.ErrorIs(t, err, scheduling.ErrAlreadyDelivered)
	assert.Equal(t, "primero", loadDocument(t, gormDB, doc.ID).Content)
}

func TestCompleteFiring_ConcurrentFiringsAdvanceOnce(t *testing.T) {
	core, store, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "Concurrente")
	dbtest.CreateSteps(t, gormDB, doc.ID, 1, 2, 3)
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))

	const firings = 4
	errs := make(chan error, firings)
	var wg sync.WaitGroup
	for i := 0; i < firings; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := core.CompleteFiring(ctx, scheduling.Firing{
				DocumentID: doc.ID, ScheduleName: scheduling.SequenceScheduleName(doc.ID, 1),
			}, "x")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, skipped int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, scheduling.ErrAlreadyDelivered), errors.Is(err, scheduling.ErrStaleFiring):
			skipped++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, firings-1, skipped)
	assert.Equal(t, 2, loadDocument(t, gormDB, doc.ID).CurrentSequencePosition)

	_, err := store.Get(ctx, scheduling.SequenceScheduleName(doc.ID, 3))
	assert.ErrorIs(t, err, schedules.ErrScheduleNotFound, "step 3 must not be scheduled by duplicate firings")
}

func TestCompleteFiring_StaleSequenceFiringRollsBack(t *testing.T) {
	core, _, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "Stale")
	dbtest.CreateSteps(t, gormDB, doc.ID, 1, 1)
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))
	_, err := core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: scheduling.SequenceScheduleName(doc.ID, 1)}, "x")
	require.NoError(t, err)

	_, err = core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: scheduling.SequenceScheduleName(doc.ID, 1)}, "x")
	assert.ErrorIs(t, err, scheduling.ErrStaleFiring)

	current := loadDocument(t, gormDB, doc.ID)
	assert.False(t, current.Delivered)
	assert.Equal(t, 2, current.CurrentSequencePosition)
}

func TestCompleteFiring_SequenceFiringAfterIntervalTaskIsStale(t *testing.T) {
	core, store, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "Reemplazo")
	dbtest.CreateSteps(t, gormDB, doc.ID, 3, 7)
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, Interval: intPtr(5)}))

	step1 := scheduling.SequenceScheduleName(doc.ID, 1)
	row, err := store.Get(ctx, step1)
	require.NoError(t, err)
	assert.False(t, row.Enabled, "interval task must retire the running sequence")

	_, err = core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: step1}, "x")
	assert.ErrorIs(t, err, scheduling.ErrStaleFiring)
	assert.False(t, loadDocument(t, gormDB, doc.ID).Delivered)

	done, err := core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: scheduling.DocumentScheduleName(doc.ID)}, "x")
	require.NoError(t, err)
	assert.Equal(t, scheduling.Completion{}, done)
	assert.True(t, loadDocument(t, gormDB, doc.ID).Delivered)
}

func TestCreateTask_SequenceTaskDisablesFlatSchedule(t *testing.T) {
	core, store, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "Cambio")
	dbtest.CreateSteps(t, gormDB, doc.ID, 2)
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, Interval: intPtr(5)}))
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))

	enabled, err := store.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, scheduling.SequenceScheduleName(doc.ID, 1), enabled[0].Name)
}

func TestCompleteFiring_UnschedulableNextStepEndsSequence(t *testing.T) {
	core, store, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "PasoCero")
	dbtest.CreateSteps(t, gormDB, doc.ID, 3)
	// Bulk loads can bypass the API; insert a zero-day step behind the check constraint.
	require.NoError(t, gormDB.Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("PRAGMA ignore_check_constraints = ON").Error; err != nil {
			return err
		}
		defer conn.Exec("PRAGMA ignore_check_constraints = OFF")
		return conn.Create(&db.SequenceStep{DocumentID: doc.ID, Order: 2, DaysSincePrevious: 0}).Error
	}))
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))

	step1 := scheduling.SequenceScheduleName(doc.ID, 1)
	done, err := core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: step1}, "x")
	require.NoError(t, err)
	assert.Equal(t, scheduling.Completion{CompletedOrder: 1, NextOrder: 2, NextScheduled: false}, done)

	var s1 db.SequenceStep
	require.NoError(t, gormDB.Where("document_id = ? AND step_order = ?", doc.ID, 1).First(&s1).Error)
	assert.True(t, s1.Completed)
	current := loadDocument(t, gormDB, doc.ID)
	assert.True(t, current.Delivered)
	assert.Zero(t, current.CurrentSequencePosition)
	_, err = store.Get(ctx, scheduling.SequenceScheduleName(doc.ID, 2))
	assert.ErrorIs(t, err, schedules.ErrScheduleNotFound)

	_, err = core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: step1}, "x")
	assert.ErrorIs(t, err, scheduling.ErrAlreadyDelivered)
}

func TestCompleteFiring_VanishedStepDisablesItsSchedule(t *testing.T) {
	core, store, gormDB := newStoreCore(t)
	ctx := context.Background()
	doc := dbtest.CreateDocument(t, gormDB, "Borrado")
	dbtest.CreateSteps(t, gormDB, doc.ID, 3)
	require.NoError(t, core.CreateTask(ctx, &db.Task{DocumentID: doc.ID, PeriodicityDays: intPtr(1)}))
	require.NoError(t, gormDB.Unscoped().Where("document_id = ?", doc.ID).Delete(&db.SequenceStep{}).Error)

	step1 := scheduling.SequenceScheduleName(doc.ID, 1)
	_, err := core.CompleteFiring(ctx, scheduling.Firing{DocumentID: doc.ID, ScheduleName: step1}, "x")
	require.NoError(t, err)

	row, err := store.Get(ctx, step1)
	require.NoError(t, err)
	assert.False(t, row.Enabled)
	assert.Zero(t, loadDocument(t, gormDB, doc.ID).CurrentSequencePosition)
}

func TestCompleteFiring_UnknownDocument(t *testing.T) {
	core, _, _ := newStoreCore(t)
	_, err := core.CompleteFiring(context.Background(), scheduling.Firing{DocumentID: 404}, "x")
	assert.ErrorIs(t, err, scheduling.ErrDocumentNotFound)
}

func TestCreateTask_UnknownDocument(t *testing.T) {
	core, store, _ := newStoreCore(t)
	ctx := context.Background()
	err := core.CreateTask(ctx, &db.Task{DocumentID: 404, Interval: intPtr(1)})
	assert.ErrorIs(t, err, scheduling.ErrDocumentNotFound)
	rows, _ := store.List(ctx)
	assert.Empty(t, rows)
}
