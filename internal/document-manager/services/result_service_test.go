package services

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskDB "document-generator-service/internal/document-manager/db"
	"document-generator-service/internal/document-manager/db/dbtest"
	"document-generator-service/internal/document-manager/events"
)

type countingSyncer struct{ calls atomic.Int32 }

func (c *countingSyncer) RequestSync() { c.calls.Add(1) }

// chanReader feeds queued messages and then reports the reader closed.
type chanReader struct {
	msgs   chan kafka.Message
	closed atomic.Bool
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg, ok := <-r.msgs:
		if !ok {
			return kafka.Message{}, io.EOF
		}
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) Close() error {
	r.closed.Store(true)
	return nil
}

func completedResult(id string) events.GenerationResultPayload {
	return events.GenerationResultPayload{
		DispatchID: id, DocumentID: 3, ScheduleName: "Generate document 3",
		Status: taskDB.RunStatusCompleted, FilePath: "documentos_generados/doc.txt",
	}
}

func TestRecord_IgnoresDuplicateDispatch(t *testing.T) {
	gormDB := dbtest.Open(t)
	syncer := &countingSyncer{}
	svc := NewResultService(gormDB, nil, zerolog.Nop())
	svc.Syncer = syncer
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, completedResult("run-1")))
	dup := completedResult("run-1")
	dup.Status = taskDB.RunStatusFailed
	require.NoError(t, svc.Record(ctx, dup))

	var runs []taskDB.GenerationRun
	require.NoError(t, gormDB.Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.Equal(t, taskDB.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestRecord_OnlyCompletedRunsRequestSync(t *testing.T) {
	syncer := &countingSyncer{}
	svc := NewResultService(dbtest.Open(t), nil, zerolog.Nop())
	svc.Syncer = syncer

	failed := completedResult("run-2")
	failed.Status = taskDB.RunStatusFailed
	failed.Error = "document render failed"
	require.NoError(t, svc.Record(context.Background(), failed))
	assert.Zero(t, syncer.calls.Load())
}

func TestHandleMessage_RejectsInvalidPayload(t *testing.T) {
	gormDB := dbtest.Open(t)
	svc := NewResultService(gormDB, nil, zerolog.Nop())
	ctx := context.Background()

	for _, value := range []string{
		`not json`,
		`{"document_id": 3, "status": "COMPLETED"}`,
		`{"dispatch_id": "x", "document_id": 3, "status": "DONE"}`,
		`{"dispatch_id": "x", "document_id": 0, "status": "FAILED"}`,
	} {
		assert.Error(t, svc.handleMessage(ctx, kafka.Message{Value: []byte(value)}), value)
	}
	var count int64
	gormDB.Model(&taskDB.GenerationRun{}).Count(&count)
	assert.Zero(t, count)
}

func TestStartConsuming_RecordsUntilReaderCloses(t *testing.T) {
	gormDB := dbtest.Open(t)
	reader := &chanReader{msgs: make(chan kafka.Message, 3)}
	svc := NewResultService(gormDB, reader, zerolog.Nop())

	for _, id := range []string{"a", "b"} {
		value, err := json.Marshal(completedResult(id))
		require.NoError(t, err)
		reader.msgs <- kafka.Message{Value: value}
	}
	reader.msgs <- kafka.Message{Value: []byte(`{"broken":`)}
	close(reader.msgs)

	svc.StartConsuming(context.Background())
	assert.Eventually(t, func() bool {
		var count int64
		gormDB.Model(&taskDB.GenerationRun{}).Count(&count)
		return count == 2
	}, 5*time.Second, 20*time.Millisecond)

	svc.Close()
	assert.True(t, reader.closed.Load())
}
