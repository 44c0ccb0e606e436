package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/orderflow/core/pkg/evidence"
	"github.com/orderflow/core/pkg/orders"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	ev, err := evidence.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	return NewPostgresStore(db, ev), mock, func() { db.Close() }
}

func TestAppend_AssignsNextSequence(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sequence\), 0\) \+ 1 FROM case_events WHERE case_id = \$1 FOR UPDATE`).
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int64(3)))
	mock.ExpectExec(`INSERT INTO case_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	event := orders.AuditEvent{
		CaseID: "C1",
		Type:   orders.EventFileStored,
		Actor:  orders.Actor{Kind: "system", ID: "worker"},
		Data:   map[string]any{"path": "C1/original.xlsx"},
	}

	got, err := store.Append(context.Background(), event)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got.Sequence != 3 {
		t.Errorf("Sequence = %d, want 3", got.Sequence)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAppend_LargePayloadSplitsToEvidence(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE`).WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO case_events`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	big := make([]byte, LargePayloadThresholdBytes+100)
	event := orders.AuditEvent{
		CaseID: "C1",
		Type:   orders.EventCommitteeInvoked,
		Data:   map[string]any{"blob": string(big)},
	}

	got, err := store.Append(context.Background(), event)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got.BlobPointer == "" {
		t.Error("expected BlobPointer to be set for an oversized payload")
	}
	if got.BlobSHA256 == "" {
		t.Error("expected BlobSHA256 to be set for an oversized payload")
	}
}

func TestReadByCase_DetectsGap(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	rows := sqlmock.NewRows([]string{"sequence", "ts", "type", "actor_kind", "actor_id", "correlation_id", "data", "blob_pointer", "blob_sha256"}).
		AddRow(int64(1), time.Now(), "file.stored", "system", "worker", "corr-1", []byte(`{}`), nil, nil).
		AddRow(int64(3), time.Now(), "parse.completed", "system", "worker", "corr-1", []byte(`{}`), nil, nil)

	mock.ExpectQuery(`SELECT sequence, ts, type, actor_kind, actor_id, correlation_id, data, blob_pointer, blob_sha256`).
		WithArgs("C1", int64(1)).
		WillReturnRows(rows)

	_, err := store.ReadByCase(context.Background(), "C1", 1)
	if err == nil {
		t.Fatal("expected gap detection error")
	}
}

func TestReadByCase_DenseSequence(t *testing.T) {
	store, mock, closeFn := newMockStore(t)
	defer closeFn()

	rows := sqlmock.NewRows([]string{"sequence", "ts", "type", "actor_kind", "actor_id", "correlation_id", "data", "blob_pointer", "blob_sha256"}).
		AddRow(int64(1), time.Now(), "file.stored", "system", "worker", "corr-1", []byte(`{"a":1}`), nil, nil).
		AddRow(int64(2), time.Now(), "parse.completed", "system", "worker", "corr-1", []byte(`{}`), nil, nil)

	mock.ExpectQuery(`SELECT sequence, ts, type, actor_kind, actor_id, correlation_id, data, blob_pointer, blob_sha256`).
		WithArgs("C1", int64(1)).
		WillReturnRows(rows)

	events, err := store.ReadByCase(context.Background(), "C1", 1)
	if err != nil {
		t.Fatalf("ReadByCase: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Data["a"].(float64) != 1 {
		t.Errorf("expected decoded data, got %+v", events[0].Data)
	}
}
