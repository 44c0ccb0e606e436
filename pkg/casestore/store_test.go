package casestore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/orderflow/core/pkg/orders"
)

func newMockSQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewSQLStore(sqlxDB), mock, func() { db.Close() }
}

func TestCreate(t *testing.T) {
	store, mock, closeFn := newMockSQLStore(t)
	defer closeFn()

	c := &orders.Case{
		CaseID:    "C1",
		TenantID:  "tenant-1",
		UserID:    "user-1",
		Status:    orders.StatusStoringFile,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO cases`).WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	store, mock, closeFn := newMockSQLStore(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT \* FROM cases WHERE case_id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing case")
	}
}

func TestUpdate_NoRowsAffected(t *testing.T) {
	store, mock, closeFn := newMockSQLStore(t)
	defer closeFn()

	c := &orders.Case{CaseID: "ghost", Status: orders.StatusCompleted, UpdatedAt: time.Now()}

	mock.ExpectExec(`UPDATE cases SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Update(context.Background(), c); err == nil {
		t.Error("expected error when no rows were updated")
	}
}
