// Package casestore implements the case store: the keyed record of
// each case's current state.
package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
	"github.com/orderflow/core/pkg/orders"
)

// Store is the case-record repository contract.
type Store interface {
	Create(ctx context.Context, c *orders.Case) error
	Get(ctx context.Context, caseID string) (*orders.Case, error)
	Update(ctx context.Context, c *orders.Case) error
	ListByStatus(ctx context.Context, status orders.Status) ([]*orders.Case, error)
}

// SQLStore is a sqlx-backed Store.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type caseRow struct {
	CaseID             string         `db:"case_id"`
	TenantID           string         `db:"tenant_id"`
	UserID             string         `db:"user_id"`
	Status             string         `db:"status"`
	CorrelationID      string         `db:"correlation_id"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	CanonicalOrderPath string         `db:"canonical_order_path"`
	VerdictSummary     sql.NullString `db:"verdict_summary"`
	ResolvedCustomer   sql.NullString `db:"resolved_customer"`
	ResolvedItems      sql.NullString `db:"resolved_items"`
	ChatThreadHandle   string         `db:"chat_thread_handle"`
	ExternalDraftID    sql.NullString `db:"external_draft_id"`
	PreviousExecution  sql.NullString `db:"previous_execution"`
}

func (s *SQLStore) Create(ctx context.Context, c *orders.Case) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO cases (case_id, tenant_id, user_id, status, correlation_id, created_at, updated_at,
			canonical_order_path, verdict_summary, resolved_customer, resolved_items, chat_thread_handle,
			external_draft_id, previous_execution)
		VALUES (:case_id, :tenant_id, :user_id, :status, :correlation_id, :created_at, :updated_at,
			:canonical_order_path, :verdict_summary, :resolved_customer, :resolved_items, :chat_thread_handle,
			:external_draft_id, :previous_execution)`, row)
	if err != nil {
		return orderrs.WithCode(orderrs.FailedToWithDetails("create case", "casestore", c.CaseID, err), orderrs.CodeStorageUnavailable)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, caseID string) (*orders.Case, error) {
	var row caseRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM cases WHERE case_id = $1`, caseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, orderrs.WithCode(orderrs.FailedToWithDetails("get case", "casestore", caseID, err), orderrs.CodeInvalidRequest)
		}
		return nil, orderrs.WithCode(orderrs.FailedToWithDetails("get case", "casestore", caseID, err), orderrs.CodeStorageUnavailable)
	}
	return fromRow(row)
}

func (s *SQLStore) Update(ctx context.Context, c *orders.Case) error {
	row, err := toRow(c)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE cases SET status=:status, updated_at=:updated_at, canonical_order_path=:canonical_order_path,
			verdict_summary=:verdict_summary, resolved_customer=:resolved_customer, resolved_items=:resolved_items,
			chat_thread_handle=:chat_thread_handle, external_draft_id=:external_draft_id,
			previous_execution=:previous_execution
		WHERE case_id = :case_id`, row)
	if err != nil {
		return orderrs.WithCode(orderrs.FailedToWithDetails("update case", "casestore", c.CaseID, err), orderrs.CodeStorageUnavailable)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return orderrs.WithCode(orderrs.FailedToWithDetails("update case", "casestore", c.CaseID, sql.ErrNoRows), orderrs.CodeInvalidRequest)
	}
	return nil
}

func (s *SQLStore) ListByStatus(ctx context.Context, status orders.Status) ([]*orders.Case, error) {
	var rows []caseRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM cases WHERE status = $1 ORDER BY updated_at ASC`, string(status)); err != nil {
		return nil, orderrs.WithCode(orderrs.FailedTo("list cases by status", err), orderrs.CodeStorageUnavailable)
	}
	out := make([]*orders.Case, 0, len(rows))
	for _, r := range rows {
		c, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toRow(c *orders.Case) (caseRow, error) {
	var verdictJSON, customerJSON, itemsJSON string
	var err error
	if c.VerdictSummary != nil {
		if verdictJSON, err = marshalOptional(c.VerdictSummary); err != nil {
			return caseRow{}, err
		}
	}
	if c.ResolvedCustomer != nil {
		if customerJSON, err = marshalOptional(c.ResolvedCustomer); err != nil {
			return caseRow{}, err
		}
	}
	if len(c.ResolvedItems) > 0 {
		if itemsJSON, err = marshalOptional(c.ResolvedItems); err != nil {
			return caseRow{}, err
		}
	}
	return caseRow{
		CaseID:             c.CaseID,
		TenantID:           c.TenantID,
		UserID:             c.UserID,
		Status:             string(c.Status),
		CorrelationID:      c.CorrelationID,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		CanonicalOrderPath: c.CanonicalOrderPath,
		VerdictSummary:     nullableString(verdictJSON),
		ResolvedCustomer:   nullableString(customerJSON),
		ResolvedItems:      nullableString(itemsJSON),
		ChatThreadHandle:   c.ChatThreadHandle,
		ExternalDraftID:    nullableString(c.ExternalDraftID),
		PreviousExecution:  nullableString(c.PreviousExecution),
	}, nil
}

func fromRow(r caseRow) (*orders.Case, error) {
	c := &orders.Case{
		CaseID:             r.CaseID,
		TenantID:           r.TenantID,
		UserID:             r.UserID,
		Status:             orders.Status(r.Status),
		CorrelationID:      r.CorrelationID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		CanonicalOrderPath: r.CanonicalOrderPath,
		ChatThreadHandle:   r.ChatThreadHandle,
		ExternalDraftID:    r.ExternalDraftID.String,
		PreviousExecution:  r.PreviousExecution.String,
	}
	if r.VerdictSummary.Valid {
		var v orders.CommitteeVerdict
		if err := json.Unmarshal([]byte(r.VerdictSummary.String), &v); err != nil {
			return nil, orderrs.WithCode(orderrs.FailedTo("unmarshal verdict summary", err), orderrs.CodeStorageUnavailable)
		}
		c.VerdictSummary = &v
	}
	if r.ResolvedCustomer.Valid {
		var e orders.ResolvedEntity
		if err := json.Unmarshal([]byte(r.ResolvedCustomer.String), &e); err != nil {
			return nil, orderrs.WithCode(orderrs.FailedTo("unmarshal resolved customer", err), orderrs.CodeStorageUnavailable)
		}
		c.ResolvedCustomer = &e
	}
	if r.ResolvedItems.Valid {
		items := map[int]*orders.ResolvedEntity{}
		if err := json.Unmarshal([]byte(r.ResolvedItems.String), &items); err != nil {
			return nil, orderrs.WithCode(orderrs.FailedTo("unmarshal resolved items", err), orderrs.CodeStorageUnavailable)
		}
		c.ResolvedItems = items
	}
	return c, nil
}

func marshalOptional(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", orderrs.WithCode(orderrs.FailedTo("marshal case field", err), orderrs.CodeInvalidRequest)
	}
	return string(b), nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
