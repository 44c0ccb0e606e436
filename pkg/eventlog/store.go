// Package eventlog implements the append-only case event log: one
// densely, monotonically sequenced stream per case, with large
// payloads split off to the evidence store.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orderflow/core/pkg/evidence"
	orderrs "github.com/orderflow/core/pkg/shared/errors"
	"github.com/orderflow/core/pkg/orders"
)

// LargePayloadThresholdBytes is the default 64KB split point above
// which an event's payload moves to the evidence store.
const LargePayloadThresholdBytes = 64 * 1024

// Store is the append/read contract for the event log.
type Store interface {
	Append(ctx context.Context, event orders.AuditEvent) (orders.AuditEvent, error)
	ReadByCase(ctx context.Context, caseID string, fromSequence int64) ([]orders.AuditEvent, error)
}

// PostgresStore persists events to a Postgres table via database/sql,
// using a dedicated sequence column assigned inside the same
// transaction as the insert so "durable before committed" holds and the
// per-case sequence is dense by construction (a gap can only occur if a
// transaction partially commits, which PostgreSQL's atomicity rules out).
type PostgresStore struct {
	db        *sql.DB
	evidence  evidence.Store
}

// NewPostgresStore wraps an existing *sql.DB (opened with the lib/pq
// driver) and the evidence store used for large-payload overflow.
func NewPostgresStore(db *sql.DB, ev evidence.Store) *PostgresStore {
	return &PostgresStore{db: db, evidence: ev}
}

func (s *PostgresStore) Append(ctx context.Context, event orders.AuditEvent) (orders.AuditEvent, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return event, orderrs.WithCode(orderrs.FailedTo("marshal event payload", err), orderrs.CodeInvalidRequest)
	}

	if len(payload) > LargePayloadThresholdBytes {
		path := fmt.Sprintf("%s/events/%d.json", event.CaseID, time.Now().UnixNano())
		sum, err := s.evidence.Put(ctx, path, payload)
		if err != nil {
			return event, err
		}
		event.BlobPointer = path
		event.BlobSHA256 = sum
		payload = nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return event, orderrs.WithCode(orderrs.FailedTo("begin event append transaction", err), orderrs.CodeStorageUnavailable)
	}
	defer tx.Rollback() //nolint:errcheck

	var nextSeq int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) + 1 FROM case_events WHERE case_id = $1 FOR UPDATE`, event.CaseID)
	if err := row.Scan(&nextSeq); err != nil {
		return event, orderrs.WithCode(orderrs.FailedTo("compute next sequence", err), orderrs.CodeStorageUnavailable)
	}
	event.Sequence = nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO case_events (case_id, sequence, ts, type, actor_kind, actor_id, correlation_id, data, blob_pointer, blob_sha256)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		event.CaseID, event.Sequence, event.Timestamp, string(event.Type),
		event.Actor.Kind, event.Actor.ID, event.CorrelationID, payload, event.BlobPointer, event.BlobSHA256)
	if err != nil {
		return event, orderrs.WithCode(orderrs.FailedTo("insert event", err), orderrs.CodeStorageUnavailable)
	}

	if err := tx.Commit(); err != nil {
		return event, orderrs.WithCode(orderrs.FailedTo("commit event append", err), orderrs.CodeStorageUnavailable)
	}
	return event, nil
}

func (s *PostgresStore) ReadByCase(ctx context.Context, caseID string, fromSequence int64) ([]orders.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, ts, type, actor_kind, actor_id, correlation_id, data, blob_pointer, blob_sha256
		FROM case_events WHERE case_id = $1 AND sequence >= $2 ORDER BY sequence ASC`, caseID, fromSequence)
	if err != nil {
		return nil, orderrs.WithCode(orderrs.FailedTo("read case events", err), orderrs.CodeStorageUnavailable)
	}
	defer rows.Close()

	var events []orders.AuditEvent
	var lastSeq int64 = fromSequence - 1
	for rows.Next() {
		var (
			e                              orders.AuditEvent
			typ, actorKind, actorID, corr  string
			data                           []byte
			blobPointer, blobSHA256        sql.NullString
		)
		if err := rows.Scan(&e.Sequence, &e.Timestamp, &typ, &actorKind, &actorID, &corr, &data, &blobPointer, &blobSHA256); err != nil {
			return nil, orderrs.WithCode(orderrs.FailedTo("scan event row", err), orderrs.CodeStorageUnavailable)
		}
		if e.Sequence != lastSeq+1 {
			return nil, orderrs.WithCode(orderrs.FailedTo("validate event sequence", fmt.Errorf("gap between %d and %d for case %s", lastSeq, e.Sequence, caseID)), orderrs.CodeEventLogGap)
		}
		lastSeq = e.Sequence
		e.CaseID = caseID
		e.Type = orders.EventType(typ)
		e.Actor = orders.Actor{Kind: actorKind, ID: actorID}
		e.CorrelationID = corr
		e.BlobPointer = blobPointer.String
		e.BlobSHA256 = blobSHA256.String
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, orderrs.WithCode(orderrs.FailedTo("unmarshal event payload", err), orderrs.CodeStorageUnavailable)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
