package fingerprint

import (
	"context"
	"database/sql"
	"encoding/json"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
	"github.com/orderflow/core/pkg/orders"
)

// Store is the at-most-once dedup contract.
type Store interface {
	Lookup(ctx context.Context, fp orders.Fingerprint) (draftID string, found bool, err error)
	// Register is linearizable: the first caller to register a given
	// fingerprint wins; subsequent callers read back the winner's draft
	// id instead of overwriting it (the "first to register wins").
	Register(ctx context.Context, fp orders.Fingerprint, draftID string, metadata map[string]string) (winningDraftID string, wasFirst bool, err error)
}

// PostgresStore implements Store with a single atomic
// INSERT ... ON CONFLICT DO NOTHING RETURNING statement, giving
// first-writer-wins semantics without explicit advisory locks.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Lookup(ctx context.Context, fp orders.Fingerprint) (string, bool, error) {
	var draftID string
	err := s.db.QueryRowContext(ctx, `SELECT draft_id FROM fingerprints WHERE fingerprint = $1`, string(fp)).Scan(&draftID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, orderrs.WithCode(orderrs.FailedToWithDetails("lookup fingerprint", "fingerprint", string(fp), err), orderrs.CodeStorageUnavailable)
	}
	return draftID, true, nil
}

func (s *PostgresStore) Register(ctx context.Context, fp orders.Fingerprint, draftID string, metadata map[string]string) (string, bool, error) {
	var insertedDraftID string
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO fingerprints (fingerprint, draft_id, metadata, registered_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING draft_id`, string(fp), draftID, metadataJSON(metadata))

	err := row.Scan(&insertedDraftID)
	switch err {
	case nil:
		return insertedDraftID, true, nil
	case sql.ErrNoRows:
		// A concurrent register already won; read back its value.
		existing, found, lookupErr := s.Lookup(ctx, fp)
		if lookupErr != nil {
			return "", false, lookupErr
		}
		if !found {
			return "", false, orderrs.WithCode(orderrs.FailedToWithDetails("register fingerprint", "fingerprint", string(fp), err), orderrs.CodeInvariantViolated)
		}
		return existing, false, nil
	default:
		return "", false, orderrs.WithCode(orderrs.FailedToWithDetails("register fingerprint", "fingerprint", string(fp), err), orderrs.CodeStorageUnavailable)
	}
}

func metadataJSON(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
