// Package evidence implements the content-addressed evidence store (L1,
// ): the append-only blob container for original files, parsed
// artifacts, committee prompts/responses, correction patches, and sealed
// audit bundles.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// Store is the narrow contract the workflow and its collaborators use to
// persist and retrieve evidence-store artifacts. A filesystem-backed
// implementation is provided here; a future S3-compatible backend
// implements the same interface.
type Store interface {
	// Put writes bytes at path and returns their SHA-256 hex digest.
	Put(ctx context.Context, path string, data []byte) (sha256hex string, err error)
	// PutAppend appends one JSON-line record to path, creating it if
	// necessary (used for logs/<yyyy>/<mm>/<dd>/<case_id>.jsonl).
	PutAppend(ctx context.Context, path string, record []byte) error
	// Get reads the bytes stored at path.
	Get(ctx context.Context, path string) ([]byte, error)
	// PresignRead returns a time-limited, role-scoped read token for path.
	PresignRead(ctx context.Context, path string, ttl time.Duration, allowedRoles []string) (string, error)
}

// FilesystemStore is a local-disk Store. It never overwrites an existing
// path with different content: the evidence store is append-only, so a
// second Put at the same path is only valid if the content is identical
// (the caller is expected to version paths, e.g. canonical/v2.json).
type FilesystemStore struct {
	root string
}

// NewFilesystemStore roots the store at dir, creating it if necessary.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, orderrs.FailedToWithDetails("create evidence store root", "evidence", dir, err)
	}
	return &FilesystemStore{root: dir}, nil
}

func (s *FilesystemStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, path)
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", orderrs.WithCode(orderrs.FailedTo("resolve evidence path", fmt.Errorf("path escapes store root: %s", path)), orderrs.CodeInvalidRequest)
	}
	return full, nil
}

func (s *FilesystemStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", orderrs.WithCode(orderrs.FailedToWithDetails("create evidence directory", "evidence", path, err), orderrs.CodeStorageUnavailable)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", orderrs.WithCode(orderrs.FailedToWithDetails("write evidence blob", "evidence", path, err), orderrs.CodeStorageUnavailable)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *FilesystemStore) PutAppend(ctx context.Context, path string, record []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return orderrs.WithCode(orderrs.FailedToWithDetails("create evidence directory", "evidence", path, err), orderrs.CodeStorageUnavailable)
	}
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return orderrs.WithCode(orderrs.FailedToWithDetails("open evidence log", "evidence", path, err), orderrs.CodeStorageUnavailable)
	}
	defer f.Close()
	if _, err := f.Write(append(record, '\n')); err != nil {
		return orderrs.WithCode(orderrs.FailedToWithDetails("append evidence log", "evidence", path, err), orderrs.CodeStorageUnavailable)
	}
	return nil
}

func (s *FilesystemStore) Get(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, orderrs.WithCode(orderrs.FailedToWithDetails("read evidence blob", "evidence", path, err), orderrs.CodeInvalidRequest)
		}
		return nil, orderrs.WithCode(orderrs.FailedToWithDetails("read evidence blob", "evidence", path, err), orderrs.CodeStorageUnavailable)
	}
	return data, nil
}

// PresignRead returns a token good for ttl, embedding the allowed roles
// and an expiry. There is no real object store here, so the "url" is a
// deterministic token the control surface can validate; a production
// deployment against an object store would return a real presigned URL.
func (s *FilesystemStore) PresignRead(ctx context.Context, path string, ttl time.Duration, allowedRoles []string) (string, error) {
	if _, err := s.resolve(path); err != nil {
		return "", err
	}
	expiry := nowFunc().Add(ttl).Unix()
	return fmt.Sprintf("evidence://%s?expires=%d&roles=%v", path, expiry, allowedRoles), nil
}

// nowFunc is indirected so tests can freeze time; production uses
// time.Now.
var nowFunc = time.Now

// Paths implements the deterministic, content-addressed layout every
// evidence artifact is stored under.
func OriginalPath(caseID string) string {
	return fmt.Sprintf("%s/original.xlsx", caseID)
}

func CanonicalPath(caseID string, version int) string {
	return fmt.Sprintf("%s/canonical/v%d.json", caseID, version)
}

// CommitteePromptPath and CommitteeResponsePath are versioned by the
// canonical-order version that triggered the committee run, so a
// correction-triggered re-run keeps the prior run's provider artifacts
// instead of overwriting them (the "both sets of provider responses"
// audit requirement).
func CommitteePromptPath(caseID string, version int, providerID string) string {
	return fmt.Sprintf("%s/committee/v%d/%s/prompt.txt", caseID, version, providerID)
}

func CommitteeResponsePath(caseID string, version int, providerID string) string {
	return fmt.Sprintf("%s/committee/v%d/%s/response.json", caseID, version, providerID)
}

func VerdictPath(caseID string, version int) string {
	return fmt.Sprintf("%s/verdict/v%d.json", caseID, version)
}

func CorrectionPath(caseID string, ts time.Time) string {
	return fmt.Sprintf("%s/corrections/%d.json", caseID, ts.UnixNano())
}

func ExternalRequestPath(caseID string) string {
	return fmt.Sprintf("%s/external/request.json", caseID)
}

func ExternalResponsePath(caseID string) string {
	return fmt.Sprintf("%s/external/response.json", caseID)
}

func AuditManifestPath(caseID string) string {
	return fmt.Sprintf("%s/audit/manifest.json", caseID)
}

func DailyLogPath(caseID string, day time.Time) string {
	return fmt.Sprintf("logs/%04d/%02d/%02d/%s.jsonl", day.Year(), day.Month(), day.Day(), caseID)
}
