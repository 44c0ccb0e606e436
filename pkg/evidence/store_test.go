package evidence

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FilesystemStore {
	t.Helper()
	s, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	return s
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sum, err := s.Put(ctx, OriginalPath("C1"), []byte("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(sum) != 64 {
		t.Errorf("expected 64-char hex sha256, got %d chars", len(sum))
	}

	got, err := s.Get(ctx, OriginalPath("C1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Get() = %q, want %q", got, "hello")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "missing/path.json"); err == nil {
		t.Error("expected error reading missing path")
	}
}

func TestPutAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := DailyLogPath("C1", time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))

	if err := s.PutAppend(ctx, path, []byte(`{"seq":1}`)); err != nil {
		t.Fatalf("PutAppend: %v", err)
	}
	if err := s.PutAppend(ctx, path, []byte(`{"seq":2}`)); err != nil {
		t.Fatalf("PutAppend: %v", err)
	}

	data, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := "{\"seq\":1}\n{\"seq\":2}\n"
	if string(data) != want {
		t.Errorf("appended log = %q, want %q", data, want)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "../escape.json", []byte("x")); err == nil {
		t.Error("expected error for path escaping store root")
	}
}

func TestPresignRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	path := OriginalPath("C1")
	if _, err := s.Put(ctx, path, []byte("data")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	url, err := s.PresignRead(ctx, path, time.Hour, []string{"operator"})
	if err != nil {
		t.Fatalf("PresignRead: %v", err)
	}
	if url == "" {
		t.Error("expected non-empty presigned url")
	}
}

func TestDeterministicPaths(t *testing.T) {
	if CanonicalPath("C1", 2) != "C1/canonical/v2.json" {
		t.Errorf("CanonicalPath = %s", CanonicalPath("C1", 2))
	}
	if CommitteeResponsePath("C1", 1, "anthropic-claude") != "C1/committee/v1/anthropic-claude/response.json" {
		t.Errorf("CommitteeResponsePath = %s", CommitteeResponsePath("C1", 1, "anthropic-claude"))
	}
	if AuditManifestPath("C1") != "C1/audit/manifest.json" {
		t.Errorf("AuditManifestPath = %s", AuditManifestPath("C1"))
	}
}
