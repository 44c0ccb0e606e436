/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileNotifier_WritesOneFilePerDelivery(t *testing.T) {
	dir := t.TempDir()
	n := NewFileNotifier(dir)

	err := n.Deliver(context.Background(), Notification{
		CaseID:           "C1",
		ChatThreadHandle: "#orders",
		Subject:          "Needs approval",
		Body:             "Please review case C1",
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected exactly one notification file, got %d", len(files))
	}
}

func TestFileNotifier_WrapsDirectoryCreationErrorAsRetryable(t *testing.T) {
	tempDir := t.TempDir()
	readOnlyDir := filepath.Join(tempDir, "readonly")
	if err := os.Mkdir(readOnlyDir, 0o555); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	invalidDir := filepath.Join(readOnlyDir, "cannot-create-this")

	n := NewFileNotifier(invalidDir)
	err := n.Deliver(context.Background(), Notification{CaseID: "C1", Subject: "x", Body: "y"})
	if err == nil {
		t.Fatal("expected an error writing into a read-only parent")
	}
	var retryable *RetryableError
	if !asRetryable(err, &retryable) {
		t.Errorf("expected *RetryableError, got %T: %v", err, err)
	}
}

func asRetryable(err error, target **RetryableError) bool {
	if re, ok := err.(*RetryableError); ok {
		*target = re
		return true
	}
	return false
}

func TestSanitizing_RedactsBeforeDelegating(t *testing.T) {
	var captured Notification
	fake := notifierFunc(func(ctx context.Context, n Notification) error {
		captured = n
		return nil
	})
	s := NewSanitizing(fake)

	err := s.Deliver(context.Background(), Notification{
		CaseID:  "C1",
		Subject: "Needs approval",
		Body:    "password: secret123 needs review",
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if contains(captured.Body, "secret123") {
		t.Errorf("secret leaked to delegate notifier: %q", captured.Body)
	}
}

type notifierFunc func(ctx context.Context, n Notification) error

func (f notifierFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
