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
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileNotifier writes each notification as a file under dir, one per
// delivery, for local/dev use and for tests. Directory and write
// failures are wrapped as RetryableError rather than returned bare.
type FileNotifier struct {
	dir   string
	nowFn func() time.Time
}

func NewFileNotifier(dir string) *FileNotifier {
	return &FileNotifier{dir: dir, nowFn: time.Now}
}

func (n *FileNotifier) Deliver(ctx context.Context, msg Notification) error {
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return &RetryableError{Cause: fmt.Errorf("failed to create output directory: %w", err)}
	}

	filename := fmt.Sprintf("%s-%d.txt", msg.CaseID, n.nowFn().UnixNano())
	path := filepath.Join(n.dir, filename)
	content := fmt.Sprintf("to: %s\nsubject: %s\n\n%s\n", msg.ChatThreadHandle, msg.Subject, msg.Body)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return &RetryableError{Cause: fmt.Errorf("failed to write notification file: %w", err)}
	}
	return nil
}
