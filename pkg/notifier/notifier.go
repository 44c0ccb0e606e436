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

// Package notifier delivers the workflow's ready_for_approval/complete/
// failed notifications into a case's chat thread.
package notifier

import (
	"context"

	"github.com/orderflow/core/pkg/notifier/sanitization"
)

// Notification is one outbound message tied to a case.
type Notification struct {
	CaseID          string
	ChatThreadHandle string
	Subject         string
	Body            string
}

// Notifier delivers a Notification. Implementations must return a
// *RetryableError for failures the caller should retry rather than a
// plain error, so delivery can be retried independently of the
// workflow's own activity retry policy.
type Notifier interface {
	Deliver(ctx context.Context, n Notification) error
}

// RetryableError marks a delivery failure the caller should retry
// instead of treating as terminal (e.g. a transient directory or
// network error).
type RetryableError struct {
	Cause error
}

func (e *RetryableError) Error() string {
	return "notifier: retryable delivery failure: " + e.Cause.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// Sanitizing wraps another Notifier, redacting secret-shaped substrings
// from the subject and body before delegating delivery.
type Sanitizing struct {
	Next      Notifier
	sanitizer *sanitization.Sanitizer
}

func NewSanitizing(next Notifier) *Sanitizing {
	return &Sanitizing{Next: next, sanitizer: sanitization.NewSanitizer()}
}

func (s *Sanitizing) Deliver(ctx context.Context, n Notification) error {
	n.Subject, _ = s.sanitizer.SanitizeWithFallback(n.Subject)
	n.Body, _ = s.sanitizer.SanitizeWithFallback(n.Body)
	return s.Next.Deliver(ctx, n)
}
