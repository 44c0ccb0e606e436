// Package sanitization redacts secret-shaped substrings before content
// reaches a notification or an evidence-pack prompt, satisfying the
// committee's "no values resembling secrets" invariant with one shared
// implementation.
package sanitization

import (
	"regexp"
	"strings"
)

const regexPlaceholder = "***REDACTED***"
const fallbackPlaceholder = "[REDACTED]"

// secretPatterns match "key: value"-shaped secrets across common
// delimiters (colon, equals) and quoting styles.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"]?[^\s,'"}\]]+['"]?`),
	regexp.MustCompile(`(?i)(api[_-]?key)\s*[:=]\s*['"]?[^\s,'"}\]]+['"]?`),
	regexp.MustCompile(`(?i)(token|secret)\s*[:=]\s*['"]?[^\s,'"}\]]+['"]?`),
	regexp.MustCompile(`(?i)(bearer)\s+[A-Za-z0-9\-_.]+`),
}

// fallbackKeys drives SafeFallback's simple, non-regex string matching,
// used when the primary regex pass cannot be trusted to terminate.
var fallbackKeys = []string{"password", "passwd", "pwd", "api_key", "apikey", "token", "secret"}

// Sanitizer redacts secret-shaped substrings from free text.
type Sanitizer struct{}

// NewSanitizer returns a ready-to-use Sanitizer. It holds no state.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Redact applies the regex-based redaction pass.
func (s *Sanitizer) Redact(input string) string {
	out := input
	for _, p := range secretPatterns {
		out = p.ReplaceAllString(out, regexPlaceholder)
	}
	return out
}

// SanitizeWithFallback redacts input, recovering to SafeFallback if the
// regex pass panics, so a pathological input never blocks a notification
// or an evidence-pack prompt from going out.
func (s *Sanitizer) SanitizeWithFallback(input string) (result string, err error) {
	if input == "" {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			result = s.SafeFallback(input)
			err = errSanitizationPanic(r)
		}
	}()
	return s.Redact(input), nil
}

// SafeFallback redacts using plain substring matching instead of regexes,
// case-insensitively, tolerating whitespace/quoting variations around the
// delimiter. It never panics.
func (s *Sanitizer) SafeFallback(input string) string {
	lower := strings.ToLower(input)
	var b strings.Builder
	i := 0
	for i < len(input) {
		matched := false
		for _, key := range fallbackKeys {
			if strings.HasPrefix(lower[i:], key) {
				rest := i + len(key)
				rest = skipDelimiter(input, rest)
				if rest > i+len(key) {
					valueEnd := scanValue(input, rest)
					b.WriteString(input[i:rest])
					b.WriteString(fallbackPlaceholder)
					i = valueEnd
					matched = true
					break
				}
			}
		}
		if !matched {
			b.WriteByte(input[i])
			i++
		}
	}
	return b.String()
}

// skipDelimiter advances past a ":" or "=" and any surrounding
// whitespace/opening quote, returning the index where the value starts.
// Returns pos unchanged if no delimiter is found there.
func skipDelimiter(s string, pos int) int {
	i := pos
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i >= len(s) || (s[i] != ':' && s[i] != '=') {
		return pos
	}
	i++
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i < len(s) && (s[i] == '\'' || s[i] == '"') {
		i++
	}
	return i
}

// scanValue returns the index just past the secret value starting at pos.
func scanValue(s string, pos int) int {
	i := pos
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', ',', '}', ']', '\'', '"', '\n':
			return i
		}
		i++
	}
	return i
}

type sanitizationPanicError struct {
	recovered any
}

func errSanitizationPanic(r any) error {
	return &sanitizationPanicError{recovered: r}
}

func (e *sanitizationPanicError) Error() string {
	return "sanitization: recovered from panic, used safe fallback"
}
