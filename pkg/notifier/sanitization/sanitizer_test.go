package sanitization

import "testing"

func TestRedact_Password(t *testing.T) {
	s := NewSanitizer()
	out := s.Redact("password: secret123")
	if out == "password: secret123" {
		t.Fatal("expected redaction")
	}
	if contains(out, "secret123") {
		t.Errorf("secret leaked into output: %q", out)
	}
}

func TestSanitizeWithFallback_EmptyInput(t *testing.T) {
	s := NewSanitizer()
	out, err := s.SanitizeWithFallback("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestSanitizeWithFallback_NoSecrets(t *testing.T) {
	s := NewSanitizer()
	in := "This is a normal log message with no credentials"
	out, err := s.SanitizeWithFallback(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Errorf("expected unchanged output, got %q", out)
	}
}

func TestSafeFallback_RedactsMultipleSecretTypes(t *testing.T) {
	s := NewSanitizer()
	in := "password: secret1 token: abc789 api_key: xyz123"
	out := s.SafeFallback(in)
	for _, leaked := range []string{"secret1", "abc789", "xyz123"} {
		if contains(out, leaked) {
			t.Errorf("secret %q leaked into output: %q", leaked, out)
		}
	}
}

func TestSafeFallback_CaseInsensitive(t *testing.T) {
	s := NewSanitizer()
	for _, in := range []string{"PASSWORD: secret123", "Password: secret123", "TOKEN: abc789"} {
		out := s.SafeFallback(in)
		if !contains(out, "[REDACTED]") {
			t.Errorf("expected redaction for %q, got %q", in, out)
		}
	}
}

func TestSafeFallback_PreservesNonSecretContent(t *testing.T) {
	s := NewSanitizer()
	in := "Deployment failed for app:v1.2.3 due to password: secret123 error"
	out := s.SafeFallback(in)
	if !contains(out, "Deployment failed") || !contains(out, "app:v1.2.3") {
		t.Errorf("non-secret content was not preserved: %q", out)
	}
	if contains(out, "secret123") {
		t.Errorf("secret leaked: %q", out)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
