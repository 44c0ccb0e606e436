package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func staticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewHTTPClient(Config{
		BaseURL:            srv.URL,
		IdempotencyFieldID: "custom_idempotency_token",
		RequestTimeout:     5 * time.Second,
	}, staticTokenSource("test-token"))
	return c, srv
}

func TestSearchCustomer_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode([]Candidate{{ID: "c1", Name: "Acme Corp"}})
	})
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	out, err := c.SearchCustomer(context.Background(), "Acme", "tenant-1")
	if err != nil {
		t.Fatalf("SearchCustomer: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c1" {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestCreateDraft_SetsIdempotencyField(t *testing.T) {
	var seenBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&seenBody)
		_ = json.NewEncoder(w).Encode(DraftResult{DraftID: "d1", DraftNumber: "SO-1"})
	})
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	_, err := c.CreateDraft(context.Background(), DraftPayload{CustomerID: "c1"}, "fp-123")
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	fields, ok := seenBody["custom_fields"].(map[string]any)
	if !ok {
		t.Fatalf("custom_fields missing from request body: %+v", seenBody)
	}
	if fields["custom_idempotency_token"] != "fp-123" {
		t.Errorf("idempotency token not placed in custom field: %+v", fields)
	}
}

func TestFindDraftByIdempotencyToken_NoneFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]DraftResult{})
	})
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	result, err := c.FindDraftByIdempotencyToken(context.Background(), "fp-missing")
	if err != nil {
		t.Fatalf("FindDraftByIdempotencyToken: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestDo_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Customer{ID: "c1", Name: "Acme"})
	})
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	out, err := c.GetCustomer(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if out.ID != "c1" {
		t.Errorf("unexpected customer: %+v", out)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Errorf("expected a retry after the first 503, got %d calls", calls)
	}
}

func TestDo_NonRetryableClientError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c, srv := newTestClient(t, handler)
	defer srv.Close()

	_, err := c.GetCustomer(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected an error for a 400 response")
	}
}
