package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/orderflow/core/pkg/shared/httpclient"
	orderrs "github.com/orderflow/core/pkg/shared/errors"
	"github.com/orderflow/core/pkg/shared/retry"
)

// Client is the narrow interface the workflow engine and matching engine
// depend on.
type Client interface {
	SearchCustomer(ctx context.Context, name, tenant string) ([]Candidate, error)
	GetCustomer(ctx context.Context, id string) (Customer, error)
	SearchItem(ctx context.Context, skuGtinOrName, tenant string) ([]Candidate, error)
	GetItem(ctx context.Context, id string) (Candidate, error)
	CreateDraft(ctx context.Context, payload DraftPayload, idempotencyToken string) (DraftResult, error)
	FindDraftByIdempotencyToken(ctx context.Context, token string) (*DraftResult, error)
}

// Config configures the HTTP client.
type Config struct {
	BaseURL              string
	GTINFieldID          string
	IdempotencyFieldID   string
	TokenRefreshTimeout  time.Duration
	RequestTimeout       time.Duration
}

// HTTPClient is the production Client implementation: OAuth
// refresh-token auth with a single in-flight refresh, a circuit breaker
// around outbound calls, and the aggressive retry policy honoring
// Retry-After on 429/5xx.
type HTTPClient struct {
	cfg          Config
	httpClient   *http.Client
	tokenSource  oauth2.TokenSource
	refreshGroup singleflight.Group
	breaker      *gobreaker.CircuitBreaker
}

// NewHTTPClient builds a Client backed by an oauth2.Config refresh-token
// flow. tokenSource should already be wrapped with oauth2.ReuseTokenSource
// by the caller if token caching across processes is desired; here we
// additionally collapse concurrent refreshes with singleflight, so only
// a single refresh is in flight at a time.
func NewHTTPClient(cfg Config, tokenSource oauth2.TokenSource) *HTTPClient {
	breakerSettings := gobreaker.Settings{
		Name:        "catalog-client",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &HTTPClient{
		cfg:         cfg,
		httpClient:  httpclient.NewClient(httpclient.CatalogClientConfig(cfg.RequestTimeout)),
		tokenSource: tokenSource,
		breaker:     gobreaker.NewCircuitBreaker(breakerSettings),
	}
}

// accessToken returns a valid access token, collapsing concurrent
// refreshes into a single in-flight call.
func (c *HTTPClient) accessToken(ctx context.Context) (string, error) {
	v, err, _ := c.refreshGroup.Do("token", func() (any, error) {
		tok, err := c.tokenSource.Token()
		if err != nil {
			return nil, orderrs.WithCode(orderrs.FailedTo("refresh catalog access token", err), orderrs.CodeCatalogAuthFailed)
		}
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// do executes req with the aggressive retry policy, routed
// through the circuit breaker, honoring Retry-After on 429 and applying
// aggressive retry on 5xx. 4xx other than 408/429 is non-retryable.
func (c *HTTPClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		result, breakerErr := c.breaker.Execute(func() (any, error) {
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, orderrs.WithCode(orderrs.FailedTo("call catalog", err), orderrs.CodeCatalogUnavailable)
			}
			return resp, classifyStatus(resp)
		})
		if breakerErr == nil {
			return result.(*http.Response), nil
		}
		lastErr = breakerErr

		oe, ok := breakerErr.(*orderrs.OperationError)
		if !ok || !oe.Retryable() {
			return nil, breakerErr
		}
		if retry.Aggressive.ExhaustedAfter(attempt) {
			return nil, lastErr
		}
		retryAfter := retryAfterFrom(result)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry.Aggressive.BackoffForAttempt(attempt, retryAfter)):
		}
	}
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return orderrs.WithCode(orderrs.FailedTo("call catalog", fmt.Errorf("rate limited")), orderrs.CodeCatalogRateLimited)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return orderrs.WithCode(orderrs.FailedTo("call catalog", fmt.Errorf("status %d", resp.StatusCode)), orderrs.CodeCatalogUnavailable)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return orderrs.WithCode(orderrs.FailedTo("call catalog", fmt.Errorf("status %d", resp.StatusCode)), orderrs.CodeCatalogAuthFailed)
	default:
		return orderrs.WithCode(orderrs.FailedTo("call catalog", fmt.Errorf("status %d", resp.StatusCode)), orderrs.CodeInvalidRequest)
	}
}

func retryAfterFrom(result any) time.Duration {
	resp, ok := result.(*http.Response)
	if !ok || resp == nil {
		return 0
	}
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func (c *HTTPClient) SearchCustomer(ctx context.Context, name, tenant string) ([]Candidate, error) {
	var out []Candidate
	err := c.getJSON(ctx, fmt.Sprintf("/customers/search?name=%s&tenant=%s", urlEscape(name), urlEscape(tenant)), &out)
	return out, err
}

func (c *HTTPClient) GetCustomer(ctx context.Context, id string) (Customer, error) {
	var out Customer
	err := c.getJSON(ctx, fmt.Sprintf("/customers/%s", urlEscape(id)), &out)
	return out, err
}

func (c *HTTPClient) SearchItem(ctx context.Context, skuGtinOrName, tenant string) ([]Candidate, error) {
	var out []Candidate
	err := c.getJSON(ctx, fmt.Sprintf("/items/search?q=%s&tenant=%s", urlEscape(skuGtinOrName), urlEscape(tenant)), &out)
	return out, err
}

// GetItem fetches a single catalog item by id, used after a user
// manually selects an item so its current catalog price can be priced
// onto the draft (the "crucial semantic rule").
func (c *HTTPClient) GetItem(ctx context.Context, id string) (Candidate, error) {
	var out Candidate
	err := c.getJSON(ctx, fmt.Sprintf("/items/%s", urlEscape(id)), &out)
	return out, err
}

// CreateDraft places the idempotency token into the catalog's dedicated
// reference field (cfg.IdempotencyFieldID), so a lost response can later
// be recovered via FindDraftByIdempotencyToken.
func (c *HTTPClient) CreateDraft(ctx context.Context, payload DraftPayload, idempotencyToken string) (DraftResult, error) {
	body := map[string]any{
		"customer_id": payload.CustomerID,
		"lines":       payload.Lines,
		"custom_fields": map[string]string{
			c.cfg.IdempotencyFieldID: idempotencyToken,
		},
	}
	var out DraftResult
	err := c.postJSON(ctx, "/drafts", body, &out)
	return out, err
}

func (c *HTTPClient) FindDraftByIdempotencyToken(ctx context.Context, token string) (*DraftResult, error) {
	var out []DraftResult
	err := c.getJSON(ctx, fmt.Sprintf("/drafts?custom_field=%s:%s", urlEscape(c.cfg.IdempotencyFieldID), urlEscape(token)), &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return orderrs.WithCode(orderrs.FailedTo("build catalog request", err), orderrs.CodeInvalidRequest)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return orderrs.WithCode(orderrs.FailedTo("marshal catalog request", err), orderrs.CodeInvalidRequest)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return orderrs.WithCode(orderrs.FailedTo("build catalog request", err), orderrs.CodeInvalidRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func urlEscape(s string) string {
	return (&url.URL{Path: s}).String()
}
