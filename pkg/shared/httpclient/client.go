// Package httpclient builds pre-configured *http.Client instances for the
// collaborators this system calls over HTTP: the external catalog, model
// providers, and Slack. Centralizing the transport tuning means a change
// to idle-connection or TLS behavior doesn't need touching every caller.
package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// ClientConfig tunes the transport and overall timeout of a client.
type ClientConfig struct {
	Timeout                 time.Duration
	MaxRetries               int
	DisableSSLVerification   bool
	MaxIdleConns             int
	IdleConnTimeout          time.Duration
	TLSHandshakeTimeout      time.Duration
	ResponseHeaderTimeout    time.Duration
}

// DefaultClientConfig is a conservative general-purpose baseline.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               30 * time.Second,
		MaxRetries:            3,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
}

// CatalogClientConfig tunes timeouts for the external order-management
// catalog, whose aggressive retry policy needs headroom for
// token refresh plus the request itself.
func CatalogClientConfig(timeout time.Duration) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = timeout
	cfg.MaxRetries = 5
	cfg.ResponseHeaderTimeout = timeout / 2
	return cfg
}

// SlackClientConfig is tuned for a fast, low-retry chat notification call.
func SlackClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:               10 * time.Second,
		MaxRetries:            2,
		MaxIdleConns:          5,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
}

// LLMClientConfig is tuned for a slow model-provider call: a long overall
// timeout but a response-header timeout that is a fraction of it, so a
// provider that never starts streaming fails fast relative to one that
// is merely slow to finish.
func LLMClientConfig(timeout time.Duration) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Timeout = timeout
	cfg.ResponseHeaderTimeout = timeout / 3
	return cfg
}

// NewClient builds an *http.Client from a ClientConfig.
func NewClient(cfg ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}
	if cfg.DisableSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// NewClientWithTimeout is a convenience constructor for callers that only
// need to override the overall timeout.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	cfg := DefaultClientConfig()
	cfg.Timeout = timeout
	return NewClient(cfg)
}

// NewDefaultClient builds a client from DefaultClientConfig.
func NewDefaultClient() *http.Client {
	return NewClient(DefaultClientConfig())
}
