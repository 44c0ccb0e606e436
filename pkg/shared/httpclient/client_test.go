package httpclient

import (
	"testing"
	"time"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.DisableSSLVerification {
		t.Error("DisableSSLVerification should default to false")
	}
}

func TestNewClient(t *testing.T) {
	cfg := ClientConfig{Timeout: 15 * time.Second, MaxIdleConns: 5}
	client := NewClient(cfg)
	if client == nil {
		t.Fatal("expected client")
	}
	if client.Timeout != cfg.Timeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, cfg.Timeout)
	}
	if client.Transport == nil {
		t.Error("expected transport to be configured")
	}
}

func TestCatalogClientConfig(t *testing.T) {
	cfg := CatalogClientConfig(20 * time.Second)
	if cfg.MaxRetries != 5 {
		t.Errorf("CatalogClientConfig MaxRetries = %d, want 5 (aggressive policy)", cfg.MaxRetries)
	}
	if cfg.ResponseHeaderTimeout != 10*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v, want half of timeout", cfg.ResponseHeaderTimeout)
	}
}

func TestSlackClientConfig(t *testing.T) {
	cfg := SlackClientConfig()
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Slack timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("Slack MaxRetries = %d, want 2", cfg.MaxRetries)
	}
}

func TestLLMClientConfig(t *testing.T) {
	timeout := 60 * time.Second
	cfg := LLMClientConfig(timeout)
	if cfg.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, timeout)
	}
	want := timeout / 3
	if cfg.ResponseHeaderTimeout != want {
		t.Errorf("ResponseHeaderTimeout = %v, want %v", cfg.ResponseHeaderTimeout, want)
	}
}

func TestNewClientWithTimeout(t *testing.T) {
	client := NewClientWithTimeout(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
}
