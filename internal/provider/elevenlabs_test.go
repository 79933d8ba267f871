package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"callscreen-platform/internal/config"

	"github.com/cenkalti/backoff/v4"
)

func newTestClient(srv *httptest.Server) *Client {
	c := New(config.ProviderConfig{BaseURL: srv.URL + "/", APIKey: "key", Timeout: 2 * time.Second})
	c.newBackOff = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3) }
	return c
}

func TestGetConversationDetails_SendsKeyAndReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversations/conv_1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		_, _ = w.Write([]byte(`{"conversation_id":"conv_1"}`))
	}))
	defer srv.Close()

	body, err := newTestClient(srv).GetConversationDetails(context.Background(), "conv_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != `{"conversation_id":"conv_1"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestGetConversationDetails_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).GetConversationDetails(context.Background(), "c"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestGetConversationDetails_ClientErrorsArePermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/v1/convai/conversations/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := newTestClient(srv)

	if _, err := c.GetConversationDetails(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.GetConversationDetails(context.Background(), "c"); err == nil {
		t.Fatalf("expected error on 401")
	}
	if hits.Load() != 2 {
		t.Fatalf("expected no retries on 4xx, got %d hits", hits.Load())
	}
}

func TestGetConversationDetails_GivesUpAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).GetConversationDetails(context.Background(), "c"); err == nil {
		t.Fatalf("expected error after retries exhausted")
	}
}

func TestEnabled(t *testing.T) {
	if New(config.ProviderConfig{}).Enabled() {
		t.Fatalf("expected disabled without api key")
	}
	var c *Client
	if c.Enabled() {
		t.Fatalf("expected nil client disabled")
	}
}
