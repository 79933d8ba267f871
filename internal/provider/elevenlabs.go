package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"callscreen-platform/internal/config"

	"github.com/cenkalti/backoff/v4"
)

// ConversationProvider fetches the full conversation payload for a call.
type ConversationProvider interface {
	GetConversationDetails(ctx context.Context, conversationID string) ([]byte, error)
}

const maxResponseBytes = 10 << 20

var ErrNotFound = errors.New("provider: conversation not found")

// Client calls the ElevenLabs conversational AI API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

func New(cfg config.ProviderConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 250 * time.Millisecond
			bo.MaxElapsedTime = timeout
			return bo
		},
	}
}

// Enabled reports whether an API key is configured. Without one the webhook
// payload is used as the conversation.
func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

// GetConversationDetails fetches GET /v1/convai/conversations/{id}.
// 5xx responses and transport errors are retried with exponential backoff;
// 4xx responses fail immediately.
func (c *Client) GetConversationDetails(ctx context.Context, conversationID string) ([]byte, error) {
	if conversationID == "" {
		return nil, errors.New("provider: conversation id required")
	}
	endpoint := c.baseURL + "/v1/convai/conversations/" + url.PathEscape(conversationID)

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("xi-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("provider: server error %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("provider: request rejected %d: %s", resp.StatusCode, truncate(b, 200)))
		}
		if !json.Valid(b) {
			return backoff.Permanent(errors.New("provider: response is not json"))
		}
		body = b
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
