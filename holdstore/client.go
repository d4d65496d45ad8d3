// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package holdstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parley-chat/parley/lib/netutil"
	"github.com/parley-chat/parley/lib/wire"
)

// DefaultTimeout bounds one request to the holding store.
const DefaultTimeout = 10 * time.Second

// Client is a Store backed by a remote holding store's HTTP API. Every
// transport failure and non-2xx status is reported wrapped in
// ErrUnavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client for the API rooted at baseURL, for example
// "http://127.0.0.1:8000". A nil httpClient gets one with
// DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Append(ctx context.Context, message wire.Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("holdstore: append: encoding message: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("holdstore: append: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	var result StatusResponse
	if err := c.do(request, "append", &result); err != nil {
		return err
	}
	if result.Status != "stored" {
		return fmt.Errorf("%w: append: unexpected status %q", ErrUnavailable, result.Status)
	}
	return nil
}

func (c *Client) Drain(ctx context.Context, handle string) ([]wire.Message, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/messages/"+url.PathEscape(handle), nil)
	if err != nil {
		return nil, fmt.Errorf("holdstore: drain: %w", err)
	}
	var result DrainResponse
	if err := c.do(request, "drain", &result); err != nil {
		return nil, err
	}
	if result.Messages == nil {
		return []wire.Message{}, nil
	}
	return result.Messages, nil
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("holdstore: health: %w", err)
	}
	var result StatusResponse
	return c.do(request, "health", &result)
}

func (c *Client) do(request *http.Request, operation string, result any) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, operation, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &StatusError{
			Operation:  operation,
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(netutil.ErrorBody(response.Body)),
		}
	}
	if err := netutil.DecodeResponse(response.Body, result); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, operation, err)
	}
	return nil
}
