package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

// APIError is a non-success answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

type APIClient struct {
	base            string
	token           string
	http            *http.Client
	retryMaxElapsed time.Duration
}

func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	return &APIClient{
		base:            strings.TrimRight(baseURL, "/"),
		token:           token,
		http:            &http.Client{Transport: tr, Timeout: timeout},
		retryMaxElapsed: 10 * time.Second,
	}
}

// Send posts a draft. It is never retried so a message is not stored twice.
func (c *APIClient) Send(ctx context.Context, receiverID string, req SendRequest) (*domain.Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var m domain.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiverID), body, http.StatusCreated, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *APIClient) Messages(ctx context.Context, peerID string) ([]*domain.Message, error) {
	var out []*domain.Message
	err := c.getWithRetry(ctx, "/api/messages/"+url.PathEscape(peerID), &out)
	return out, err
}

func (c *APIClient) Users(ctx context.Context) ([]*domain.User, error) {
	var out []*domain.User
	err := c.getWithRetry(ctx, "/api/messages/users", &out)
	return out, err
}

func (c *APIClient) getWithRetry(ctx context.Context, path string, out any) error {
	operation := func() error {
		err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, out)
		if apiErr, ok := err.(*APIError); ok && apiErr.Status < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = c.retryMaxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func (c *APIClient) do(ctx context.Context, method, path string, body []byte, want int, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
