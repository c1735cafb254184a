package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrRejected marks a request the provider refused (4xx). It is not retried
// and does not trip the breaker.
var ErrRejected = errors.New("translation rejected")

type LibreConfig struct {
	URL                string
	APIKey             string
	Timeout            time.Duration
	MaxRetries         int
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// LibreClient talks to a LibreTranslate compatible /translate endpoint.
type LibreClient struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	cb         *gobreaker.CircuitBreaker
	maxRetries int
	log        *zap.Logger
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func NewLibreClient(cfg LibreConfig, logger *zap.Logger) *LibreClient {
	if cfg.BreakerMaxFailures <= 0 {
		cfg.BreakerMaxFailures = 5
	}
	st := gobreaker.Settings{
		Name:        "translate",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerMaxFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &LibreClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		http:       &http.Client{Timeout: cfg.Timeout},
		cb:         gobreaker.NewCircuitBreaker(st),
		maxRetries: cfg.MaxRetries,
		log:        logger,
	}
}

func (c *LibreClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.translateWithRetry(ctx, text, source, target)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (c *LibreClient) translateWithRetry(ctx context.Context, text, source, target string) (string, error) {
	var out string
	operation := func() error {
		s, err := c.do(ctx, text, source, target)
		if err != nil {
			return err
		}
		out = s
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return out, nil
}

func (c *LibreClient) do(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(libreRequest{Q: text, Source: source, Target: target, Format: "text", APIKey: c.apiKey})
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", err
	}
	defer resp.Body.Close()

	var lr libreResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(raw, &lr)

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("translate upstream status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, lr.Error))
	}
	if lr.TranslatedText == "" {
		return "", backoff.Permanent(errors.New("translate: empty translatedText"))
	}
	return lr.TranslatedText, nil
}
