// Package backend talks to the remote CPaaS services that own delivery,
// authentication, roles and metrics.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	xerrors "cpaas-console/internal/pkg/errors"

	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type Config struct {
	AuthURL        string
	MessagingURL   string
	MetricsURL     string
	Timeout        time.Duration
	SMSServiceName string
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.SMSServiceName == "" {
		cfg.SMSServiceName = "CPAAS_TEST"
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// StatusError is a non-success answer from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return xerrors.ErrInvalidInput
	case http.StatusUnauthorized:
		return xerrors.ErrUnauthorized
	case http.StatusForbidden:
		return xerrors.ErrForbidden
	case http.StatusNotFound:
		return xerrors.ErrNotFound
	case http.StatusConflict:
		return xerrors.ErrConflict
	case http.StatusTooManyRequests:
		return xerrors.ErrRateLimited
	default:
		return xerrors.ErrUpstream
	}
}

// request describes one backend call.
type request struct {
	op     string
	method string
	url    string
	body   interface{}
	// bearer is sent as "Bearer <token>"; rawAuth verbatim.
	bearer  string
	rawAuth string
	// accept decides success; nil means any 2xx.
	accept func(int) bool
}

// acceptedSend matches what the messaging backend answers for a queued send.
func acceptedSend(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated || status == http.StatusAccepted
}

func (c *Client) do(ctx context.Context, r request) (json.RawMessage, error) {
	start := time.Now()

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal payload: %w", r.op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case r.rawAuth != "":
		req.Header.Set("Authorization", r.rawAuth)
	case r.bearer != "":
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("op", r.op),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s: %w: %v", r.op, xerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", r.op, err)
	}

	accept := r.accept
	if accept == nil {
		accept = func(s int) bool { return s >= 200 && s < 300 }
	}
	if !accept(resp.StatusCode) {
		c.logger.Warn("backend rejected request",
			zap.String("op", r.op),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, &StatusError{Op: r.op, StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	c.logger.Debug("backend request ok",
		zap.String("op", r.op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return asJSON(body), nil
}

// asJSON keeps valid JSON as is and wraps anything else as a JSON string.
func asJSON(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

func decode(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(raw, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
