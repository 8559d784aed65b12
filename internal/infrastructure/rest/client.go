// Package rest talks to a hosted PostgREST + GoTrue backend: table rows under
// /rest/v1 and the auth session under /auth/v1.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultRetries = 3

	// mediaObject asks PostgREST for a single JSON object instead of an array.
	mediaObject = "application/vnd.pgrst.object+json"
	// codeNoRows is the PostgREST code for an object request that matched nothing.
	codeNoRows = "PGRST116"
)

// ErrUnexpectedStatus is wrapped by every non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
	Retries uint
}

// Client performs authenticated requests against the backend. Reads are
// retried with exponential backoff on transport failures and 5xx answers;
// writes are sent once.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	retries uint
	backOff func() backoff.BackOff
	log     zerolog.Logger

	mu          sync.RWMutex
	accessToken string
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		retries: cfg.Retries,
		backOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		log:     log,
	}
}

// setAccessToken switches the bearer token; empty falls back to the anon key.
func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.accessToken != "" {
		return c.accessToken
	}
	return c.anonKey
}

// Ping checks that the REST root answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{op: "rest.ping", method: http.MethodGet, path: "/rest/v1/"}, nil)
}

type request struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	object   bool   // single-row response
	token    string // overrides the session bearer
	notFound error  // wrapped when an object request matched no row
}

// do sends r and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return &ports.BackendError{Op: r.op, Err: fmt.Errorf("encode body: %w", err)}
		}
		payload = b
	}

	attempt := func() ([]byte, error) {
		body, err := c.send(ctx, r, payload)
		if err == nil {
			return body, nil
		}
		var be *ports.BackendError
		if errors.As(err, &be) && be.Status != 0 && be.Status < 500 && be.Status != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var (
		body []byte
		err  error
	)
	if r.method == http.MethodGet {
		body, err = backoff.Retry(ctx, attempt,
			backoff.WithBackOff(c.backOff()),
			backoff.WithMaxTries(c.retries),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.log.Warn().Err(err).Str("op", r.op).Dur("retry_in", next).Msg("backend read failed, retrying")
			}))
	} else {
		body, err = c.send(ctx, r, payload)
	}
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ports.BackendError{Op: r.op, Err: fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)}
	}
	return nil
}

func (c *Client) send(ctx context.Context, r request, payload []byte) ([]byte, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, &ports.BackendError{Op: r.op, Err: fmt.Errorf("create request: %w", err)}
	}

	token := r.token
	if token == "" {
		token = c.bearer()
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.object {
		req.Header.Set("Accept", mediaObject)
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if r.method == http.MethodPost || r.method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ports.BackendError{Op: r.op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ports.BackendError{Op: r.op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	c.log.Debug().
		Str("op", r.op).
		Str("method", r.method).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode >= 300 {
		return nil, decodeError(r, resp.StatusCode, data)
	}
	return data, nil
}

// errorBody covers the PostgREST and GoTrue error shapes.
type errorBody struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(r request, status int, data []byte) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)

	msg := firstNonEmpty(eb.ErrorDescription, eb.Message, eb.Msg, eb.Error)
	be := &ports.BackendError{Op: r.op, Status: status, Message: msg, Err: ErrUnexpectedStatus}

	switch {
	case r.notFound != nil && (status == http.StatusNotFound || (status == http.StatusNotAcceptable && eb.Code == codeNoRows)):
		be.Status = http.StatusNotFound
		be.Message = ""
		be.Err = r.notFound
	case status == http.StatusUnauthorized:
		be.Err = domain.ErrUnauthenticated
	case status == http.StatusForbidden:
		be.Err = domain.ErrForbidden
	}
	return be
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
