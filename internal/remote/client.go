// Package remote is the HTTP client for the NFC-e receipt service.
//
// Every call carries its own timeout and an X-Request-ID header. Failures
// are classified into the sentinel errors of this package; nothing is
// retried here.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"nfcescan/internal/cache"
	"nfcescan/internal/core"
	"nfcescan/internal/log"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultScanTimeout = 30 * time.Second
	defaultCategoryTTL = 5 * time.Minute
	maxErrorBody       = 64 << 10

	// RequestIDHeader correlates client and server logs.
	RequestIDHeader = "X-Request-ID"
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	ScanTimeout time.Duration
	CategoryTTL time.Duration
	HTTPClient  *http.Client
	Logger      *log.Logger
}

// Client talks to the remote data service.
type Client struct {
	baseURL     string
	timeout     time.Duration
	scanTimeout time.Duration
	httpClient  *http.Client
	logger      *log.Logger

	categories *cache.LRUCache[[]core.Category]
	flight     singleflight.Group
}

// New creates a client for the service rooted at opts.BaseURL.
func New(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		timeout:     opts.Timeout,
		scanTimeout: opts.ScanTimeout,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.scanTimeout <= 0 {
		c.scanTimeout = defaultScanTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = log.Discard()
	}
	c.logger = c.logger.WithComponent(log.ComponentRemote)

	ttl := opts.CategoryTTL
	if ttl <= 0 {
		ttl = defaultCategoryTTL
	}
	c.categories = cache.NewLRUCache[[]core.Category](1, ttl)
	return c
}

// CategoryCache exposes the category cache so it can be registered with a
// cache.Manager.
func (c *Client) CategoryCache() cache.Cleaner {
	return c.categories
}

type call struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	timeout time.Duration
}

// do executes the call and decodes a JSON answer into out when out is not nil.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", cl.op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", cl.op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Request failed",
			log.FieldOperation, cl.op,
			log.FieldRequestID, requestID,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err)
		return fmt.Errorf("%s: %w: %w", cl.op, ErrConnectivity, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Request completed",
		log.FieldOperation, cl.op,
		log.FieldRequestID, requestID,
		log.FieldMethod, cl.method,
		log.FieldPath, cl.path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newStatusError(cl.op, resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w: %w", cl.op, ErrConnectivity, err)
		}
		return fmt.Errorf("%s: decode response: %w", cl.op, err)
	}
	return nil
}

func rangeQuery(r core.DateRange) url.Values {
	q := url.Values{}
	if !r.Start.IsZero() {
		q.Set("data_inicio", r.Start.String())
	}
	if !r.End.IsZero() {
		q.Set("data_fim", r.End.String())
	}
	return q
}
