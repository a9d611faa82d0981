// Package remote talks to the hosted workout_logs collection and image bucket over a
// PostgREST-style HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"example.com/fitlog/internal/domain"
)

const (
	// DefaultTable is the collection holding activity logs.
	DefaultTable = "workout_logs"
	// DefaultBucket is the storage bucket holding session photos.
	DefaultBucket = "workout-images"
	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 30 * time.Second
)

// Config describes how to reach the hosted collection.
type Config struct {
	BaseURL     string
	APIKey      string
	AccessToken string
	Table       string
	Bucket      string
	Timeout     time.Duration
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithTransport overrides the base round tripper below the auth layers.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// WithClock overrides the clock used to name uploaded images.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client is the single HTTP adapter for the remote collection.
type Client struct {
	baseURL *url.URL
	table   string
	bucket  string
	http    *http.Client
	base    http.RoundTripper
	now     func() time.Time
}

// NewClient validates cfg and builds a Client. Requests carry the apikey header and an
// oauth2 bearer token; AccessToken defaults to APIKey.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", cfg.BaseURL)
	}

	c := &Client{
		baseURL: parsed,
		table:   valueOr(cfg.Table, DefaultTable),
		bucket:  valueOr(cfg.Bucket, DefaultBucket),
		base:    http.DefaultTransport,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	token := valueOr(cfg.AccessToken, cfg.APIKey)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.http = &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   apiKeyTransport{key: cfg.APIKey, base: c.base},
		},
	}
	return c, nil
}

// List fetches every log, newest first.
func (c *Client) List(ctx context.Context) ([]domain.ActivityLog, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "timestamp.desc")

	var rows []wireLog
	if err := c.do(ctx, http.MethodGet, c.restURL(query), nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	logs := make([]domain.ActivityLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.toDomain())
	}
	return logs, nil
}

// Insert creates entry remotely and returns the stored representation.
func (c *Client) Insert(ctx context.Context, entry domain.ActivityLog) (domain.ActivityLog, error) {
	body, err := json.Marshal(newInsertRequest(entry))
	if err != nil {
		return domain.ActivityLog{}, fmt.Errorf("encode log: %w", err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Prefer", "return=representation")

	var rows []wireLog
	if err := c.do(ctx, http.MethodPost, c.restURL(nil), bytes.NewReader(body), headers, &rows); err != nil {
		return domain.ActivityLog{}, fmt.Errorf("insert log: %w", err)
	}
	if len(rows) == 0 {
		return entry, nil
	}
	return rows[0].toDomain(), nil
}

// DeleteByTimestamp removes every log with the given timestamp.
func (c *Client) DeleteByTimestamp(ctx context.Context, timestamp int64) error {
	query := url.Values{}
	query.Set("timestamp", "eq."+strconv.FormatInt(timestamp, 10))
	if err := c.do(ctx, http.MethodDelete, c.restURL(query), nil, nil, nil); err != nil {
		return fmt.Errorf("delete log %d: %w", timestamp, err)
	}
	return nil
}

// DeleteAll removes every log. PostgREST refuses unfiltered deletes, so match all ids.
func (c *Client) DeleteAll(ctx context.Context) error {
	query := url.Values{}
	query.Set("id", "neq.null")
	if err := c.do(ctx, http.MethodDelete, c.restURL(query), nil, nil, nil); err != nil {
		return fmt.Errorf("delete all logs: %w", err)
	}
	return nil
}

// UploadImage stores the image read from r and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, r io.Reader, contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		contentType = "image/jpeg"
	}
	name := fmt.Sprintf("workout-%d-%s.%s", c.now().UnixMilli(), uuid.NewString(), extensionFor(contentType))

	headers := http.Header{}
	headers.Set("Content-Type", contentType)
	target := c.resolve("storage", "v1", "object", c.bucket, name)
	if err := c.do(ctx, http.MethodPost, target, r, headers, nil); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return c.resolve("storage", "v1", "object", "public", c.bucket, name), nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Method: method, URL: target, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) restURL(query url.Values) string {
	target := c.resolve("rest", "v1", c.table)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func (c *Client) resolve(segments ...string) string {
	return c.baseURL.JoinPath(segments...).String()
}

// apiKeyTransport adds the project api key expected alongside the bearer token.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.key == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("apikey", t.key)
	return t.base.RoundTrip(clone)
}

func extensionFor(contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch mediaType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/heic":
		return "heic"
	default:
		return "jpg"
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
