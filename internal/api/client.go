// Package api provides the typed client of the remote course matching API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/logger"
	"github.com/coursematch/coursematch-web/internal/metrics"
	"github.com/coursematch/coursematch-web/internal/sliceutil"
)

// Operation names used for metrics, logs and error context.
const (
	OpMatchCode   = "match_code"
	OpMatchText   = "match_text"
	OpListCourses = "list_courses"
	OpFeedback    = "feedback"
	OpPing        = "ping"
)

const (
	defaultRetryDelay = 500 * time.Millisecond
	defaultAliasTTL   = 10 * time.Minute
	maxErrorBody      = 512
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	AccessToken string // sent as "Authorization: Bearer <token>" when set
	Timeout     time.Duration
	MaxRetries  int

	RetryDelay time.Duration // initial backoff, defaults to 500ms
	AliasTTL   time.Duration // how long the alias list is reused, defaults to 10m

	HTTPClient *http.Client     // optional, overrides Timeout
	Metrics    *metrics.Metrics // optional
	Logger     *logger.Logger   // optional
}

// Client calls the course matching API.
// It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	metrics    *metrics.Metrics
	log        *logger.Logger

	aliasGroup singleflight.Group
	aliasTTL   time.Duration
	aliasMu    sync.RWMutex
	aliases    []CourseAlias
	aliasesAt  time.Time
}

// NewClient builds a client bound to opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute, got %q", opts.BaseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	aliasTTL := opts.AliasTTL
	if aliasTTL <= 0 {
		aliasTTL = defaultAliasTTL
	}
	maxRetries := max(opts.MaxRetries, 0)

	return &Client{
		baseURL:    base,
		token:      opts.AccessToken,
		httpClient: httpClient,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		aliasTTL:   aliasTTL,
	}, nil
}

// MatchCourseCode returns the courses matching a course code.
func (c *Client) MatchCourseCode(ctx context.Context, code string) ([]Course, error) {
	var courses []Course
	q := url.Values{"courseCode": {code}}
	if err := c.getJSON(ctx, OpMatchCode, "/match/courseCode", q, &courses); err != nil {
		return nil, err
	}
	return nonNil(courses), nil
}

// MatchText returns the courses semantically matching free text.
func (c *Client) MatchText(ctx context.Context, text string) ([]Course, error) {
	var courses []Course
	q := url.Values{"queryText": {text}}
	if err := c.getJSON(ctx, OpMatchText, "/match/text", q, &courses); err != nil {
		return nil, err
	}
	return nonNil(courses), nil
}

// ListCourses returns the course alias list used for code suggestions, one
// entry per course code.
// Concurrent callers share one request and the result is reused for AliasTTL.
func (c *Client) ListCourses(ctx context.Context) ([]CourseAlias, error) {
	c.aliasMu.RLock()
	if c.aliases != nil && time.Since(c.aliasesAt) < c.aliasTTL {
		cached := c.aliases
		c.aliasMu.RUnlock()
		return cached, nil
	}
	c.aliasMu.RUnlock()

	ch := c.aliasGroup.DoChan(OpListCourses, func() (any, error) {
		var aliases []CourseAlias
		// Detached so one caller's cancellation does not fail the others.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout())
		defer cancel()
		if err := c.getJSON(fetchCtx, OpListCourses, "/courses", nil, &aliases); err != nil {
			return nil, err
		}
		// The list has one row per course instance; suggest each code once.
		aliases = sliceutil.Deduplicate(nonNil(aliases), func(a CourseAlias) string { return a.Code })

		c.aliasMu.Lock()
		c.aliases = aliases
		c.aliasesAt = time.Now()
		c.aliasMu.Unlock()
		return aliases, nil
	})

	select {
	case res := <-ch:
		if res.Shared && c.metrics != nil {
			c.metrics.RecordSingleflightDedup(OpListCourses)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]CourseAlias), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendFeedback submits one like/dislike vote. It is never retried.
func (c *Client) SendFeedback(ctx context.Context, fb Feedback) error {
	body, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	start := time.Now()
	endpoint := c.endpoint("/feedback", nil)
	err = c.do(ctx, OpFeedback, http.MethodPost, endpoint, bytes.NewReader(body), nil)
	c.record(OpFeedback, err, start)
	return err
}

// Ping checks that the API host answers at all. Any HTTP response counts as
// reachable; only transport failures are reported.
func (c *Client) Ping(ctx context.Context) error {
	endpoint := c.endpoint("", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = domerrors.NewAPIError(OpPing, endpoint, 0, err)
		c.record(OpPing, err, start)
		return err
	}
	_ = resp.Body.Close()
	c.record(OpPing, nil, start)
	return nil
}

// Classify maps an error returned by the client to the message kind shown to users.
func Classify(err error) domerrors.Kind {
	return domerrors.Classify(err)
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	endpoint := c.endpoint(path, query)
	start := time.Now()

	onRetry := func() {
		if c.metrics != nil {
			c.metrics.RecordAPIRetry(op)
		}
	}
	err := retryWithBackoff(ctx, c.maxRetries, c.retryDelay, onRetry, func() error {
		return c.do(ctx, op, http.MethodGet, endpoint, nil, out)
	})
	c.record(op, err, start)
	return err
}

// do performs a single request. Statuses that another attempt cannot fix are
// returned as permanentError.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &permanentError{err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := domerrors.NewAPIError(op, endpoint, 0, err)
		if ctx.Err() != nil {
			return &permanentError{err: apiErr}
		}
		return apiErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := domerrors.NewAPIError(op, endpoint, resp.StatusCode,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return apiErr
		default:
			return &permanentError{err: apiErr}
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &permanentError{err: domerrors.NewAPIError(op, endpoint, resp.StatusCode, fmt.Errorf("decode response: %w", err))}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) fetchTimeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout * time.Duration(c.maxRetries+1)
	}
	return time.Minute
}

func (c *Client) record(op string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = domerrors.Classify(err).String()
		if c.log != nil {
			c.log.WithModule("api").WithField("op", op).WithError(err).Warn("API request failed")
		}
	}
	if c.metrics != nil {
		c.metrics.RecordAPIRequest(op, status, time.Since(start).Seconds())
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
