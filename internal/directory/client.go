// Package directory provides the HTTP client for the agent directory service.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"searchahouse/internal/domain"
	"searchahouse/platform/logger"
)

const (
	serviceName     = "agent-directory"
	defaultTimeout  = 5 * time.Second
	defaultMaxPages = 1000
	maxBodyBytes    = 4 << 20
	halContentType  = "application/hal+json, application/json"
)

// Client talks to the agent directory. Every call runs under a bounded timeout.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	maxPages   int
	log        *logger.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxPages caps how many pages a single listing may follow.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// New creates a client for the directory rooted at baseURL, e.g.
// "http://agents.internal/api/v1".
func New(baseURL string, timeout time.Duration, log *logger.Logger, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse directory url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("directory url must be absolute: %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		timeout:    timeout,
		maxPages:   defaultMaxPages,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AgentsForProperty returns every agent servicing propertyID, following HAL
// "next" links until the listing is drained. A 404 on the first page means no
// agents; on a later page it fails the listing as unavailable.
func (c *Client) AgentsForProperty(ctx context.Context, propertyID string) ([]domain.Agent, error) {
	const op = "list agents"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	next := c.endpoint("agent", "property", propertyID)
	seen := make(map[string]struct{})
	agents := make([]domain.Agent, 0)

	for page := 0; next != nil; page++ {
		if page >= c.maxPages {
			return nil, &Error{Op: op, Err: fmt.Errorf("pagination exceeded %d pages", c.maxPages)}
		}
		key := next.String()
		if _, dup := seen[key]; dup {
			return nil, &Error{Op: op, Err: fmt.Errorf("pagination loop at %s", key)}
		}
		seen[key] = struct{}{}

		body, status, _, err := c.do(ctx, op, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			if page == 0 {
				return agents, nil
			}
			// a later page vanished mid-listing; the collected set is partial
			return nil, &Error{Op: op, Status: status, Reason: errorReason(body), Partial: true}
		}
		if status != http.StatusOK {
			return nil, &Error{Op: op, Status: status, Reason: errorReason(body)}
		}

		var pg halPage
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, &Error{Op: op, Status: status, Err: fmt.Errorf("decode page: %w", err)}
		}
		pageAgents, err := pg.agents()
		if err != nil {
			return nil, &Error{Op: op, Status: status, Err: err}
		}
		agents = append(agents, pageAgents...)

		current := next
		next = nil
		if href := pg.Links.Next.Href; href != "" {
			ref, err := url.Parse(href)
			if err != nil {
				return nil, &Error{Op: op, Status: status, Err: fmt.Errorf("parse next link: %w", err)}
			}
			next = current.ResolveReference(ref)
		}
	}

	return agents, nil
}

// AssignLead appends lead to the agent and returns the Location of the created
// assignment. The lead must carry its pre-generated identifier.
func (c *Client) AssignLead(ctx context.Context, agentID string, lead domain.Lead) (string, error) {
	const op = "assign lead"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(lead)
	if err != nil {
		return "", fmt.Errorf("encode lead: %w", err)
	}

	target := c.endpoint("agent", agentID, "lead")
	body, status, header, err := c.do(ctx, op, http.MethodPost, target, payload)
	if err != nil {
		return "", err
	}

	if status != http.StatusCreated && status != http.StatusOK {
		return "", &Error{Op: op, Status: status, Reason: errorReason(body)}
	}

	location := strings.TrimSpace(header.Get("Location"))
	if location == "" {
		return "", &Error{Op: op, Status: status, Err: errors.New("response has no Location header")}
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", &Error{Op: op, Status: status, Err: fmt.Errorf("parse location: %w", err)}
	}
	return target.ResolveReference(ref).String(), nil
}

func (c *Client) endpoint(segments ...string) *url.URL {
	u := *c.baseURL
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, u.Path)
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	u.RawPath = path.Join(escaped...)
	u.Path, _ = url.PathUnescape(u.RawPath)
	return &u
}

func (c *Client) do(ctx context.Context, op, method string, target *url.URL, payload []byte) ([]byte, int, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, 0, nil, &Error{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", halContentType)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		derr := &Error{Op: op, Err: err, Timeout: isTimeout(ctx, err)}
		c.logCall(method, target, 0, start, derr)
		return nil, 0, nil, derr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		derr := &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err), Timeout: isTimeout(ctx, err)}
		c.logCall(method, target, resp.StatusCode, start, derr)
		return nil, 0, nil, derr
	}

	c.logCall(method, target, resp.StatusCode, start, nil)
	return body, resp.StatusCode, resp.Header, nil
}

func (c *Client) logCall(method string, target *url.URL, status int, start time.Time, err error) {
	if c.log == nil {
		return
	}
	c.log.UpstreamCall(serviceName, method, target.Redacted(), status, time.Since(start), err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
