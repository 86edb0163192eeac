// Package fetch issues outbound HTTP requests over named egress routes.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 15 * time.Second

	// RouteDirect bypasses every proxy.
	RouteDirect = "DIRECT"
)

const browserUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"

var (
	// ErrEmptyBody is returned when a response has no content.
	ErrEmptyBody = errors.New("empty response body")
	// ErrAllSourcesFailed wraps the joined per-candidate errors once every
	// candidate source has been tried.
	ErrAllSourcesFailed = errors.New("all sources failed")
	// ErrNoItems marks a response that parsed to nothing.
	ErrNoItems = errors.New("no items extracted")
)

// StatusError reports a response whose status is not acceptable.
type StatusError struct {
	Method string
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
}

// Request describes one outbound call.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	// Body is sent as is for strings and byte slices, JSON-encoded otherwise.
	Body any
	// Form is sent url-encoded. It is ignored when Body is set.
	Form  map[string]string
	Route string
	// Timeout overrides the client default.
	Timeout time.Duration
	// Strict requires exactly HTTP 200 instead of any 2xx/3xx status.
	Strict bool
}

// Result is the outcome of one call.
type Result struct {
	// Method is the verb that was sent. Empty means GET.
	Method string
	URL    string
	Status int
	Body   string
	Header http.Header
}

// Check validates a result: the status must be in [200,399] (exactly 200 for
// strict requests) and the body must not be blank.
func (r *Result) Check(strict bool) error {
	if (strict && r.Status != http.StatusOK) || r.Status < 200 || r.Status > 399 {
		method := r.Method
		if method == "" {
			method = http.MethodGet
		}
		return &StatusError{Method: method, URL: r.URL, Status: r.Status}
	}
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%s: %w", r.URL, ErrEmptyBody)
	}
	return nil
}

// Doer performs a single request. Implementations return an error only for
// transport failures; status validation is left to the caller.
type Doer interface {
	Do(ctx context.Context, req Request) (*Result, error)
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Routes maps a route name to a proxy URL. The value "DIRECT" disables
	// proxying for that route.
	Routes map[string]string
	// DirectHosts are host suffixes that always use the direct route.
	DirectHosts []string
	// HostSpacing is the minimum interval between requests to a host.
	HostSpacing map[string]time.Duration
}

// Client is a Doer backed by one resty client per egress route.
type Client struct {
	opts Options

	mu       sync.Mutex
	clients  map[string]*resty.Client
	limiters map[string]*rate.Limiter
	warned   map[string]bool
}

var _ Doer = (*Client)(nil)

// NewClient creates a Client. Zero options get sensible defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = browserUserAgent
	}
	return &Client{
		opts:     opts,
		clients:  make(map[string]*resty.Client),
		limiters: make(map[string]*rate.Limiter),
		warned:   make(map[string]bool),
	}
}

// RouteFor returns the route a request to rawURL actually takes. Hosts listed
// in DirectHosts are forced onto the direct route; unknown route names fall
// back to the default route "".
func (c *Client) RouteFor(rawURL, requested string) string {
	if host := hostname(rawURL); host != "" {
		for _, d := range c.opts.DirectHosts {
			d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
			if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
				return RouteDirect
			}
		}
	}

	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, RouteDirect) {
		return strings.ToUpper(requested)
	}
	if _, ok := c.opts.Routes[requested]; ok {
		return requested
	}

	c.mu.Lock()
	if !c.warned[requested] {
		c.warned[requested] = true
		slog.Warn("unknown route, using default", "route", requested)
	}
	c.mu.Unlock()
	return ""
}

func (c *Client) client(route string) *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rc, ok := c.clients[route]; ok {
		return rc
	}

	rc := resty.New().
		SetTimeout(c.opts.Timeout).
		SetHeaders(map[string]string{
			"User-Agent":      c.opts.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		})

	switch proxy := c.opts.Routes[route]; {
	case route == RouteDirect || strings.EqualFold(proxy, RouteDirect):
		rc.RemoveProxy()
	case proxy != "":
		rc.SetProxy(proxy)
	}

	c.clients[route] = rc
	return rc
}

func (c *Client) limiter(host string) *rate.Limiter {
	spacing, ok := c.opts.HostSpacing[host]
	if !ok || spacing <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(spacing), 1)
		c.limiters[host] = l
	}
	return l
}

// Do sends req on its effective route.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	route := c.RouteFor(req.URL, req.Route)

	if l := c.limiter(hostname(req.URL)); l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limit: %w", err)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r := c.client(route).R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	switch {
	case req.Body != nil:
		r.SetBody(req.Body)
	case len(req.Form) > 0:
		r.SetFormData(req.Form)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}

	slog.Debug("fetched",
		"method", method,
		"url", req.URL,
		"route", route,
		"status", resp.StatusCode(),
		"bytes", len(resp.Body()),
		"duration", time.Since(start),
	)

	return &Result{
		Method: method,
		URL:    req.URL,
		Status: resp.StatusCode(),
		Body:   resp.String(),
		Header: resp.Header(),
	}, nil
}

// Fetch performs req and validates the result.
func Fetch(ctx context.Context, d Doer, req Request) (*Result, error) {
	res, err := d.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := res.Check(req.Strict); err != nil {
		return res, err
	}
	return res, nil
}

// First tries each candidate request in order and returns the items parsed
// from the first one that yields at least one. Later candidates are not
// contacted once one succeeds. When every candidate fails the error wraps
// ErrAllSourcesFailed and each individual failure.
func First[T any](ctx context.Context, d Doer, candidates []Request, parse func(*Result) ([]T, error)) ([]T, *Result, error) {
	var errs []error
	for _, req := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := Fetch(ctx, d, req)
		if err == nil {
			var items []T
			items, err = parse(res)
			if err == nil && len(items) > 0 {
				slog.Info("source succeeded", "url", req.URL, "items", len(items))
				return items, res, nil
			}
			if err == nil {
				err = fmt.Errorf("%s: %w", req.URL, ErrNoItems)
			}
		}

		slog.Warn("source failed", "url", req.URL, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no candidate sources"))
	}
	return nil, nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
