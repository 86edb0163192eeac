package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResultCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		strict  bool
		wantErr bool
	}{
		{"ok", 200, "x", false, false},
		{"redirect status accepted", 304, "x", false, false},
		{"strict rejects 204", 204, "x", true, true},
		{"server error", 500, "x", false, true},
		{"blank body", 200, "  \n", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Result{URL: "u", Status: tt.status, Body: tt.body}).Check(tt.strict)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusErrorNamesMethod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()
	c := NewClient(Options{})

	tests := []struct {
		method, want string
	}{
		{"", "GET "},
		{http.MethodPost, "POST "},
	}
	for _, tt := range tests {
		_, err := Fetch(context.Background(), c, Request{URL: srv.URL, Method: tt.method})
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("Fetch(%q) error = %v, want *StatusError", tt.method, err)
		}
		if se.Status != http.StatusForbidden || !strings.HasPrefix(se.Error(), tt.want) {
			t.Errorf("Fetch(%q) error = %q, want prefix %q", tt.method, se.Error(), tt.want)
		}
	}

	if got := (&Result{URL: "u", Status: 500, Body: "x"}).Check(false).Error(); got != "GET u: HTTP 500" {
		t.Errorf("zero-method Check() = %q", got)
	}
}

func TestRouteFor(t *testing.T) {
	c := NewClient(Options{
		Routes:      map[string]string{"Proxy": "http://127.0.0.1:7890", "Home": "DIRECT"},
		DirectHosts: []string{"qt.gtimg.cn", ".1234567.com.cn"},
	})

	tests := []struct {
		url, route, want string
	}{
		{"https://qt.gtimg.cn/q=sh600519", "Proxy", RouteDirect},
		{"https://fundgz.1234567.com.cn/js/110011.js", "Proxy", RouteDirect},
		{"https://notqt.gtimg.cn.evil.com/", "Proxy", "Proxy"},
		{"https://github.com/trending", "Proxy", "Proxy"},
		{"https://github.com/trending", "direct", RouteDirect},
		{"https://github.com/trending", "", ""},
		{"https://github.com/trending", "Missing", ""},
		{"https://github.com/trending", "Home", "Home"},
	}
	for _, tt := range tests {
		if got := c.RouteFor(tt.url, tt.route); got != tt.want {
			t.Errorf("RouteFor(%q, %q) = %q, want %q", tt.url, tt.route, got, tt.want)
		}
	}
}

func TestClientDo_HeadersAndBody(t *testing.T) {
	var mu sync.Mutex
	var gotUA, gotCustom, gotBody, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Token")
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Reply", "1")
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	c := NewClient(Options{})
	res, err := c.Do(context.Background(), Request{
		URL:     srv.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"X-Token": "abc"},
		Form:    map[string]string{"a": "1"},
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if res.Status != 200 || res.Body != "hello" || res.Header.Get("X-Reply") != "1" {
		t.Errorf("Do() = %+v", res)
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Errorf("User-Agent = %q, want browser-like", gotUA)
	}
	if gotCustom != "abc" || gotMethod != http.MethodPost || gotBody != "a=1" {
		t.Errorf("server saw header=%q method=%q body=%q", gotCustom, gotMethod, gotBody)
	}
}

func TestClientDo_RoutesThroughProxy(t *testing.T) {
	var proxied atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		fmt.Fprintf(w, "via proxy to %s", r.URL.Host)
	}))
	defer proxy.Close()

	var direct atomic.Int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		direct.Add(1)
		fmt.Fprint(w, "direct")
	}))
	defer origin.Close()

	c := NewClient(Options{
		Routes:      map[string]string{"Proxy": proxy.URL},
		DirectHosts: []string{"127.0.0.1"},
	})

	res, err := c.Do(context.Background(), Request{URL: "http://upstream.example/page", Route: "Proxy"})
	if err != nil {
		t.Fatalf("Do() via proxy error: %v", err)
	}
	if res.Body != "via proxy to upstream.example" {
		t.Errorf("Body = %q", res.Body)
	}

	// The origin host is listed as direct, so the proxy route is overridden.
	res, err = c.Do(context.Background(), Request{URL: origin.URL, Route: "Proxy"})
	if err != nil {
		t.Fatalf("Do() direct error: %v", err)
	}
	if res.Body != "direct" {
		t.Errorf("Body = %q, want direct", res.Body)
	}
	if proxied.Load() != 1 || direct.Load() != 1 {
		t.Errorf("proxied=%d direct=%d, want 1 and 1", proxied.Load(), direct.Load())
	}
}

func TestClientDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{})
	_, err := c.Do(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("Do() error = nil, want timeout")
	}
}

func TestClientDo_HostSpacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := NewClient(Options{HostSpacing: map[string]time.Duration{"127.0.0.1": 100 * time.Millisecond}})
	start := time.Now()
	for range 3 {
		if _, err := c.Do(context.Background(), Request{URL: srv.URL}); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("3 spaced requests took %v, want >= 200ms", elapsed)
	}
}

func TestFirst(t *testing.T) {
	var (
		mu   sync.Mutex
		hits []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/down":
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "bad gateway")
		case "/empty":
			fmt.Fprint(w, "nothing useful")
		case "/good":
			fmt.Fprint(w, "a,b,c")
		case "/also-good":
			fmt.Fprint(w, "d")
		}
	}))
	defer srv.Close()

	parse := func(r *Result) ([]string, error) {
		if !strings.Contains(r.Body, ",") && r.Body != "d" {
			return nil, nil
		}
		return strings.Split(r.Body, ","), nil
	}

	c := NewClient(Options{})
	candidates := []Request{{URL: srv.URL + "/down"}, {URL: srv.URL + "/empty"}, {URL: srv.URL + "/good"}, {URL: srv.URL + "/also-good"}}
	items, res, err := First(context.Background(), c, candidates, parse)
	if err != nil {
		t.Fatalf("First() error: %v", err)
	}
	if len(items) != 3 || res.URL != srv.URL+"/good" {
		t.Errorf("First() = %v from %s", items, res.URL)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(hits, " ") != "/down /empty /good" {
		t.Errorf("hits = %v, later candidates must not be contacted", hits)
	}
}

func TestFirst_AllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "down")
	}))
	defer srv.Close()

	c := NewClient(Options{})
	_, _, err := First(context.Background(), c, []Request{{URL: srv.URL + "/a"}, {URL: srv.URL + "/b"}},
		func(r *Result) ([]int, error) { return []int{1}, nil })
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("error = %v, want ErrAllSourcesFailed", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusServiceUnavailable {
		t.Errorf("error = %v, want wrapped StatusError 503", err)
	}
	if !strings.Contains(err.Error(), "/a") || !strings.Contains(err.Error(), "/b") {
		t.Errorf("error = %v, want both candidates listed", err)
	}
}
