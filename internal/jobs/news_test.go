package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/fetch"
	"github.com/hoanghai1803/pushkit/internal/ledger"
	"github.com/hoanghai1803/pushkit/internal/models"
)

const (
	mirrorURL = "https://r.jina.ai/https://www.aicpb.com/news"
	pageURL   = "https://www.aicpb.com/news"
)

// newsMarkdown renders n numbered headlines; every third one mentions Claude.
func newsMarkdown(n int) string {
	var b strings.Builder
	b.WriteString("Title: AI 早报\nURL Source: https://www.aicpb.com/news/2026-03-01\n\n")
	for i := 1; i <= n; i++ {
		topic := "open source model release roundup"
		if i%3 == 1 {
			topic = "Claude gains a new coding workflow"
		}
		fmt.Fprintf(&b, "[%d . %s number %d](https://www.aicpb.com/news/item-%d)\n", i, topic, i, i)
	}
	return b.String()
}

func newsJob() *News {
	return &News{Config: config.NewsConfig{
		Sources:       []string{mirrorURL, pageURL},
		Max:           10,
		Keywords:      []string{"claude"},
		SkipDelivered: true,
	}}
}

func TestNews_SummaryAndFollowups(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on(mirrorURL, body(newsMarkdown(10)))

	out, err := newsJob().Run(context.Background(), env.Env, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	msgs := env.sink.Messages()
	if out.Sent != 5 || len(msgs) != 5 {
		t.Fatalf("sent %d messages (%d recorded), want 5", out.Sent, len(msgs))
	}
	summary := msgs[0]
	if summary.Title != "2026-03-01 的奏折" {
		t.Errorf("title = %q", summary.Title)
	}
	if summary.Subtitle != "AI 技术早报 · 重点 4 / 10" {
		t.Errorf("subtitle = %q", summary.Subtitle)
	}
	if summary.OpenURL != "https://www.aicpb.com/news/2026-03-01" {
		t.Errorf("open url = %q", summary.OpenURL)
	}
	if !strings.Contains(summary.Body, "其他：\n1. open source model release roundup number 2") {
		t.Errorf("summary body missing rest list:\n%s", summary.Body)
	}
	if strings.Count(summary.Body, "\n") != 9 {
		t.Errorf("summary should list 6 rest entries:\n%s", summary.Body)
	}
	first := msgs[1]
	if first.Subtitle != "AI 早报重点 1 / 4" || first.OpenURL != "https://www.aicpb.com/news/item-1" {
		t.Errorf("first followup = %+v", first)
	}

	if got := env.doer.requests(pageURL); len(got) != 0 {
		t.Errorf("second source contacted after the first succeeded: %d requests", len(got))
	}
	if _, ok, _ := env.state.Read(context.Background(), newsRenderKey); !ok {
		t.Error("render cache not written")
	}
}

func TestNews_SkipsDelivered(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on(mirrorURL, body(newsMarkdown(10)))
	job := newsJob()

	if _, err := job.Run(context.Background(), env.Env, ""); err != nil {
		t.Fatal(err)
	}
	before := len(env.sink.Messages())

	if _, err := job.Run(context.Background(), env.Env, ""); err != nil {
		t.Fatal(err)
	}
	again := env.sink.Messages()[before:]
	if len(again) != 1 || again[0].Subtitle != "AI 技术早报 · 重点 0 / 0" {
		t.Errorf("second run = %+v, want a single empty summary", again)
	}

	// A different keyword list is a different delivery scope.
	if _, err := job.Run(context.Background(), env.Env, "kw=workflow"); err != nil {
		t.Fatal(err)
	}
	scoped := env.sink.Messages()[before+1:]
	if len(scoped) != 5 {
		t.Errorf("new scope sent %d messages, want 5", len(scoped))
	}
}

func TestNews_LedgerStaysBounded(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on(mirrorURL, body(newsMarkdown(10)))
	ctx := context.Background()

	delivered := ledger.NewDeliveryLedger(env.state, newsDeliveredKey, ledger.DefaultLimit)
	scope := ledger.CacheKey("kw", "claude")
	seed := make([]string, 0, ledger.DefaultLimit-2)
	for i := range ledger.DefaultLimit - 2 {
		seed = append(seed, fmt.Sprintf("seed-%d", i))
	}
	if err := delivered.Append(ctx, scope, seed); err != nil {
		t.Fatal(err)
	}

	if _, err := newsJob().Run(ctx, env.Env, ""); err != nil {
		t.Fatal(err)
	}
	keys, err := delivered.Read(ctx, scope)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != ledger.DefaultLimit {
		t.Fatalf("ledger holds %d keys, want %d", len(keys), ledger.DefaultLimit)
	}
	if keys[0] != "seed-8" {
		t.Errorf("oldest kept key = %q, want seed-8", keys[0])
	}
}

func TestNews_BareArgumentIsRoute(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on(mirrorURL, body(newsMarkdown(3)))

	if _, err := newsJob().Run(context.Background(), env.Env, "节点A"); err != nil {
		t.Fatal(err)
	}
	got := env.doer.requests("")
	if len(got) == 0 {
		t.Fatal("no requests made")
	}
	for _, req := range got {
		if req.Route != "节点A" {
			t.Errorf("request %s used route %q, want 节点A", req.URL, req.Route)
		}
	}
}

func TestNews_FallsThroughSources(t *testing.T) {
	env := newTestEnv(t)
	env.doer.
		on(mirrorURL, status(http.StatusServiceUnavailable)).
		on(pageURL, body(newsMarkdown(3)))

	out, err := newsJob().Run(context.Background(), env.Env, "max=2&node=Proxy")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Sent != 2 {
		t.Errorf("Sent = %d, want summary plus one focus entry", out.Sent)
	}
	for _, req := range env.doer.requests("") {
		if req.Route != "Proxy" {
			t.Errorf("request %s used route %q", req.URL, req.Route)
		}
	}
}

func TestNews_RouteAuto(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on(mirrorURL, body(newsMarkdown(3)))
	if err := env.settings.Write(context.Background(), "netNode", "Proxy"); err != nil {
		t.Fatal(err)
	}

	if _, err := newsJob().Run(context.Background(), env.Env, "node=AUTO"); err != nil {
		t.Fatal(err)
	}
	if got := env.doer.requests(mirrorURL); len(got) != 1 || got[0].Route != "" {
		t.Errorf("requests = %+v, want one on the default route", got)
	}
}

func TestNews_AllSourcesFail(t *testing.T) {
	env := newTestEnv(t)
	env.doer.
		on(mirrorURL, unreachable).
		on(pageURL, status(http.StatusBadGateway))

	out, err := newsJob().Run(context.Background(), env.Env, "")
	if !errors.Is(err, fetch.ErrAllSourcesFailed) {
		t.Fatalf("Run() error = %v, want ErrAllSourcesFailed", err)
	}
	if out.Cached || out.Sent != 1 {
		t.Errorf("outcome = %+v", out)
	}
	msg := env.sink.Messages()[0]
	if msg.Title != "2026-03-02 的奏折" || msg.Subtitle != "AI 技术早报 · 获取失败" {
		t.Errorf("diagnostic = %+v", msg)
	}
	if !strings.Contains(msg.Body, "最后错误：") || !strings.Contains(msg.Body, "netNode") {
		t.Errorf("diagnostic body = %q", msg.Body)
	}
}

func TestNews_ReplaysCache(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on(mirrorURL, unreachable).on(pageURL, unreachable)
	cache := ledger.NewRenderCache(env.state, newsRenderKey)
	rendered := time.Date(2026, 3, 1, 8, 30, 0, 0, time.Local)
	if err := cache.Write(context.Background(), models.RenderRecord{
		Timestamp: rendered,
		Title:     "2026-03-01 的奏折",
		Subtitle:  "AI 技术早报 · 重点 2 / 9",
		Body:      "yesterday",
		URL:       "https://www.aicpb.com/news/2026-03-01",
	}); err != nil {
		t.Fatal(err)
	}

	out, err := newsJob().Run(context.Background(), env.Env, "")
	if err == nil {
		t.Fatal("Run() should report the fetch failure")
	}
	if !out.Cached || out.Sent != 1 {
		t.Errorf("outcome = %+v", out)
	}
	msg := env.sink.Messages()[0]
	if msg.Body != "yesterday" || msg.Subtitle != "AI 技术早报 · 重点 2 / 9 · 缓存 03-01 08:30" {
		t.Errorf("replayed = %+v", msg)
	}
}
