package jobs

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/hoanghai1803/pushkit/internal/config"
)

func trendingPage(stars ...int) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	for i, n := range stars {
		fmt.Fprintf(&b, `<article class="Box-row">
  <h2><a href="/owner%d/repo%d">owner%d / repo%d</a></h2>
  <p>Agent toolkit number %d</p>
  <span itemprop="programmingLanguage">Go</span>
  <a href="/owner%d/repo%d/stargazers">%d</a>
  <span>%d stars this week</span>
</article>
`, i, i, i, i, i, i, i, n, n/10)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestTrending_ChunksAndLedger(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on("https://github.com/trending", body(trendingPage(50, 500, 900, 20, 3000)))
	job := &Trending{Config: config.TrendingConfig{Since: "weekly", MinStars: 100, ChunkSize: 2}}

	out, err := job.Run(context.Background(), env.Env, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	msgs := env.sink.Messages()
	if out.Sent != 3 || len(msgs) != 3 {
		t.Fatalf("sent %d messages, want summary and two chunks", len(msgs))
	}
	if msgs[0].Title != "GitHub 热点周报（weekly）" || msgs[0].Subtitle != "抓取 5 | 过滤后 3 | 新推送 3 | minStars 100" {
		t.Errorf("summary = %+v", msgs[0])
	}
	if msgs[1].Subtitle != "Top 1-2" || !strings.HasPrefix(msgs[1].Body, "1. owner1/repo1（50 stars this week）") {
		t.Errorf("first chunk = %+v", msgs[1])
	}
	if msgs[2].Title != "GitHub 热点周报（weekly） (2/2)" || msgs[2].OpenURL != "https://github.com/owner4/repo4" {
		t.Errorf("second chunk = %+v", msgs[2])
	}
	if got := env.doer.requests("")[0]; got.URL != "https://github.com/trending?since=weekly" || !got.Strict {
		t.Errorf("request = %+v", got)
	}

	if _, err := job.Run(context.Background(), env.Env, ""); err != nil {
		t.Fatal(err)
	}
	repeat := env.sink.Messages()[3:]
	if len(repeat) != 1 || repeat[0].Subtitle != "暂无新项目（或均已推送过）" {
		t.Errorf("repeat run = %+v", repeat)
	}

	if _, err := job.Run(context.Background(), env.Env, "githubSince=daily&githubLang=go"); err != nil {
		t.Fatal(err)
	}
	scoped := env.sink.Messages()[4:]
	if len(scoped) != 3 {
		t.Errorf("new scope sent %d messages, want 3", len(scoped))
	}
	if last := env.doer.requests(""); last[len(last)-1].URL != "https://github.com/trending/go?since=daily" {
		t.Errorf("scoped request url = %q", last[len(last)-1].URL)
	}
}

func TestTrending_KeywordFilter(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on("https://github.com/trending", body(trendingPage(10, 20)))
	job := &Trending{Config: config.TrendingConfig{Since: "monthly"}}

	if _, err := job.Run(context.Background(), env.Env, "githubTopics=repo1"); err != nil {
		t.Fatal(err)
	}
	msgs := env.sink.Messages()
	if len(msgs) != 2 || !strings.Contains(msgs[0].Subtitle, "过滤后 1") {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestTrending_RequiresExactOK(t *testing.T) {
	env := newTestEnv(t)
	env.doer.on("https://github.com/trending", status(http.StatusNonAuthoritativeInfo))

	out, err := (&Trending{}).Run(context.Background(), env.Env, "githubSince=yearly")
	if err == nil {
		t.Fatal("Run() succeeded on HTTP 203")
	}
	msg := env.sink.Messages()[0]
	if out.Sent != 1 || msg.Title != "GitHub 热点周报失败" || msg.Subtitle != "HTTP 203" {
		t.Errorf("failure message = %+v", msg)
	}
	if msg.Body != "https://github.com/trending?since=weekly" {
		t.Errorf("invalid since should fall back to weekly, body = %q", msg.Body)
	}
}
