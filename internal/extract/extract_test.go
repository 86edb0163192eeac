package extract

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/hoanghai1803/pushkit/internal/fetch"
	"github.com/hoanghai1803/pushkit/internal/models"
)

const markdownFixture = `Title: 每日AI早报

[2026-03-02 早报](https://www.aicpb.com/news/2026-03-02)

[1 . OpenAI 发布 GPT-5 新版本](https://www.aicpb.com/news/2026-03-02#1)
[2 . 短讯](https://www.aicpb.com/news/2026-03-02#2)
[3 . DeepSeek 开源推理框架
 新版本](https://www.aicpb.com/news/2026-03-02#3)
[not numbered link](https://www.aicpb.com/)
[4 . Anthropic 更新 Claude 工具调用](https://www.aicpb.com/news/2026-03-02#4)
`

const anchorFixture = `<html><body>
<a href="/news/2026-03-01">2026.03.01 早报</a>
<ul>
  <li><a href="/news/2026-03-01#1">1 . Claude 推出新的 Agent 工具</a></li>
  <li><a href="/news/2026-03-01#2">2 . abc</a></li>
  <li><a href="https://example.com/3"><span>3</span> . Gemini 更新多模态能力</a></li>
  <li><a>4 . 没有链接的条目不算数</a></li>
</ul>
</body></html>`

const feedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>AI</title>
<item><title>Mistral releases a new open model</title><link>https://example.com/a</link></item>
<item><title>tiny</title><link>https://example.com/b</link></item>
<item><title>Qwen adds tool calling support</title><link>/c</link></item>
</channel></rss>`

func TestNews_Markdown(t *testing.T) {
	items, strategy := News(Source{Text: markdownFixture, BaseURL: "https://www.aicpb.com"})
	if strategy != "markdown" {
		t.Errorf("strategy = %q, want markdown", strategy)
	}

	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.Text
	}
	want := []string{"OpenAI 发布 GPT-5 新版本", "DeepSeek 开源推理框架 新版本", "Anthropic 更新 Claude 工具调用"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("News() texts mismatch (-want +got):\n%s", diff)
	}
	for _, it := range items {
		if it.DedupKey() == "" {
			t.Errorf("item %q has empty dedup key", it.Text)
		}
	}
	if items[1].Index != 3 || items[1].URL != "https://www.aicpb.com/news/2026-03-02#3" {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestNews_AnchorFallback(t *testing.T) {
	items, strategy := News(Source{Text: anchorFixture, BaseURL: "https://www.aicpb.com"})
	if strategy != "anchor" {
		t.Fatalf("strategy = %q, want anchor", strategy)
	}
	want := []models.NewsEntry{
		{
			Entry: models.Entry{Name: "Claude 推出新的 Agent 工具", Key: "claude 推出新的 agent 工具", URL: "https://www.aicpb.com/news/2026-03-01#1"},
			Index: 1,
			Text:  "Claude 推出新的 Agent 工具",
		},
		{
			Entry: models.Entry{Name: "Gemini 更新多模态能力", Key: "gemini 更新多模态能力", URL: "https://example.com/3"},
			Index: 3,
			Text:  "Gemini 更新多模态能力",
		},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("News() mismatch (-want +got):\n%s", diff)
	}
}

func TestNews_FeedFallback(t *testing.T) {
	items, strategy := News(Source{Text: feedFixture, BaseURL: "https://example.com"})
	if strategy != "feed" {
		t.Fatalf("strategy = %q, want feed", strategy)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[1].URL != "https://example.com/c" || items[1].Index != 3 {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestNews_FirstStrategyWins(t *testing.T) {
	// Markdown and anchor entries both present: only the markdown ones count.
	text := markdownFixture + "\n" + anchorFixture
	items, strategy := News(Source{Text: text, BaseURL: "https://www.aicpb.com"})
	if strategy != "markdown" || len(items) != 3 {
		t.Errorf("News() = %d items via %q, want 3 via markdown", len(items), strategy)
	}
}

func TestNews_DuplicatedFixtureCollapses(t *testing.T) {
	once, _ := News(Source{Text: markdownFixture})
	twice, _ := News(Source{Text: markdownFixture + markdownFixture})
	if len(once) != len(twice) {
		t.Errorf("len(twice) = %d, want %d", len(twice), len(once))
	}
}

func TestNews_NothingFound(t *testing.T) {
	items, strategy := News(Source{Text: "<html><body><p>maintenance</p></body></html>"})
	if len(items) != 0 || strategy != "" {
		t.Errorf("News() = %v via %q, want nothing", items, strategy)
	}
}

func TestExtractReport(t *testing.T) {
	tests := []struct {
		name, text, url string
		want            Report
	}{
		{
			"date in body",
			`<a href="/news/2026-03-02">today</a>`,
			"https://www.aicpb.com/news",
			Report{Date: "2026-03-02", Label: "2026.03.02", URL: "https://www.aicpb.com/news/2026-03-02", Base: "https://www.aicpb.com"},
		},
		{
			"cn mirror",
			"(https://www.aicpb.cn/news/2026-03-02)",
			"https://r.jina.ai/https://www.aicpb.cn/news",
			Report{Date: "2026-03-02", Label: "2026.03.02", URL: "https://www.aicpb.cn/news/2026-03-02", Base: "https://www.aicpb.cn"},
		},
		{
			"date from url",
			"no date here",
			"https://www.aicpb.com/news/2026-02-28",
			Report{Date: "2026-02-28", Label: "2026.02.28", URL: "https://www.aicpb.com/news/2026-02-28", Base: "https://www.aicpb.com"},
		},
		{
			"unknown",
			"nothing",
			"https://www.aicpb.com/news",
			Report{URL: "https://www.aicpb.com/news", Base: "https://www.aicpb.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ExtractReport(tt.text, tt.url)); diff != "" {
				t.Errorf("ExtractReport() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

const trendingFixture = `<html><body>
<article class="Box-row">
  <h2 class="h3 lh-condensed"><a href="/deepseek-ai/ DeepSeek-V3" class="Link">deepseek-ai / DeepSeek-V3</a></h2>
  <p class="col-9 color-fg-muted my-1 pr-4">
    Strong   mixture-of-experts &amp; reasoning model
  </p>
  <div class="f6 color-fg-muted mt-2">
    <span itemprop="programmingLanguage">Python</span>
    <a href="/deepseek-ai/DeepSeek-V3/stargazers" class="Link"> <svg></svg> 95,123</a>
    <a href="/deepseek-ai/DeepSeek-V3/forks">12,000</a>
    <span class="d-inline-block float-sm-right">3,210 stars this   week</span>
  </div>
</article>
<article class="Box-row">
  <h2><a href="/acme/tool">acme / tool</a></h2>
  <div><a href="/acme/tool/stargazers">n/a</a></div>
</article>
<article class="Box-row"><p>sponsored block without a repository link</p></article>
<article class="Box-row">
  <h2><a href="/DeepSeek-AI/deepseek-v3">duplicate</a></h2>
</article>
</body></html>`

func TestTrending(t *testing.T) {
	repos, err := Trending(Source{Text: trendingFixture})
	if err != nil {
		t.Fatalf("Trending() error: %v", err)
	}
	want := []models.RepoEntry{
		{
			Entry:       models.Entry{Name: "deepseek-ai/DeepSeek-V3", Key: "deepseek-ai/deepseek-v3", URL: "https://github.com/deepseek-ai/DeepSeek-V3"},
			Stars:       95123,
			Language:    "Python",
			Growth:      "3,210 stars this week",
			Description: "Strong mixture-of-experts & reasoning model",
		},
		{
			Entry: models.Entry{Name: "acme/tool", Key: "acme/tool", URL: "https://github.com/acme/tool"},
		},
	}
	if diff := cmp.Diff(want, repos); diff != "" {
		t.Errorf("Trending() mismatch (-want +got):\n%s", diff)
	}
}

func TestTrendingURL(t *testing.T) {
	if got := TrendingURL("weekly", ""); got != "https://github.com/trending?since=weekly" {
		t.Errorf("TrendingURL() = %q", got)
	}
	if got := TrendingURL("daily", "c++"); got != "https://github.com/trending/c++?since=daily" {
		t.Errorf("TrendingURL(c++) = %q", got)
	}
}

const tencentFixture = `v_sh000001="1~ÉÏÖ¤Ö¸Êý~000001~3350.12~3300.00~3310.00~";
v_s_usAAPL="200~Æ»¹û~AAPL.OQ~190.50~2.50~1.33~";
v_usAAPL="200~Æ»¹û~AAPL.OQ~190.50~188.00~189.00~";
v_s_usTSLA="200~特斯拉~TSLA.OQ~250.00~-5.00~-1.96~";
v_hk00700="100~ÌÚÑ¶¿Ø¹É~00700~400.00~0~390.00~";
v_sz000002="51~万科A~000002~0~8.00~8.10~";
v_pv_none_match="1";
garbage line`

func TestTencent(t *testing.T) {
	quotes := Tencent(tencentFixture)

	var keys []string
	for _, q := range quotes {
		keys = append(keys, q.Key)
	}
	if diff := cmp.Diff([]string{"sh000001", "hk00700", "usaapl", "ustsla"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	idx := quotes[0]
	if idx.Name != "上证指数" || idx.Currency != models.Point || idx.Basis != models.BasisPrevClose {
		t.Errorf("index quote = %+v", idx)
	}
	if math.Abs(idx.Change-50.12) > 1e-9 {
		t.Errorf("index change = %v, want 50.12", idx.Change)
	}

	hk := quotes[1]
	if hk.Name != "腾讯控股" || hk.Currency != models.HKD || hk.Basis != models.BasisOpen || !hk.Degraded() {
		t.Errorf("hk quote = %+v", hk)
	}

	aapl := quotes[2]
	if aapl.Name != "苹果" || aapl.Symbol != "AAPL" || aapl.Open != 189 || aapl.Note != "" {
		t.Errorf("full US row must replace the simple one: %+v", aapl)
	}

	tsla := quotes[3]
	if tsla.Note != SimpleRowNote || tsla.PrevClose != 255 || tsla.ChangePct != -1.96 || tsla.Basis != models.BasisPrevClose {
		t.Errorf("simple US row = %+v", tsla)
	}
}

func TestTencent_GBKResponse(t *testing.T) {
	name, err := simplifiedchinese.GBK.NewEncoder().String("贵州茅台")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=GBK")
		fmt.Fprintf(w, "v_sh600519=\"1~%s~600519~1700.00~1683.00~1690.00~\";\n", name)
	}))
	defer srv.Close()

	res, err := fetch.Fetch(context.Background(), fetch.NewClient(fetch.Options{}), fetch.Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	quotes := Tencent(res.Body)
	if len(quotes) != 1 {
		t.Fatalf("got %d quotes, want 1", len(quotes))
	}
	if got := quotes[0].Name; got != "贵州茅台" {
		t.Errorf("name = %q, want 贵州茅台", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		code, name, symbol, want string
	}{
		{"sz399001", "whatever", "399001", "深证成指"},
		{"usAAPL", "Æ»¹û", "AAPL", "苹果"},
		{"usMSFT", "��", "MSFT", "MSFT"},
		{"usMSFT", "Microsoft", "MSFT", "Microsoft"},
		{"sh600519", "", "", "600519"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.code, tt.name, tt.symbol); got != tt.want {
			t.Errorf("DisplayName(%q, %q, %q) = %q, want %q", tt.code, tt.name, tt.symbol, got, tt.want)
		}
	}
}

func TestFund(t *testing.T) {
	body := `jsonpgz({"fundcode":"012414","name":"招商中证白酒指数(LOF)C","jzrq":"2026-02-27","dwjz":"0.8123","gsz":"0.8200","gszzl":"0.95","gztime":"2026-03-02 14:00"});`
	got, err := Fund("012414", body)
	if err != nil {
		t.Fatalf("Fund() error: %v", err)
	}
	want := models.FundEntry{
		Entry:       models.Entry{Name: "招商中证白酒指数(LOF)C", Key: "fund:012414"},
		Code:        "012414",
		Estimate:    0.82,
		EstimatePct: 0.95,
		ValuedAt:    "2026-03-02 14:00",
		NavDate:     "2026-02-27",
		Nav:         0.8123,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fund() mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"jsonpgz();", `jsonpgz({"gsz":""});`, "<html>blocked</html>"} {
		if _, err := Fund("012414", bad); err == nil {
			t.Errorf("Fund(%q) error = nil, want error", bad)
		}
	}
}

func TestFundURL(t *testing.T) {
	if got := FundURL("012414", 42); got != "https://fundgz.1234567.com.cn/js/012414.js?rt=42" {
		t.Errorf("FundURL() = %q", got)
	}
}

func TestSortQuotesStable(t *testing.T) {
	qs := []models.QuoteEntry{
		{Entry: models.Entry{Key: "us1"}, Market: models.MarketUS},
		{Entry: models.Entry{Key: "cn1"}, Market: models.MarketCN},
		{Entry: models.Entry{Key: "us2"}, Market: models.MarketUS},
		{Entry: models.Entry{Key: "hk1"}, Market: models.MarketHK},
		{Entry: models.Entry{Key: "cn2"}, Market: models.MarketCN},
	}
	SortQuotes(qs)
	var keys []string
	for _, q := range qs {
		keys = append(keys, q.Key)
	}
	if got := strings.Join(keys, ","); got != "cn1,cn2,hk1,us1,us2" {
		t.Errorf("order = %s", got)
	}
}

func TestRepairGarbled(t *testing.T) {
	if got, ok := RepairGarbled("ÌÚÑ¶¿Ø¹É"); !ok || got != "腾讯控股" {
		t.Errorf("RepairGarbled() = (%q, %v)", got, ok)
	}
	raw, _ := simplifiedchinese.GBK.NewEncoder().String("腾讯控股")
	if got, ok := RepairGarbled(raw); !ok || got != "腾讯控股" {
		t.Errorf("RepairGarbled(raw GBK) = (%q, %v)", got, ok)
	}
	if _, ok := RepairGarbled("Apple Inc"); ok {
		t.Error("plain ASCII must not be reported as repaired")
	}
	if !LooksGarbled("Æ»¹û") || LooksGarbled("苹果") || LooksGarbled("Apple") {
		t.Error("LooksGarbled() misclassified input")
	}
}
