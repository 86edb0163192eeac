package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoanghai1803/pushkit/internal/args"
	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/extract"
	"github.com/hoanghai1803/pushkit/internal/fetch"
	"github.com/hoanghai1803/pushkit/internal/ledger"
	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/present"
	"github.com/hoanghai1803/pushkit/internal/rank"
)

const (
	newsRenderKey    = "news.render.v1"
	newsDeliveredKey = "news.delivered.v1"
	newsMaxLimit     = 50
	newsPageURL      = "https://www.aicpb.com/news"
	newsFailureHint  = "请求超时或网络不可达。\n建议在插件参数 netNode 填写可用的出海策略组，例如“节点选择”。"
)

var (
	newsRouteField    = args.Field{Keys: []string{"node", "netNode"}, Setting: "netNode"}
	newsMaxField      = args.Field{Keys: []string{"max", "aiMax"}, Setting: "aiMax"}
	newsKeywordsField = args.Field{Keys: []string{"kw", "aiKw"}, Setting: "aiKw"}
)

// News pushes the AI morning news: one summary and one message per
// keyword-matched headline.
type News struct {
	Config config.NewsConfig
}

func (j *News) Name() string        { return "news" }
func (j *News) Description() string { return "AI 技术早报：重点分条推送，其余汇总" }

type newsListing struct {
	report  extract.Report
	entries []models.NewsEntry
}

// Run resolves the effective route, limit and keywords, fetches the first
// source yielding headlines and posts the digest. When every source fails
// the last render is replayed, or a diagnostic is posted.
func (j *News) Run(ctx context.Context, env *Env, argument string) (Outcome, error) {
	eff := j.resolve(ctx, env, argument)
	slog.Info("news configuration", "config", eff)
	p := env.presenter()
	cache := ledger.NewRenderCache(env.State, newsRenderKey)

	listing, err := j.fetch(ctx, env, eff.Route)
	if err != nil {
		msg, cached := p.Fallback(ctx, cache, present.Failure{
			Title:    present.DailyTitle(p.Today()),
			Subtitle: "AI 技术早报 · 获取失败",
			Hint:     newsFailureHint,
			OpenURL:  newsPageURL,
			Err:      err,
		})
		return Outcome{Sent: env.send(ctx, msg), Cached: cached}, fmt.Errorf("fetching news: %w", err)
	}

	var delivered *ledger.DeliveryLedger
	var scope string
	filter := rank.Filter[models.NewsEntry]{Keywords: eff.Keywords, MaxFocus: eff.Max, MaxRest: len(listing.entries)}
	if j.Config.SkipDelivered {
		delivered = ledger.NewDeliveryLedger(env.State, newsDeliveredKey, ledger.DefaultLimit)
		scope = ledger.CacheKey("kw", strings.Join(eff.Keywords, ","))
		if seen, err := delivered.Seen(ctx, scope); err == nil {
			filter.Delivered = seen
		} else {
			slog.Warn("reading news ledger failed", "error", err)
		}
	}

	res := rank.Split(listing.entries, filter)
	rest := res.Rest
	if n := max(0, eff.Max-len(res.Focus)); len(rest) > n {
		rest = rest[:n]
	}

	summary, followups := p.News(present.NewsDigest{
		Date:       listing.report.Date,
		ReportURL:  listing.report.URL,
		Total:      res.Total(),
		FocusCount: res.FocusCount,
		Focus:      res.Focus,
		Rest:       rest,
	})
	if err := cache.Write(ctx, p.Record(summary)); err != nil {
		slog.Warn("writing news render cache failed", "error", err)
	}

	sent := env.send(ctx, summary)
	sent += env.send(ctx, followups...)

	if delivered != nil {
		keys := make([]string, 0, len(res.Focus)+len(rest))
		for _, it := range append(append([]models.NewsEntry(nil), res.Focus...), rest...) {
			keys = append(keys, it.DedupKey())
		}
		if err := delivered.Append(ctx, scope, keys); err != nil {
			slog.Warn("updating news ledger failed", "error", err)
		}
	}
	return Outcome{Sent: sent}, nil
}

func (j *News) resolve(ctx context.Context, env *Env, argument string) args.Effective {
	r := args.NewResolver(args.Parse(argument, "node"), env.Settings)

	maxField := newsMaxField
	maxField.Default = fmt.Sprint(j.Config.Max)
	routeField := newsRouteField
	routeField.Default = j.Config.Route

	return args.Effective{
		Route:    r.Route(ctx, routeField),
		Max:      r.Int(ctx, maxField, j.Config.Max, 1, newsMaxLimit),
		Keywords: r.List(ctx, newsKeywordsField, j.Config.Keywords),
	}
}

func (j *News) fetch(ctx context.Context, env *Env, route string) (newsListing, error) {
	candidates := make([]fetch.Request, 0, len(j.Config.Sources))
	for _, u := range j.Config.Sources {
		candidates = append(candidates, fetch.Request{URL: u, Route: route})
	}

	var report extract.Report
	entries, _, err := fetch.First(ctx, env.HTTP, candidates, func(res *fetch.Result) ([]models.NewsEntry, error) {
		rep := extract.ExtractReport(res.Body, res.URL)
		items, strategy := extract.News(extract.Source{Text: res.Body, BaseURL: rep.Base})
		if len(items) == 0 {
			return nil, nil
		}
		slog.Info("extracted news", "url", res.URL, "strategy", strategy, "items", len(items), "date", rep.Date)
		report = rep
		return items, nil
	})
	if err != nil {
		return newsListing{}, err
	}
	return newsListing{report: report, entries: entries}, nil
}
