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
	trendingDeliveredKey = "trending.delivered.v1"
	trendingMaxDefault   = 15
)

// Positional indexes follow the plugin argument array layout.
var (
	trendingRouteField    = args.Field{Keys: []string{"netNode", "node", "0"}, Setting: "netNode"}
	trendingMinStarsField = args.Field{Keys: []string{"githubMinStars", "2"}, Setting: "githubMinStars"}
	trendingMaxField      = args.Field{Keys: []string{"githubMaxResults", "3"}, Setting: "githubMaxResults"}
	trendingTopicsField   = args.Field{Keys: []string{"githubTopics", "4"}, Setting: "githubTopics"}
	trendingSinceField    = args.Field{Keys: []string{"githubSince", "5"}, Setting: "githubSince"}
	trendingChunkField    = args.Field{Keys: []string{"githubChunkSize", "6"}, Setting: "githubChunkSize"}
	trendingLangField     = args.Field{Keys: []string{"githubLang", "7"}, Setting: "githubLang"}
)

// Trending pushes GitHub trending repositories that were not delivered
// before under the same filter.
type Trending struct {
	Config config.TrendingConfig
}

func (j *Trending) Name() string        { return "trending" }
func (j *Trending) Description() string { return "GitHub 热点：按星标与关键词筛选，分块推送新项目" }

type trendingParams struct {
	route     string
	minStars  int
	max       int
	keywords  []string
	since     string
	chunkSize int
	lang      string
}

func (j *Trending) resolve(ctx context.Context, env *Env, argument string) trendingParams {
	r := args.NewResolver(args.Parse(argument, ""), env.Settings)

	route := trendingRouteField
	route.Default = j.Config.Route
	lang := trendingLangField
	lang.Default = j.Config.Lang
	since := trendingSinceField
	since.Default = j.Config.Since

	maxDefault := j.Config.Max
	if maxDefault <= 0 {
		maxDefault = trendingMaxDefault
	}
	chunkDefault := j.Config.ChunkSize
	if chunkDefault <= 0 {
		chunkDefault = present.DefaultChunkSize
	}

	p := trendingParams{
		route:     r.Route(ctx, route),
		minStars:  r.Int(ctx, trendingMinStarsField, j.Config.MinStars, 0, 1<<30),
		max:       r.Int(ctx, trendingMaxField, maxDefault, 1, 100),
		keywords:  r.List(ctx, trendingTopicsField, j.Config.Topics),
		since:     strings.ToLower(r.String(ctx, since)),
		chunkSize: r.Int(ctx, trendingChunkField, chunkDefault, 1, 8),
		lang:      r.String(ctx, lang),
	}
	switch p.since {
	case "daily", "weekly", "monthly":
	default:
		p.since = "weekly"
	}
	return p
}

// Run scrapes the trending page, keeps repositories passing the star
// threshold and keyword filter that were not delivered under the same
// since/lang/keyword scope, and posts a summary plus chunked lists.
func (j *Trending) Run(ctx context.Context, env *Env, argument string) (Outcome, error) {
	params := j.resolve(ctx, env, argument)
	slog.Info("trending configuration",
		"since", params.since, "lang", params.lang, "min_stars", params.minStars,
		"max", params.max, "keywords", len(params.keywords), "chunk", params.chunkSize)

	p := env.presenter()
	pageURL := extract.TrendingURL(params.since, params.lang)

	res, err := fetch.Fetch(ctx, env.HTTP, fetch.Request{URL: pageURL, Route: params.route, Strict: true})
	if err != nil {
		return Outcome{Sent: env.send(ctx, trendingFailure(err, pageURL))}, fmt.Errorf("fetching trending page: %w", err)
	}
	repos, err := extract.Trending(extract.Source{Text: res.Body, BaseURL: "https://github.com"})
	if err != nil {
		return Outcome{Sent: env.send(ctx, trendingFailure(err, pageURL))}, fmt.Errorf("parsing trending page: %w", err)
	}

	langScope := params.lang
	if langScope == "" {
		langScope = "all"
	}
	scope := ledger.CacheKey("since", params.since, "lang", langScope, "kw", strings.Join(params.keywords, ","))
	delivered := ledger.NewDeliveryLedger(env.State, trendingDeliveredKey, ledger.DefaultLimit)

	filter := rank.Filter[models.RepoEntry]{
		Keywords: params.keywords,
		Pass:     func(r models.RepoEntry) bool { return r.Stars >= params.minStars },
		MaxFocus: params.max,
	}
	if seen, err := delivered.Seen(ctx, scope); err == nil {
		filter.Delivered = seen
	} else {
		slog.Warn("reading trending ledger failed", "error", err)
	}
	ranked := rank.Split(repos, filter)

	msgs := p.Trending(present.TrendingDigest{
		Since:     params.since,
		Lang:      params.lang,
		PageURL:   pageURL,
		MinStars:  params.minStars,
		Keywords:  len(params.keywords),
		Scraped:   len(repos),
		Matched:   ranked.FocusCount,
		Fresh:     ranked.Focus,
		ChunkSize: params.chunkSize,
	})
	sent := env.send(ctx, msgs...)

	if len(ranked.Focus) > 0 {
		keys := make([]string, len(ranked.Focus))
		for i, r := range ranked.Focus {
			keys[i] = r.DedupKey()
		}
		if err := delivered.Append(ctx, scope, keys); err != nil {
			slog.Warn("updating trending ledger failed", "error", err)
		}
	}
	return Outcome{Sent: sent}, nil
}

func trendingFailure(err error, pageURL string) models.Message {
	msg := models.Message{Title: "GitHub 热点周报失败", Body: err.Error(), OpenURL: pageURL}
	if se, ok := asStatusError(err); ok {
		msg.Subtitle = fmt.Sprintf("HTTP %d", se.Status)
		msg.Body = pageURL
	}
	return msg
}
