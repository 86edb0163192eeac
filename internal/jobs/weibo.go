package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hoanghai1803/pushkit/internal/args"
	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/rank"
	"github.com/hoanghai1803/pushkit/internal/weibo"
)

const weiboJobTitle = "微博超话签到"

var weiboRouteField = args.Field{Keys: []string{"netNode", "node"}, Setting: "netNode"}

// Weibo checks in to the followed super topics of the captured session.
type Weibo struct {
	Config config.WeiboConfig
	// APIBase overrides the app API host.
	APIBase string
}

func (j *Weibo) Name() string        { return "weibo" }
func (j *Weibo) Description() string { return "微博超话签到：依次签到关注的超话并汇总结果" }

// Run signs at most MaxTopics topics, pausing SignDelay between them.
// Transport errors are retried; an expired session stops the run.
func (j *Weibo) Run(ctx context.Context, env *Env, argument string) (Outcome, error) {
	r := args.NewResolver(args.Parse(argument, ""), env.Settings)
	route := weiboRouteField
	route.Default = j.Config.Route

	session, err := weibo.LoadSession(ctx, env.State)
	if err != nil {
		sent := env.send(ctx, models.Message{Title: weiboJobTitle, Subtitle: "失败", Body: "未获取到Cookie，请先打开微博APP抓取Cookie"})
		return Outcome{Sent: sent}, err
	}
	slog.Info("weibo session", "uid", session.UID, "captured", session.UpdatedAt)

	client := weibo.NewClient(env.HTTP, r.Route(ctx, route), j.APIBase)
	topics, err := client.Topics(ctx, session)
	if err != nil {
		return Outcome{Sent: env.send(ctx, weiboFailure(err))}, err
	}
	if len(topics) == 0 {
		sent := env.send(ctx, models.Message{Title: weiboJobTitle, Subtitle: "提示", Body: "未找到关注的超话，请先在微博APP中关注一些超话"})
		return Outcome{Sent: sent}, nil
	}

	limit := len(topics)
	if j.Config.MaxTopics > 0 {
		limit = min(limit, j.Config.MaxTopics)
	}
	slog.Info("signing weibo topics", "found", len(topics), "signing", limit)

	var tally weibo.Tally
	for i, t := range topics[:limit] {
		if i > 0 {
			if err := env.sleep(ctx, j.Config.SignDelay); err != nil {
				return Outcome{}, err
			}
		}
		outcome, err := j.sign(ctx, client, session, t)
		if errors.Is(err, weibo.ErrSessionExpired) {
			return Outcome{Sent: env.send(ctx, weiboFailure(err))}, err
		}
		tally.Add(t.Name, outcome)
	}

	sent := env.send(ctx, models.Message{
		Title:    "微博超话签到完成",
		Subtitle: fmt.Sprintf("共处理 %d 个超话", tally.Total()),
		Body:     tally.Body(),
	})
	return Outcome{Sent: sent}, nil
}

func (j *Weibo) sign(ctx context.Context, client *weibo.Client, s weibo.Session, t weibo.Topic) (weibo.Outcome, error) {
	var (
		outcome = weibo.Failed
		msg     string
	)
	err := rank.Retry(ctx, j.Config.MaxRetry+1, j.Config.RetryDelay, func(ctx context.Context) error {
		var err error
		outcome, msg, err = client.Sign(ctx, s, t)
		if errors.Is(err, weibo.ErrSessionExpired) {
			return rank.Permanent(err)
		}
		if err != nil {
			slog.Warn("weibo sign attempt failed", "topic", t.Name, "error", err)
		}
		return err
	})
	if errors.Is(err, weibo.ErrSessionExpired) {
		return weibo.Failed, weibo.ErrSessionExpired
	}
	if err != nil {
		slog.Warn("weibo sign failed", "topic", t.Name, "error", err)
		return weibo.Failed, nil
	}
	slog.Info("weibo sign", "topic", t.Name, "outcome", outcome, "msg", msg)
	return outcome, nil
}

func weiboFailure(err error) models.Message {
	if errors.Is(err, weibo.ErrSessionExpired) {
		return models.Message{Title: weiboJobTitle, Subtitle: "登录失效", Body: "登录失效，请重新打开微博APP抓取Cookie"}
	}
	return models.Message{Title: weiboJobTitle, Subtitle: "执行出错", Body: err.Error()}
}
