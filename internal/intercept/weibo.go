package intercept

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/hoanghai1803/pushkit/internal/kv"
	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/notify"
	"github.com/hoanghai1803/pushkit/internal/weibo"
)

var (
	weiboHostRe = regexp.MustCompile(`api\.weibo\.cn`)
	gsidRe      = regexp.MustCompile(`(?:\?|&)gsid=([^&]+)`)
	uidRe       = regexp.MustCompile(`(?:\?|&)uid=(\d+)`)
)

const (
	weiboTitle = "微博超话Cookie"
	// missWindow limits how often a request without gsid is reported.
	missWindow = time.Minute
)

// WeiboObserver stores the app session from requests to api.weibo.cn.
type WeiboObserver struct {
	State  kv.Store
	Notify notify.Sink
	Now    func() time.Time

	mu       sync.Mutex
	lastMiss time.Time
}

var _ Observer = (*WeiboObserver)(nil)

func (o *WeiboObserver) Name() string { return "weibo" }

func (o *WeiboObserver) Match(r Request) bool {
	return weiboHostRe.MatchString(r.URL)
}

// Observe captures gsid, uid and cookie. A notification is posted only when
// the stored session changes, since the app sends many requests per screen.
// A request without gsid posts a hint at most once per missWindow.
func (o *WeiboObserver) Observe(ctx context.Context, r Request) (bool, error) {
	m := gsidRe.FindStringSubmatch(r.URL)
	if m == nil {
		slog.Debug("weibo request without gsid", "url", redact(r.URL))
		if o.reportMiss() {
			notify.Send(notify.WithJob(ctx, "weibo-capture"), o.Notify, models.Message{
				Title:    weiboTitle,
				Subtitle: "⚠️ 未获取到 gsid",
				Body:     "请进入“我的超话”列表页再试",
			})
		}
		return false, nil
	}

	s := weibo.Session{GSID: m[1], Cookie: r.Header("Cookie"), UpdatedAt: o.now()}
	if u := uidRe.FindStringSubmatch(r.URL); u != nil {
		s.UID = u[1]
	}

	prev, err := weibo.LoadSession(ctx, o.State)
	if err != nil && !errors.Is(err, weibo.ErrNoSession) {
		return false, err
	}
	if err == nil && prev.GSID == s.GSID && prev.UID == s.UID && prev.Cookie == s.Cookie {
		return false, nil
	}

	if err := weibo.SaveSession(ctx, o.State, s); err != nil {
		return false, err
	}

	uid := s.UID
	if uid == "" {
		uid = "未知"
	}
	notify.Send(notify.WithJob(ctx, "weibo-capture"), o.Notify, models.Message{
		Title:    weiboTitle,
		Subtitle: "获取成功",
		Body:     "UID: " + uid + "\n更新时间: " + s.UpdatedAt.Format(time.DateTime),
	})
	slog.Info("captured weibo session", "uid", s.UID, "cookie", s.Cookie != "")
	return true, nil
}

func (o *WeiboObserver) reportMiss() bool {
	now := o.now()
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.lastMiss.IsZero() && now.Sub(o.lastMiss) < missWindow {
		return false
	}
	o.lastMiss = now
	return true
}

func (o *WeiboObserver) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
