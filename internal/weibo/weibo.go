// Package weibo lists the followed super topics of a captured app session
// and checks in to each one.
package weibo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hoanghai1803/pushkit/internal/coerce"
	"github.com/hoanghai1803/pushkit/internal/fetch"
	"github.com/hoanghai1803/pushkit/internal/kv"
)

// SessionKey is the state key the captured session is stored under.
const SessionKey = "weibo.session.v1"

const (
	defaultBase = "https://api.weibo.cn"
	appAgent    = "Weibo/70.0.0 (iPhone; iOS 16.0; Scale/3.00)"
	checkinURL  = "http://i.huati.weibo.com/mobile/super/active_checkin"

	errnoSessionExpired = "100001"
)

var (
	// ErrNoSession is returned when no session has been captured yet.
	ErrNoSession = errors.New("no weibo session captured")
	// ErrSessionExpired is returned when the API rejects the session.
	ErrSessionExpired = errors.New("weibo session expired")
)

// Session is the app login state captured from intercepted requests.
type Session struct {
	Cookie    string    `json:"cookie"`
	GSID      string    `json:"gsid"`
	UID       string    `json:"uid"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadSession reads the stored session. A missing or corrupt value returns
// ErrNoSession.
func LoadSession(ctx context.Context, store kv.Store) (Session, error) {
	raw, ok, err := store.Read(ctx, SessionKey)
	if err != nil {
		return Session{}, fmt.Errorf("reading weibo session: %w", err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return Session{}, ErrNoSession
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.GSID == "" {
		return Session{}, fmt.Errorf("%w: stored value is unreadable", ErrNoSession)
	}
	return s, nil
}

// SaveSession stores s.
func SaveSession(ctx context.Context, store kv.Store, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding weibo session: %w", err)
	}
	if err := store.Write(ctx, SessionKey, string(data)); err != nil {
		return fmt.Errorf("writing weibo session: %w", err)
	}
	return nil
}

// Topic is one followed super topic.
type Topic struct {
	Name        string
	ContainerID string
}

// Outcome classifies a check-in response.
type Outcome int

const (
	Failed Outcome = iota
	Signed
	Repeat
)

func (o Outcome) String() string {
	switch o {
	case Signed:
		return "signed"
	case Repeat:
		return "repeat"
	default:
		return "failed"
	}
}

// Client talks to the app API.
type Client struct {
	http  fetch.Doer
	route string
	base  string
}

// NewClient returns a Client sending requests on route. An empty base uses
// the public API host.
func NewClient(d fetch.Doer, route, base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{http: d, route: route, base: strings.TrimRight(base, "/")}
}

type apiStatus struct {
	Errno  coerce.Text `json:"errno"`
	ErrMsg coerce.Text `json:"errmsg"`
}

type cardList struct {
	apiStatus
	Cards []struct {
		CardGroup []struct {
			TitleSub string `json:"title_sub"`
			Scheme   string `json:"scheme"`
		} `json:"card_group"`
	} `json:"cards"`
}

var containerRe = regexp.MustCompile(`containerid=(\d+)`)

// Topics returns the followed super topics in list order.
func (c *Client) Topics(ctx context.Context, s Session) ([]Topic, error) {
	q := url.Values{"containerid": {"100803_-_followsuper"}, "gsid": {s.GSID}, "uid": {s.UID}}
	res, err := fetch.Fetch(ctx, c.http, fetch.Request{
		URL:     c.base + "/2/cardlist?" + q.Encode(),
		Headers: c.headers(s),
		Route:   c.route,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching topic list: %w", err)
	}

	var list cardList
	if err := json.Unmarshal([]byte(res.Body), &list); err != nil {
		return nil, fmt.Errorf("decoding topic list: %w", err)
	}
	if list.Errno == errnoSessionExpired {
		return nil, ErrSessionExpired
	}

	var topics []Topic
	for _, card := range list.Cards {
		for _, item := range card.CardGroup {
			if item.TitleSub == "" || item.Scheme == "" {
				continue
			}
			if m := containerRe.FindStringSubmatch(item.Scheme); m != nil {
				topics = append(topics, Topic{Name: item.TitleSub, ContainerID: m[1]})
			}
		}
	}
	return topics, nil
}

type checkinResponse struct {
	apiStatus
	Result coerce.Text `json:"result"`
	Msg    coerce.Text `json:"msg"`
}

// Sign checks in to t. A non-nil error means the request did not produce a
// readable answer and may be retried; ErrSessionExpired is the exception.
// Business-level refusals are reported as Failed with the server's message.
func (c *Client) Sign(ctx context.Context, s Session, t Topic) (Outcome, string, error) {
	q := url.Values{"gsid": {s.GSID}, "uid": {s.UID}}
	headers := c.headers(s)
	headers["Content-Type"] = "application/x-www-form-urlencoded"

	res, err := fetch.Fetch(ctx, c.http, fetch.Request{
		URL:     c.base + "/2/page/button?" + q.Encode(),
		Method:  http.MethodPost,
		Headers: headers,
		Form:    map[string]string{"containerid": t.ContainerID, "request_url": checkinURL},
		Route:   c.route,
	})
	if err != nil {
		return Failed, "", fmt.Errorf("signing %s: %w", t.Name, err)
	}

	var r checkinResponse
	if err := json.Unmarshal([]byte(res.Body), &r); err != nil {
		return Failed, "unreadable response", nil
	}
	outcome, msg := classify(r)
	if outcome == Failed && r.Errno == errnoSessionExpired {
		return Failed, msg, ErrSessionExpired
	}
	return outcome, msg, nil
}

func classify(r checkinResponse) (Outcome, string) {
	msg := r.Msg.String()
	switch {
	case r.Result.Int(0) == 1 || strings.Contains(msg, "成功"):
		return Signed, msg
	case strings.Contains(msg, "已签到") || strings.Contains(msg, "已签过") || strings.Contains(msg, "重复"):
		return Repeat, msg
	}
	if msg == "" {
		msg = r.ErrMsg.String()
	}
	if msg == "" {
		msg = "未知错误"
	}
	return Failed, msg
}

func (c *Client) headers(s Session) map[string]string {
	h := map[string]string{
		"User-Agent": appAgent,
		"Accept":     "application/json",
	}
	if s.Cookie != "" {
		h["Cookie"] = s.Cookie
	}
	return h
}
