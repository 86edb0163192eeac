// Package present renders ranked items into notification messages that fit
// the display budget of a phone notification.
package present

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hoanghai1803/pushkit/internal/ledger"
	"github.com/hoanghai1803/pushkit/internal/models"
)

// DefaultBudget is the number of runes a message body may hold before it is
// clipped.
const DefaultBudget = 400

const ellipsis = "…"

// Presenter builds messages. The zero value uses DefaultBudget and the
// local clock.
type Presenter struct {
	Budget int
	Now    func() time.Time
}

// New creates a Presenter with the given body budget.
func New(budget int) *Presenter {
	return &Presenter{Budget: budget}
}

func (p *Presenter) budget() int {
	if p == nil || p.Budget <= 0 {
		return DefaultBudget
	}
	return p.Budget
}

func (p *Presenter) now() time.Time {
	if p == nil || p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Today formats the current date the way titles show it.
func (p *Presenter) Today() string {
	return p.now().Format(time.DateOnly)
}

// fit clips the body of msg to the budget.
func (p *Presenter) fit(msg models.Message) models.Message {
	msg.Body = Clip(msg.Body, p.budget())
	return msg
}

// Clip shortens s to at most budget runes, cutting at a line boundary when
// one is close and marking the cut with an ellipsis.
func Clip(s string, budget int) string {
	s = strings.TrimSpace(s)
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:budget-1])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 && utf8.RuneCountInString(cut[:i]) > budget*3/4 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n") + ellipsis
}

// Record captures msg for the render cache.
func (p *Presenter) Record(msg models.Message) models.RenderRecord {
	return models.RenderRecord{
		Timestamp: p.now().UTC(),
		Title:     msg.Title,
		Subtitle:  msg.Subtitle,
		Body:      msg.Body,
		URL:       msg.OpenURL,
	}
}

// Failure describes a pipeline-wide fetch failure.
type Failure struct {
	Title string
	// Subtitle is used for the diagnostic when there is no cache.
	Subtitle string
	// Hint is prepended to the last error in the diagnostic body.
	Hint    string
	OpenURL string
	Err     error
}

// Fallback renders the message sent when every source failed: the cached
// render replayed with its subtitle marked as cached, or a diagnostic
// carrying the last error when the cache is empty. It reports whether the
// cache was used.
func (p *Presenter) Fallback(ctx context.Context, cache *ledger.RenderCache, f Failure) (models.Message, bool) {
	if cache != nil {
		if rec, ok := cache.Read(ctx); ok {
			return Cached(rec, f.Title), true
		}
	}

	var b strings.Builder
	if f.Hint != "" {
		b.WriteString(f.Hint)
		b.WriteString("\n\n")
	}
	b.WriteString("最后错误：")
	if f.Err != nil {
		b.WriteString(f.Err.Error())
	}
	return p.fit(models.Message{
		Title:    f.Title,
		Subtitle: f.Subtitle,
		Body:     b.String(),
		OpenURL:  f.OpenURL,
	}), false
}

// Cached replays rec. Title, body and link are kept as stored; the subtitle
// gains a cached marker with the render time.
func Cached(rec models.RenderRecord, defaultTitle string) models.Message {
	title := rec.Title
	if title == "" {
		title = defaultTitle
	}
	subtitle := "缓存"
	if rec.Subtitle != "" {
		subtitle = rec.Subtitle + " · 缓存"
	}
	if !rec.Timestamp.IsZero() {
		subtitle += " " + rec.Timestamp.Local().Format("01-02 15:04")
	}
	return models.Message{
		Title:    title,
		Subtitle: subtitle,
		Body:     rec.Body,
		OpenURL:  rec.URL,
	}
}
