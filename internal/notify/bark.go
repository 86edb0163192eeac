package notify

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// BarkOptions configures the Bark push sink.
type BarkOptions struct {
	Server    string
	DeviceKey string
	Group     string
	Timeout   time.Duration
}

// Bark posts messages to a Bark push server, which forwards them to an iOS
// device. The open URL is attached as the notification's tap action.
type Bark struct {
	opts   BarkOptions
	client *resty.Client
}

type barkRequest struct {
	DeviceKey string `json:"device_key"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	Body      string `json:"body"`
	URL       string `json:"url,omitempty"`
	Group     string `json:"group,omitempty"`
}

type barkResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewBark creates a Bark sink.
func NewBark(opts BarkOptions) *Bark {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.Server = strings.TrimRight(opts.Server, "/")
	return &Bark{
		opts:   opts,
		client: resty.New().SetTimeout(opts.Timeout),
	}
}

func (b *Bark) Post(ctx context.Context, msg models.Message) error {
	var out barkResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(barkRequest{
			DeviceKey: b.opts.DeviceKey,
			Title:     msg.Title,
			Subtitle:  msg.Subtitle,
			Body:      msg.Body,
			URL:       msg.OpenURL,
			Group:     b.opts.Group,
		}).
		SetResult(&out).
		Post(b.opts.Server + "/push")
	if err != nil {
		return errorf("bark push: %w", err)
	}
	if resp.IsError() {
		return errorf("bark push: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Code != 0 && out.Code != 200 {
		return errorf("bark push: code %d: %s", out.Code, out.Message)
	}
	return nil
}
