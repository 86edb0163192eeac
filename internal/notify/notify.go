// Package notify delivers rendered messages to notification sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// Sink posts one message. Delivery is fire-and-forget: an error means the
// message was not accepted, and callers log it rather than abort.
type Sink interface {
	Post(ctx context.Context, msg models.Message) error
}

type jobKey struct{}

// WithJob tags ctx with the job whose messages flow through it.
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, jobKey{}, job)
}

// JobFrom returns the job tag of ctx, or "" when untagged.
func JobFrom(ctx context.Context) string {
	job, _ := ctx.Value(jobKey{}).(string)
	return job
}

// Log writes messages to the structured log.
type Log struct{}

func (Log) Post(ctx context.Context, msg models.Message) error {
	slog.Info("notification",
		"job", JobFrom(ctx),
		"title", msg.Title,
		"subtitle", msg.Subtitle,
		"body", msg.Body,
		"url", msg.OpenURL,
	)
	return nil
}

// Multi fans a message out to every sink. All sinks are tried; the joined
// error of the failing ones is returned.
type Multi []Sink

func (m Multi) Post(ctx context.Context, msg models.Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Post(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every posted message in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (r *Recorder) Post(_ context.Context, msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

// Messages returns a copy of the recorded messages in posting order.
func (r *Recorder) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.msgs...)
}

// Send posts msg and logs a failure instead of returning it. It reports
// whether the sink accepted the message.
func Send(ctx context.Context, s Sink, msg models.Message) bool {
	if err := s.Post(ctx, msg); err != nil {
		slog.Warn("posting notification failed", "job", JobFrom(ctx), "title", msg.Title, "error", err)
		return false
	}
	return true
}

// SendAll posts each message in order and returns how many were accepted.
func SendAll(ctx context.Context, s Sink, msgs []models.Message) int {
	sent := 0
	for _, m := range msgs {
		if Send(ctx, s, m) {
			sent++
		}
	}
	return sent
}

// errorf prefixes sink errors with the package name.
func errorf(format string, args ...any) error {
	return fmt.Errorf("notify: "+format, args...)
}
