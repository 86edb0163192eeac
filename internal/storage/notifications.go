package storage

import (
	"context"
	"fmt"

	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/notify"
)

var _ notify.Sink = (*Store)(nil)

// Post records msg in the notification log under the job tagged on ctx.
func (s *Store) Post(ctx context.Context, msg models.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (job, title, subtitle, body, open_url, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		notify.JobFrom(ctx), msg.Title, msg.Subtitle, msg.Body, msg.OpenURL, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// RecentNotifications returns the latest notifications, newest first. An
// empty job matches every job.
func (s *Store) RecentNotifications(ctx context.Context, job string, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job, title, subtitle, body, open_url, sent_at
		 FROM notifications
		 WHERE ? = '' OR job = ?
		 ORDER BY sent_at DESC, id DESC
		 LIMIT ?`, job, job, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var (
			n      models.Notification
			sentAt string
		)
		if err := rows.Scan(&n.ID, &n.Job, &n.Title, &n.Subtitle, &n.Body, &n.OpenURL, &sentAt); err != nil {
			return nil, fmt.Errorf("scanning notification row: %w", err)
		}
		n.SentAt = parseTime(sentAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification rows: %w", err)
	}
	return out, nil
}
