package models

import "time"

// Message is one notification as handed to a sink.
type Message struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Body     string `json:"body"`
	// OpenURL is attached as the notification's deep link.
	OpenURL string `json:"open_url,omitempty"`
}

// RenderRecord is the last successfully rendered summary of a job, replayed
// when every live source fails.
type RenderRecord struct {
	Timestamp time.Time `json:"ts"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle"`
	Body      string    `json:"body"`
	URL       string    `json:"url,omitempty"`
}

// Notification is a delivered message as recorded in the notification log.
type Notification struct {
	ID     int64     `json:"id"`
	Job    string    `json:"job"`
	SentAt time.Time `json:"sent_at"`
	Message
}

// Run statuses.
const (
	RunOK      = "ok"
	RunFailed  = "failed"
	RunPanic   = "panic"
	RunRunning = "running"
)

// RunRecord is the audit trail of one job invocation.
type RunRecord struct {
	ID         int64      `json:"id"`
	Job        string     `json:"job"`
	Argument   string     `json:"argument"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Sent       int        `json:"sent"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
