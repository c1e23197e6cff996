package model

import "time"

// Run status constants.
const (
	RunStatusRunning       = "running"
	RunStatusSent          = "sent"
	RunStatusDryRun        = "dry_run"
	RunStatusSkipped       = "skipped"
	RunStatusSummaryFailed = "summary_failed"
	RunStatusSendFailed    = "send_failed"
	RunStatusFailed        = "failed"
)

// Run records one execution of the digest pipeline.
type Run struct {
	// ID is a UUID assigned when the run starts.
	ID string `json:"id" db:"id"`

	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`

	// Status is one of the RunStatus* constants.
	Status string `json:"status" db:"status"`

	// MessageID is the Message-ID of the digested newsletter, if one was found.
	MessageID string `json:"message_id" db:"message_id"`

	NewsletterSubject string `json:"newsletter_subject" db:"newsletter_subject"`
	ArticleCount      int    `json:"article_count" db:"article_count"`

	// Recipients is the comma-separated list the digest was sent to.
	Recipients string `json:"recipients" db:"recipients"`

	// Error holds the failure message for unsuccessful runs and the reason
	// for skipped ones.
	Error string `json:"error" db:"error"`

	// Summary is the markdown the model produced.
	Summary string `json:"summary,omitempty" db:"summary"`

	// Articles are the extracted entries; persisted separately.
	Articles []Article `json:"-" db:"-"`
}

// Finished reports whether the run has reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status != RunStatusRunning && r.Status != ""
}
