package mq

import "time"

// EmailIngestedPayload 新邮件首次入库事件的 payload
type EmailIngestedPayload struct {
	OwnerID      string    `json:"owner_id"`
	MessageID    string    `json:"message_id"`
	ThreadID     string    `json:"thread_id,omitempty"`
	Subject      string    `json:"subject"`
	FromEmail    string    `json:"from_email"`
	ReceivedDate time.Time `json:"received_date"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// SyncCompletedPayload 同步周期完成事件的 payload
type SyncCompletedPayload struct {
	TotalOwners     int       `json:"total_owners"`
	Succeeded       int       `json:"succeeded"`
	Failed          int       `json:"failed"`
	MessagesFetched int       `json:"messages_fetched"`
	StartedAt       time.Time `json:"started_at"`
	DurationMs      int64     `json:"duration_ms"`
}

// ReauthRequiredPayload owner 需要重新授权事件的 payload
type ReauthRequiredPayload struct {
	OwnerID     string    `json:"owner_id"`
	GoogleEmail string    `json:"google_email,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}
