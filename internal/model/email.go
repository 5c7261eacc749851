package model

import "time"

// EmailMessage is the normalized, persisted form of one Gmail message.
// (OwnerID, MessageID) is the dedup key. ReceivedDate and CreatedAt are
// written once on insert and never mutated by later syncs.
type EmailMessage struct {
	ID             int
	OwnerID        string
	MessageID      string
	ThreadID       string
	Subject        string
	FromEmail      string
	ToEmail        string
	CcEmail        string
	BccEmail       string
	BodyText       string
	BodyHTML       string
	ReceivedDate   time.Time
	IsRead         bool
	IsStarred      bool
	HasAttachments bool
	Labels         []string
	Snippet        string
	SizeEstimate   int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
