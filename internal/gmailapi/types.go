package gmailapi

import (
	"context"
	"time"
)

// Header is one flat message header (e.g. From, Subject).
type Header struct {
	Name  string
	Value string
}

// PartBody carries the base64url-encoded content of a part.
type PartBody struct {
	Data string
	Size int64
}

// MessagePart is one node of the MIME part tree.
type MessagePart struct {
	MimeType string
	Filename string
	Headers  []Header
	Body     *PartBody
	Parts    []*MessagePart
}

// RawMessage is the full remote representation of one message.
// InternalDate is epoch milliseconds; 0 means the remote side sent none.
type RawMessage struct {
	ID           string
	ThreadID     string
	Snippet      string
	SizeEstimate int64
	InternalDate int64
	LabelIDs     []string
	Payload      *MessagePart
}

// MessageStub is one entry of a list page (id only, no content).
type MessageStub struct {
	ID       string
	ThreadID string
}

// MessageList is one page of stubs. NextPageToken is empty on the last page.
type MessageList struct {
	Messages      []MessageStub
	NextPageToken string
}

// MailClient is the two-tier remote message API: list stubs, then fetch
// each full message.
type MailClient interface {
	ListMessages(ctx context.Context, pageToken string, maxResults int64) (*MessageList, error)
	GetMessage(ctx context.Context, id string) (*RawMessage, error)
}

// RefreshedToken is the result of a token refresh call.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenRefresher exchanges a refresh token for a fresh access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error)
}
