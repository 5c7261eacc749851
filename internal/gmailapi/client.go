package gmailapi

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mail-sync-service/pkg/metrics"
)

// Gmail addresses the authenticated account as "me".
const userID = "me"

// Client implements MailClient on the Gmail REST API.
type Client struct {
	svc *gmail.Service
}

// NewClient builds a Gmail client from an already-valid access token.
// The token is not refreshed here; the credential guard refreshes eagerly
// before a client is built, so a static source is enough for one fetch pass.
// timeout bounds every individual API call (connect + read).
func NewClient(ctx context.Context, accessToken string, timeout time.Duration) (*Client, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	httpClient := oauth2.NewClient(ctx, src)
	if timeout > 0 {
		httpClient.Timeout = timeout
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// ListMessages fetches one page of message stubs.
func (c *Client) ListMessages(ctx context.Context, pageToken string, maxResults int64) (*MessageList, error) {
	start := time.Now()

	call := c.svc.Users.Messages.List(userID).
		IncludeSpamTrash(false).
		MaxResults(maxResults).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		metrics.RecordGmailCall("list", "failed", time.Since(start))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	metrics.RecordGmailCall("list", "success", time.Since(start))

	list := &MessageList{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		list.Messages = append(list.Messages, MessageStub{ID: m.Id, ThreadID: m.ThreadId})
	}
	return list, nil
}

// GetMessage fetches one full message, part tree included.
func (c *Client) GetMessage(ctx context.Context, id string) (*RawMessage, error) {
	start := time.Now()

	msg, err := c.svc.Users.Messages.Get(userID, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		metrics.RecordGmailCall("get", "failed", time.Since(start))
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	metrics.RecordGmailCall("get", "success", time.Since(start))

	return convertMessage(msg), nil
}

func convertMessage(msg *gmail.Message) *RawMessage {
	return &RawMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		SizeEstimate: msg.SizeEstimate,
		InternalDate: msg.InternalDate,
		LabelIDs:     msg.LabelIds,
		Payload:      convertPart(msg.Payload),
	}
}

func convertPart(part *gmail.MessagePart) *MessagePart {
	if part == nil {
		return nil
	}

	out := &MessagePart{
		MimeType: part.MimeType,
		Filename: part.Filename,
	}
	for _, h := range part.Headers {
		out.Headers = append(out.Headers, Header{Name: h.Name, Value: h.Value})
	}
	if part.Body != nil {
		out.Body = &PartBody{Data: part.Body.Data, Size: part.Body.Size}
	}
	for _, child := range part.Parts {
		out.Parts = append(out.Parts, convertPart(child))
	}
	return out
}
