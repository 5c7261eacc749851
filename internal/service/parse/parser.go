// Package parse turns a raw Gmail message into a normalized EmailMessage.
// Everything here is pure: no I/O, no clock, no logging.
package parse

import (
	"encoding/base64"
	"strings"
	"time"

	"mail-sync-service/internal/gmailapi"
	"mail-sync-service/internal/model"
)

const noSubject = "(No Subject)"

// Message parses one raw message. Malformed pieces degrade per field (an
// undecodable body becomes an empty string, a missing subject becomes the
// placeholder); parsing as a whole never fails.
func Message(raw *gmailapi.RawMessage) model.EmailMessage {
	m := model.EmailMessage{
		MessageID:    raw.ID,
		ThreadID:     raw.ThreadID,
		Snippet:      raw.Snippet,
		SizeEstimate: raw.SizeEstimate,
		Subject:      noSubject,
	}

	if raw.Payload != nil {
		for _, h := range raw.Payload.Headers {
			value := h.Value
			switch strings.ToLower(h.Name) {
			case "from":
				m.FromEmail = extractAddress(value)
			case "to":
				m.ToEmail = extractAddress(value)
			case "cc":
				m.CcEmail = extractAddress(value)
			case "bcc":
				m.BccEmail = extractAddress(value)
			case "subject":
				if value != "" {
					m.Subject = value
				}
			}
		}
	}

	// Internal date is epoch milliseconds; zero means the remote side sent
	// none and ReceivedDate stays unset for the upsert layer to default.
	if raw.InternalDate != 0 {
		m.ReceivedDate = time.UnixMilli(raw.InternalDate).Local()
	}

	m.IsRead = true
	for _, label := range raw.LabelIDs {
		switch label {
		case "UNREAD":
			m.IsRead = false
		case "STARRED":
			m.IsStarred = true
		}
	}
	// Always non-nil: the labels column is NOT NULL and a nil slice binds
	// as SQL NULL rather than an empty array.
	m.Labels = append(make([]string, 0, len(raw.LabelIDs)), raw.LabelIDs...)

	m.BodyText = extractBody(raw.Payload, "text/plain")
	m.BodyHTML = extractBody(raw.Payload, "text/html")
	m.HasAttachments = hasAttachments(raw.Payload)

	return m
}

// extractAddress reduces `"Display Name" <addr@example.com>` to the
// bracketed address, or returns the trimmed raw value when there are no
// angle brackets.
func extractAddress(headerValue string) string {
	if headerValue == "" {
		return ""
	}

	start := strings.Index(headerValue, "<")
	end := strings.Index(headerValue, ">")
	if start >= 0 && end > start {
		return strings.TrimSpace(headerValue[start+1 : end])
	}

	return strings.TrimSpace(headerValue)
}

// extractBody walks the part tree pre-order and returns the decoded body of
// the first part whose MIME type matches exactly. First match wins even when
// its decode fails: multipart/alternative commonly nests the richer type
// after the first, and falling through would pick the wrong alternative.
func extractBody(part *gmailapi.MessagePart, mimeType string) string {
	body, _ := findBody(part, mimeType)
	return body
}

func findBody(part *gmailapi.MessagePart, mimeType string) (string, bool) {
	if part == nil {
		return "", false
	}

	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data), true
	}

	for _, child := range part.Parts {
		if body, ok := findBody(child, mimeType); ok {
			return body, true
		}
	}

	return "", false
}

// decodeBody decodes a base64url body to UTF-8 text. A decode failure yields
// an empty string rather than failing the message.
func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

// hasAttachments reports whether any part in the tree, root included,
// carries a non-empty filename.
func hasAttachments(part *gmailapi.MessagePart) bool {
	if part == nil {
		return false
	}

	if part.Filename != "" {
		return true
	}

	for _, child := range part.Parts {
		if hasAttachments(child) {
			return true
		}
	}

	return false
}

// AttachmentNames collects every filename in the part tree in pre-order.
func AttachmentNames(part *gmailapi.MessagePart) []string {
	if part == nil {
		return nil
	}

	var names []string
	if part.Filename != "" {
		names = append(names, part.Filename)
	}
	for _, child := range part.Parts {
		names = append(names, AttachmentNames(child)...)
	}
	return names
}
