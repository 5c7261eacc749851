package fetch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mail-sync-service/internal/gmailapi"
	"mail-sync-service/pkg/metrics"
)

// DefaultPageSize is the stub count requested per list call.
const DefaultPageSize = 100

// Coordinator pages through the remote listing API and retrieves full
// message bodies. Each FetchAll call starts a fresh page cursor.
type Coordinator struct {
	pageSize int64
	logger   *zap.Logger
}

func NewCoordinator(pageSize int64, logger *zap.Logger) *Coordinator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Coordinator{
		pageSize: pageSize,
		logger:   logger,
	}
}

// FetchAll pulls messages for one owner. limit <= 0 means unbounded: follow
// the next-page token until it is absent (full resync). limit > 0 stops after
// that many messages (routine polling).
//
// A single message that fails to retrieve is logged and skipped. A failed
// list call aborts this owner's fetch for the cycle; retry happens on the
// next scheduled cycle, never inline.
func (c *Coordinator) FetchAll(ctx context.Context, client gmailapi.MailClient, limit int) ([]*gmailapi.RawMessage, error) {
	var messages []*gmailapi.RawMessage
	pageToken := ""
	pageCount := 0

	for {
		pageSize := c.pageSize
		if limit > 0 && int64(limit-len(messages)) < pageSize {
			pageSize = int64(limit - len(messages))
		}

		page, err := client.ListMessages(ctx, pageToken, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list page %d: %w", pageCount+1, err)
		}
		pageCount++

		c.logger.Debug("Processing message page",
			zap.Int("page", pageCount),
			zap.Int("stubs", len(page.Messages)),
		)

		for _, stub := range page.Messages {
			full, err := client.GetMessage(ctx, stub.ID)
			if err != nil {
				metrics.IncrementMessagesFetched("failed")
				c.logger.Error("Failed to fetch message, skipping",
					zap.String("message_id", stub.ID),
					zap.Error(err),
				)
				continue
			}

			metrics.IncrementMessagesFetched("success")
			messages = append(messages, full)

			if limit > 0 && len(messages) >= limit {
				return messages, nil
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return messages, nil
		}
	}
}
