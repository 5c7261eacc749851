package syncer

import (
	"context"
	"fmt"

	"mail-sync-service/internal/model"
)

// StatsForOwner returns the stored message counts the transport layer
// exposes per account.
func (o *Orchestrator) StatsForOwner(ctx context.Context, ownerID string) (model.AccountStats, error) {
	total, err := o.store.CountByOwner(ctx, ownerID)
	if err != nil {
		return model.AccountStats{}, fmt.Errorf("failed to count messages: %w", err)
	}

	unread, err := o.store.CountUnreadByOwner(ctx, ownerID)
	if err != nil {
		return model.AccountStats{}, fmt.Errorf("failed to count unread messages: %w", err)
	}

	starred, err := o.store.CountStarredByOwner(ctx, ownerID)
	if err != nil {
		return model.AccountStats{}, fmt.Errorf("failed to count starred messages: %w", err)
	}

	return model.AccountStats{
		Total:   total,
		Unread:  unread,
		Starred: starred,
	}, nil
}
