package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mail-sync-service/internal/model"
	"mail-sync-service/pkg/metrics"
)

// MessageStore is the slice of persistence the sweeper needs.
type MessageStore interface {
	DeleteReceivedBefore(ctx context.Context, ownerID string, cutoff time.Time) (int64, error)
}

// OwnerSource enumerates the owners to sweep.
type OwnerSource interface {
	FindAll(ctx context.Context) ([]model.Credential, error)
}

// Sweeper deletes messages received before a cutoff, owner by owner.
type Sweeper struct {
	owners OwnerSource
	store  MessageStore
	logger *zap.Logger
}

func NewSweeper(owners OwnerSource, store MessageStore, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		owners: owners,
		store:  store,
		logger: logger,
	}
}

// Sweep deletes one owner's messages with received_date strictly before cutoff.
func (s *Sweeper) Sweep(ctx context.Context, ownerID string, cutoff time.Time) (int64, error) {
	deleted, err := s.store.DeleteReceivedBefore(ctx, ownerID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep failed for owner %s: %w", ownerID, err)
	}

	if deleted > 0 {
		metrics.AddRetentionDeleted(deleted)
		s.logger.Info("Retention sweep deleted messages",
			zap.String("owner_id", ownerID),
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}

	return deleted, nil
}

// SweepAll sweeps every owner. A failure for one owner is logged and does
// not block the rest; the result maps each swept owner to its deleted count.
func (s *Sweeper) SweepAll(ctx context.Context, cutoff time.Time) (map[string]int64, error) {
	creds, err := s.owners.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate owners: %w", err)
	}

	deletedByOwner := make(map[string]int64, len(creds))
	for _, cred := range creds {
		deleted, err := s.Sweep(ctx, cred.OwnerID, cutoff)
		if err != nil {
			s.logger.Error("Skipping owner after sweep failure",
				zap.String("owner_id", cred.OwnerID),
				zap.Error(err),
			)
			continue
		}
		deletedByOwner[cred.OwnerID] = deleted
	}

	return deletedByOwner, nil
}
