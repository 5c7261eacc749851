package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	mqcontracts "mail-sync-service/contracts/mq"
	"mail-sync-service/internal/model"
	"mail-sync-service/pkg/metrics"
)

// MessageStore is the persistence surface the sync engine needs.
type MessageStore interface {
	FindByOwnerAndMessageID(ctx context.Context, ownerID, messageID string) (*model.EmailMessage, error)
	Insert(ctx context.Context, m *model.EmailMessage) error
	Update(ctx context.Context, m *model.EmailMessage) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	CountUnreadByOwner(ctx context.Context, ownerID string) (int64, error)
	CountStarredByOwner(ctx context.Context, ownerID string) (int64, error)
}

// EventPublisher publishes domain events; pkg/mq.Publisher satisfies it.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// UpsertEngine decides insert-vs-update by (owner, message_id).
type UpsertEngine struct {
	store     MessageStore
	publisher EventPublisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewUpsertEngine(store MessageStore, publisher EventPublisher, logger *zap.Logger) *UpsertEngine {
	return &UpsertEngine{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
}

// Upsert applies one batch for an owner. Each record is independently
// atomic: a failed record is logged and counted as skipped, and the batch
// continues. Records without a message id are never persisted.
//
// On insert, a missing received date defaults to ingestion time; once a row
// exists its received date is never rewritten.
func (e *UpsertEngine) Upsert(ctx context.Context, ownerID string, msgs []model.EmailMessage) model.UpsertResult {
	var result model.UpsertResult

	for i := range msgs {
		m := msgs[i]

		if m.MessageID == "" {
			e.logger.Warn("Skipping message without message id",
				zap.String("owner_id", ownerID),
			)
			result.Skipped++
			metrics.IncrementMessageUpsert("skipped")
			continue
		}

		m.OwnerID = ownerID
		if m.ReceivedDate.IsZero() {
			m.ReceivedDate = e.now()
		}

		existing, err := e.store.FindByOwnerAndMessageID(ctx, ownerID, m.MessageID)
		if err != nil {
			e.logger.Error("Failed to look up message, skipping",
				zap.String("owner_id", ownerID),
				zap.String("message_id", m.MessageID),
				zap.Error(err),
			)
			result.Skipped++
			metrics.IncrementMessageUpsert("skipped")
			continue
		}

		if existing == nil {
			if err := e.store.Insert(ctx, &m); err != nil {
				e.logger.Error("Failed to insert message, skipping",
					zap.String("owner_id", ownerID),
					zap.String("message_id", m.MessageID),
					zap.Error(err),
				)
				result.Skipped++
				metrics.IncrementMessageUpsert("skipped")
				continue
			}
			result.Inserted++
			metrics.IncrementMessageUpsert("inserted")
			e.publishIngested(ownerID, &m)
			continue
		}

		// Update overwrites only the mutable fields; received_date and
		// created_at keep their stored values.
		if err := e.store.Update(ctx, &m); err != nil {
			e.logger.Error("Failed to update message, skipping",
				zap.String("owner_id", ownerID),
				zap.String("message_id", m.MessageID),
				zap.Error(err),
			)
			result.Skipped++
			metrics.IncrementMessageUpsert("skipped")
			continue
		}
		result.Updated++
		metrics.IncrementMessageUpsert("updated")
	}

	e.logger.Info("Upsert batch completed",
		zap.String("owner_id", ownerID),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)

	return result
}

func (e *UpsertEngine) publishIngested(ownerID string, m *model.EmailMessage) {
	if e.publisher == nil {
		return
	}

	payload := mqcontracts.EmailIngestedPayload{
		OwnerID:      ownerID,
		MessageID:    m.MessageID,
		ThreadID:     m.ThreadID,
		Subject:      m.Subject,
		FromEmail:    m.FromEmail,
		ReceivedDate: m.ReceivedDate,
		IngestedAt:   e.now(),
	}

	if err := e.publisher.Publish("email.ingested", payload); err != nil {
		e.logger.Warn("Failed to publish email.ingested event",
			zap.String("owner_id", ownerID),
			zap.String("message_id", m.MessageID),
			zap.Error(err),
		)
	}
}
