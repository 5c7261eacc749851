package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mqcontracts "mail-sync-service/contracts/mq"
	"mail-sync-service/internal/gmailapi"
	"mail-sync-service/internal/model"
	"mail-sync-service/internal/service/credential"
	"mail-sync-service/internal/service/fetch"
	"mail-sync-service/internal/service/parse"
	pkglogger "mail-sync-service/pkg/logger"
	"mail-sync-service/pkg/metrics"
)

// TokenStore widens the guard's credential surface with the narrow
// last-synced stamp, so a successful sync never rewrites token fields that
// a concurrent refresh may have changed.
type TokenStore interface {
	credential.TokenStore
	UpdateLastSynced(ctx context.Context, ownerID string, syncedAt time.Time) error
}

// OwnerLocker gives single-flight access to one owner's credential.
type OwnerLocker interface {
	Acquire(ctx context.Context, ownerID string) (bool, error)
	Release(ctx context.Context, ownerID string) error
}

// ClientFactory builds a mail client from a valid credential.
type ClientFactory func(ctx context.Context, cred *model.Credential) (gmailapi.MailClient, error)

// Orchestrator drives one sync cycle across all owners. Owners are
// processed with bounded parallelism and fail independently: nothing short
// of a credential-store outage fails a cycle.
type Orchestrator struct {
	tokens        TokenStore
	guard         *credential.Guard
	coordinator   *fetch.Coordinator
	upserter      *UpsertEngine
	store         MessageStore
	locker        OwnerLocker
	clientFactory ClientFactory
	publisher     EventPublisher
	concurrency   int
	now           func() time.Time
	logger        *zap.Logger
}

func NewOrchestrator(
	tokens TokenStore,
	guard *credential.Guard,
	coordinator *fetch.Coordinator,
	upserter *UpsertEngine,
	store MessageStore,
	locker OwnerLocker,
	clientFactory ClientFactory,
	publisher EventPublisher,
	concurrency int,
	logger *zap.Logger,
) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{
		tokens:        tokens,
		guard:         guard,
		coordinator:   coordinator,
		upserter:      upserter,
		store:         store,
		locker:        locker,
		clientFactory: clientFactory,
		publisher:     publisher,
		concurrency:   concurrency,
		now:           time.Now,
		logger:        logger,
	}
}

// RunCycle syncs every owner with a stored credential. limit bounds the
// messages fetched per owner; limit <= 0 means a full resync. The returned
// error is non-nil only when credentials cannot be enumerated at all.
func (o *Orchestrator) RunCycle(ctx context.Context, limit int) (model.SyncSummary, error) {
	startedAt := o.now()

	creds, err := o.tokens.FindAll(ctx)
	if err != nil {
		return model.SyncSummary{StartedAt: startedAt}, fmt.Errorf("failed to enumerate credentials: %w", err)
	}

	o.logger.Info("Starting sync cycle",
		zap.Int("owners", len(creds)),
		zap.Int("limit", limit),
	)

	summary := model.SyncSummary{
		TotalOwners: len(creds),
		StartedAt:   startedAt,
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(o.concurrency)

	for i := range creds {
		cred := creds[i]
		g.Go(func() error {
			fetched, err := o.syncOwner(ctx, &cred, limit)

			mu.Lock()
			defer mu.Unlock()
			summary.MessagesFetched += fetched
			if err != nil {
				summary.Failed++
			} else {
				summary.Succeeded++
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = o.now().Sub(startedAt)
	metrics.RecordSyncCycleDuration(summary.Duration)

	o.logger.Info("Sync cycle completed",
		zap.Int("total_owners", summary.TotalOwners),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("messages_fetched", summary.MessagesFetched),
		zap.Duration("duration", summary.Duration),
	)

	o.publishCycleCompleted(summary)
	return summary, nil
}

// SyncOwner runs the same per-owner pipeline for a single owner on demand.
func (o *Orchestrator) SyncOwner(ctx context.Context, ownerID string, limit int) (model.SyncSummary, error) {
	startedAt := o.now()

	cred, err := o.tokens.FindByOwner(ctx, ownerID)
	if err != nil {
		return model.SyncSummary{StartedAt: startedAt}, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return model.SyncSummary{StartedAt: startedAt}, fmt.Errorf("no credential stored for owner %s", ownerID)
	}

	summary := model.SyncSummary{TotalOwners: 1, StartedAt: startedAt}

	fetched, err := o.syncOwner(ctx, cred, limit)
	summary.MessagesFetched = fetched
	if err != nil {
		summary.Failed = 1
	} else {
		summary.Succeeded = 1
	}

	summary.Duration = o.now().Sub(startedAt)
	return summary, nil
}

// syncOwner runs validate -> fetch -> parse -> upsert for one owner.
// All failures are contained here; the caller only counts them.
func (o *Orchestrator) syncOwner(ctx context.Context, cred *model.Credential, limit int) (int, error) {
	logger := pkglogger.WithOwner(o.logger, cred.OwnerID)

	acquired, err := o.locker.Acquire(ctx, cred.OwnerID)
	if err != nil {
		metrics.IncrementOwnerSync("failed")
		logger.Error("Owner lock acquisition failed", zap.Error(err))
		return 0, err
	}
	if !acquired {
		metrics.IncrementOwnerSync("locked")
		return 0, fmt.Errorf("sync already in flight for owner %s", cred.OwnerID)
	}
	defer func() {
		if err := o.locker.Release(ctx, cred.OwnerID); err != nil {
			logger.Warn("Failed to release owner lock", zap.Error(err))
		}
	}()

	if err := o.guard.EnsureValid(ctx, cred); err != nil {
		if errors.Is(err, credential.ErrReauthRequired) {
			metrics.IncrementOwnerSync("reauth_required")
			o.publishReauthRequired(cred)
		} else {
			metrics.IncrementOwnerSync("failed")
		}
		logger.Error("Credential validation failed", zap.Error(err))
		return 0, err
	}

	client, err := o.clientFactory(ctx, cred)
	if err != nil {
		metrics.IncrementOwnerSync("failed")
		logger.Error("Failed to build mail client", zap.Error(err))
		return 0, err
	}

	raws, err := o.coordinator.FetchAll(ctx, client, limit)
	if err != nil {
		metrics.IncrementOwnerSync("failed")
		logger.Error("Fetch failed for owner", zap.Error(err))
		return 0, err
	}

	msgs := make([]model.EmailMessage, 0, len(raws))
	for _, raw := range raws {
		msgs = append(msgs, parse.Message(raw))
	}

	result := o.upserter.Upsert(ctx, cred.OwnerID, msgs)

	syncedAt := o.now()
	if err := o.tokens.UpdateLastSynced(ctx, cred.OwnerID, syncedAt); err != nil {
		// The messages are already persisted; a stale last_synced_at only
		// costs a little duplicate work next cycle.
		logger.Warn("Failed to update last_synced_at", zap.Error(err))
	}

	metrics.IncrementOwnerSync("success")
	logger.Info("Owner sync completed",
		zap.Int("fetched", len(raws)),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)

	return len(raws), nil
}

// Disconnect removes an owner's credential and all stored messages.
func (o *Orchestrator) Disconnect(ctx context.Context, ownerID string) error {
	deleted, err := o.store.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete messages for owner %s: %w", ownerID, err)
	}

	if err := o.tokens.DeleteByOwner(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to delete credential for owner %s: %w", ownerID, err)
	}

	o.logger.Info("Owner disconnected",
		zap.String("owner_id", ownerID),
		zap.Int64("messages_deleted", deleted),
	)
	return nil
}

func (o *Orchestrator) publishCycleCompleted(summary model.SyncSummary) {
	if o.publisher == nil {
		return
	}

	payload := mqcontracts.SyncCompletedPayload{
		TotalOwners:     summary.TotalOwners,
		Succeeded:       summary.Succeeded,
		Failed:          summary.Failed,
		MessagesFetched: summary.MessagesFetched,
		StartedAt:       summary.StartedAt,
		DurationMs:      summary.Duration.Milliseconds(),
	}

	if err := o.publisher.Publish("sync.completed", payload); err != nil {
		o.logger.Warn("Failed to publish sync.completed event", zap.Error(err))
	}
}

func (o *Orchestrator) publishReauthRequired(cred *model.Credential) {
	if o.publisher == nil {
		return
	}

	payload := mqcontracts.ReauthRequiredPayload{
		OwnerID:     cred.OwnerID,
		GoogleEmail: cred.GoogleEmail,
		DetectedAt:  o.now(),
	}

	if err := o.publisher.Publish("credential.reauth_required", payload); err != nil {
		o.logger.Warn("Failed to publish credential.reauth_required event",
			zap.String("owner_id", cred.OwnerID),
			zap.Error(err),
		)
	}
}
