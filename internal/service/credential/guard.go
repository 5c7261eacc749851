package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mail-sync-service/internal/gmailapi"
	"mail-sync-service/internal/model"
	"mail-sync-service/pkg/metrics"
)

// ErrReauthRequired means the owner must go through the authorization flow
// again: the access token is stale and no refresh token is available, or the
// refresh endpoint rejected the one we have. Never retried automatically.
var ErrReauthRequired = errors.New("reauthorization required")

// RefreshSkew is how long before the recorded expiry a token is already
// treated as stale. Refreshing eagerly avoids a 401 in the middle of a page.
const RefreshSkew = 5 * time.Minute

// TokenStore persists credentials per owner.
type TokenStore interface {
	FindByOwner(ctx context.Context, ownerID string) (*model.Credential, error)
	FindAll(ctx context.Context) ([]model.Credential, error)
	Save(ctx context.Context, c *model.Credential) error
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// Guard validates credentials and drives proactive refresh.
type Guard struct {
	store     TokenStore
	refresher gmailapi.TokenRefresher
	skew      time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewGuard(store TokenStore, refresher gmailapi.TokenRefresher, logger *zap.Logger) *Guard {
	return &Guard{
		store:     store,
		refresher: refresher,
		skew:      RefreshSkew,
		now:       time.Now,
		logger:    logger,
	}
}

// EnsureValid makes the credential usable, refreshing and persisting it
// first when it is stale. The updated credential is saved before it is
// returned, so a crash between refresh and use cannot lose the new token.
func (g *Guard) EnsureValid(ctx context.Context, cred *model.Credential) error {
	if cred.AccessToken != "" && !g.isStale(cred) {
		return nil
	}

	if !cred.HasRefreshToken() {
		g.logger.Warn("Credential stale with no refresh token",
			zap.String("owner_id", cred.OwnerID),
		)
		return ErrReauthRequired
	}

	return g.refresh(ctx, cred)
}

// isStale reports whether the access token is expired or inside the skew
// window. A credential without a recorded expiry never goes stale.
func (g *Guard) isStale(cred *model.Credential) bool {
	if cred.AccessTokenExpiresAt == nil {
		return false
	}
	return g.now().Add(g.skew).After(*cred.AccessTokenExpiresAt)
}

func (g *Guard) refresh(ctx context.Context, cred *model.Credential) error {
	g.logger.Info("Refreshing access token",
		zap.String("owner_id", cred.OwnerID),
	)

	refreshed, err := g.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		metrics.IncrementTokenRefresh("failed")
		g.logger.Error("Token refresh failed",
			zap.String("owner_id", cred.OwnerID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s", ErrReauthRequired, err)
	}

	cred.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		cred.RefreshToken = refreshed.RefreshToken
	}
	if !refreshed.Expiry.IsZero() {
		expiry := refreshed.Expiry
		cred.AccessTokenExpiresAt = &expiry
	}

	if err := g.store.Save(ctx, cred); err != nil {
		metrics.IncrementTokenRefresh("failed")
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	metrics.IncrementTokenRefresh("success")
	g.logger.Info("Access token refreshed",
		zap.String("owner_id", cred.OwnerID),
		zap.Timep("expires_at", cred.AccessTokenExpiresAt),
	)
	return nil
}
