package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	mqcontracts "mail-sync-service/contracts/mq"
	"mail-sync-service/internal/gmailapi"
	"mail-sync-service/internal/model"
	"mail-sync-service/internal/service/credential"
	"mail-sync-service/internal/service/fetch"
)

type orchestratorFixture struct {
	tokens    *memTokenStore
	store     *memStore
	publisher *recordPublisher
	clients   map[string]*stubClient
	orch      *Orchestrator
}

func freshCredential(ownerID string) model.Credential {
	expiry := time.Now().Add(time.Hour)
	return model.Credential{
		OwnerID:              ownerID,
		GoogleEmail:          ownerID + "@gmail.com",
		AccessToken:          "token-" + ownerID,
		RefreshToken:         "refresh-" + ownerID,
		AccessTokenExpiresAt: &expiry,
	}
}

func rawMessage(id string) *gmailapi.RawMessage {
	return &gmailapi.RawMessage{
		ID:           id,
		ThreadID:     "thread-" + id,
		InternalDate: time.Now().UnixMilli(),
	}
}

func newFixture(locker OwnerLocker, creds ...model.Credential) *orchestratorFixture {
	f := &orchestratorFixture{
		tokens:    newMemTokenStore(creds...),
		store:     newMemStore(),
		publisher: &recordPublisher{},
		clients:   make(map[string]*stubClient),
	}

	logger := zap.NewNop()
	guard := credential.NewGuard(f.tokens, &stubRefresher{}, logger)
	coordinator := fetch.NewCoordinator(100, logger)
	upserter := NewUpsertEngine(f.store, f.publisher, logger)

	factory := func(_ context.Context, cred *model.Credential) (gmailapi.MailClient, error) {
		client, ok := f.clients[cred.OwnerID]
		if !ok {
			return nil, errors.New("no client configured for " + cred.OwnerID)
		}
		return client, nil
	}

	f.orch = NewOrchestrator(
		f.tokens, guard, coordinator, upserter, f.store,
		locker, factory, f.publisher, 2, logger,
	)
	return f
}

func TestRunCycle_OwnerFailureIsolated(t *testing.T) {
	f := newFixture(openLocker{},
		freshCredential("owner-1"),
		freshCredential("owner-2"),
		freshCredential("owner-3"),
	)
	f.clients["owner-1"] = &stubClient{messages: []*gmailapi.RawMessage{rawMessage("a1"), rawMessage("a2")}}
	f.clients["owner-2"] = &stubClient{listErr: errors.New("503 backend error")}
	f.clients["owner-3"] = &stubClient{messages: []*gmailapi.RawMessage{rawMessage("c1")}}

	summary, err := f.orch.RunCycle(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunCycle() error = %v, one owner failing must not fail the cycle", err)
	}

	if summary.TotalOwners != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 3 total / 2 succeeded / 1 failed", summary)
	}
	if summary.MessagesFetched != 3 {
		t.Errorf("MessagesFetched = %d, want 3 from the healthy owners", summary.MessagesFetched)
	}

	if c, _ := f.store.CountByOwner(context.Background(), "owner-1"); c != 2 {
		t.Errorf("owner-1 count = %d, want 2", c)
	}
	if c, _ := f.store.CountByOwner(context.Background(), "owner-2"); c != 0 {
		t.Errorf("owner-2 count = %d, want 0 for the failed owner", c)
	}
	if c, _ := f.store.CountByOwner(context.Background(), "owner-3"); c != 1 {
		t.Errorf("owner-3 count = %d, want 1", c)
	}

	if f.tokens.lastSynced("owner-1") == nil || f.tokens.lastSynced("owner-3") == nil {
		t.Error("last_synced_at not set for successful owners")
	}
	if f.tokens.lastSynced("owner-2") != nil {
		t.Error("last_synced_at set for a failed owner")
	}

	completed := f.publisher.byKey("sync.completed")
	if len(completed) != 1 {
		t.Fatalf("sync.completed events = %d, want 1", len(completed))
	}
	payload := completed[0].payload.(mqcontracts.SyncCompletedPayload)
	if payload.Succeeded != 2 || payload.Failed != 1 {
		t.Errorf("sync.completed payload = %+v, want 2 succeeded / 1 failed", payload)
	}
}

func TestRunCycle_LastSyncedStampLeavesTokenAlone(t *testing.T) {
	f := newFixture(openLocker{}, freshCredential("owner-1"))
	f.clients["owner-1"] = &stubClient{messages: []*gmailapi.RawMessage{rawMessage("a1")}}

	if _, err := f.orch.RunCycle(context.Background(), 0); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if f.tokens.lastSynced("owner-1") == nil {
		t.Fatal("last_synced_at not stamped")
	}
	// A fresh token needs no refresh, so the credential row must only get
	// the narrow stamp; a full save could clobber a concurrent refresh.
	if f.tokens.saveCalls != 0 {
		t.Errorf("Save calls = %d, want 0 when only last_synced_at changes", f.tokens.saveCalls)
	}
	cred, _ := f.tokens.FindByOwner(context.Background(), "owner-1")
	if cred.AccessToken != "token-owner-1" {
		t.Errorf("AccessToken = %q, token fields must be untouched by the stamp", cred.AccessToken)
	}
}

func TestRunCycle_ReauthRequiredPublishesEvent(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	cred := model.Credential{
		OwnerID:              "owner-1",
		GoogleEmail:          "owner-1@gmail.com",
		AccessToken:          "stale",
		AccessTokenExpiresAt: &expired,
	}
	f := newFixture(openLocker{}, cred)

	summary, err := f.orch.RunCycle(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 0 {
		t.Errorf("summary = %+v, want the owner counted as failed", summary)
	}

	events := f.publisher.byKey("credential.reauth_required")
	if len(events) != 1 {
		t.Fatalf("credential.reauth_required events = %d, want 1", len(events))
	}
	payload := events[0].payload.(mqcontracts.ReauthRequiredPayload)
	if payload.OwnerID != "owner-1" || payload.GoogleEmail != "owner-1@gmail.com" {
		t.Errorf("payload = %+v, want owner identity filled", payload)
	}
}

func TestRunCycle_LockedOwnerCountedFailed(t *testing.T) {
	f := newFixture(
		&deniedLocker{denied: map[string]bool{"owner-1": true}},
		freshCredential("owner-1"),
		freshCredential("owner-2"),
	)
	f.clients["owner-2"] = &stubClient{messages: []*gmailapi.RawMessage{rawMessage("b1")}}

	summary, err := f.orch.RunCycle(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want locked owner failed and the other succeeded", summary)
	}
	if c, _ := f.store.CountByOwner(context.Background(), "owner-1"); c != 0 {
		t.Errorf("owner-1 count = %d, want 0 when the lock is held elsewhere", c)
	}
}

func TestRunCycle_CredentialEnumerationFailureIsFatal(t *testing.T) {
	f := newFixture(openLocker{})
	f.tokens.findErr = errors.New("db down")

	_, err := f.orch.RunCycle(context.Background(), 0)
	if err == nil {
		t.Fatal("RunCycle() = nil, want error when credentials cannot be listed")
	}
}

func TestSyncOwner_SingleOwner(t *testing.T) {
	f := newFixture(openLocker{}, freshCredential("owner-1"))
	f.clients["owner-1"] = &stubClient{messages: []*gmailapi.RawMessage{rawMessage("a1"), rawMessage("a2")}}

	summary, err := f.orch.SyncOwner(context.Background(), "owner-1", 0)
	if err != nil {
		t.Fatalf("SyncOwner() error = %v", err)
	}
	if summary.Succeeded != 1 || summary.MessagesFetched != 2 {
		t.Errorf("summary = %+v, want 1 succeeded with 2 messages", summary)
	}
}

func TestSyncOwner_UnknownOwner(t *testing.T) {
	f := newFixture(openLocker{})

	_, err := f.orch.SyncOwner(context.Background(), "ghost", 0)
	if err == nil {
		t.Fatal("SyncOwner() = nil, want error for an owner without a credential")
	}
}

func TestDisconnect_RemovesMessagesAndCredential(t *testing.T) {
	f := newFixture(openLocker{}, freshCredential("owner-1"), freshCredential("owner-2"))
	f.clients["owner-1"] = &stubClient{messages: []*gmailapi.RawMessage{rawMessage("a1")}}
	f.clients["owner-2"] = &stubClient{messages: []*gmailapi.RawMessage{rawMessage("b1")}}

	ctx := context.Background()
	if _, err := f.orch.RunCycle(ctx, 0); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if err := f.orch.Disconnect(ctx, "owner-1"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	if c, _ := f.store.CountByOwner(ctx, "owner-1"); c != 0 {
		t.Errorf("owner-1 count = %d, want 0 after disconnect", c)
	}
	if cred, _ := f.tokens.FindByOwner(ctx, "owner-1"); cred != nil {
		t.Error("credential still present after disconnect")
	}
	if c, _ := f.store.CountByOwner(ctx, "owner-2"); c != 1 {
		t.Errorf("owner-2 count = %d, other owners must be untouched", c)
	}
}

func TestStatsForOwner(t *testing.T) {
	f := newFixture(openLocker{}, freshCredential("owner-1"))
	f.clients["owner-1"] = &stubClient{messages: []*gmailapi.RawMessage{
		{ID: "m1", LabelIDs: []string{"UNREAD"}, InternalDate: time.Now().UnixMilli()},
		{ID: "m2", LabelIDs: []string{"STARRED"}, InternalDate: time.Now().UnixMilli()},
		{ID: "m3", InternalDate: time.Now().UnixMilli()},
	}}

	ctx := context.Background()
	if _, err := f.orch.SyncOwner(ctx, "owner-1", 0); err != nil {
		t.Fatalf("SyncOwner() error = %v", err)
	}

	stats, err := f.orch.StatsForOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("StatsForOwner() error = %v", err)
	}
	if stats.Total != 3 || stats.Unread != 1 || stats.Starred != 1 {
		t.Errorf("stats = %+v, want total 3 / unread 1 / starred 1", stats)
	}
}
