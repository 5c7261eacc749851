package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mail-sync-service/internal/gmailapi"
	"mail-sync-service/internal/model"
)

// memStore is an in-memory MessageStore with the same field semantics as
// the Postgres repository: Update never touches received_date or created_at.
type memStore struct {
	mu      sync.Mutex
	records map[string]*model.EmailMessage
	nextID  int
	failIDs map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*model.EmailMessage),
		failIDs: make(map[string]bool),
	}
}

func storeKey(ownerID, messageID string) string {
	return ownerID + "|" + messageID
}

func (s *memStore) FindByOwnerAndMessageID(_ context.Context, ownerID, messageID string) (*model.EmailMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.records[storeKey(ownerID, messageID)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) Insert(_ context.Context, m *model.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[m.MessageID] {
		return errors.New("store write failed")
	}
	// labels is NOT NULL in the schema; a nil slice binds as NULL.
	if m.Labels == nil {
		return errors.New(`null value in column "labels" violates not-null constraint`)
	}
	s.nextID++
	m.ID = s.nextID
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	cp := *m
	s.records[storeKey(m.OwnerID, m.MessageID)] = &cp
	return nil
}

func (s *memStore) Update(_ context.Context, m *model.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[m.MessageID] {
		return errors.New("store write failed")
	}
	existing, ok := s.records[storeKey(m.OwnerID, m.MessageID)]
	if !ok {
		return errors.New("no such record")
	}
	cp := *m
	cp.ID = existing.ID
	cp.ReceivedDate = existing.ReceivedDate
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.records[storeKey(m.OwnerID, m.MessageID)] = &cp
	return nil
}

func (s *memStore) DeleteByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, m := range s.records {
		if m.OwnerID == ownerID {
			delete(s.records, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, m := range s.records {
		if m.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountUnreadByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, m := range s.records {
		if m.OwnerID == ownerID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountStarredByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, m := range s.records {
		if m.OwnerID == ownerID && m.IsStarred {
			count++
		}
	}
	return count, nil
}

func (s *memStore) get(ownerID, messageID string) *model.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[storeKey(ownerID, messageID)]
}

// recordPublisher collects published events.
type recordPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	routingKey string
	payload    any
}

func (p *recordPublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey: routingKey, payload: payload})
	return nil
}

func (p *recordPublisher) byKey(routingKey string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.routingKey == routingKey {
			out = append(out, e)
		}
	}
	return out
}

// memTokenStore implements the orchestrator's TokenStore.
type memTokenStore struct {
	mu        sync.Mutex
	byOwner   map[string]*model.Credential
	findErr   error
	saveCalls int
}

func newMemTokenStore(creds ...model.Credential) *memTokenStore {
	s := &memTokenStore{byOwner: make(map[string]*model.Credential)}
	for i := range creds {
		cp := creds[i]
		s.byOwner[cp.OwnerID] = &cp
	}
	return s
}

func (s *memTokenStore) FindByOwner(_ context.Context, ownerID string) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byOwner[ownerID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *memTokenStore) FindAll(_ context.Context) ([]model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	// Stable order keeps the tests deterministic.
	var creds []model.Credential
	for i := 1; ; i++ {
		c, ok := s.byOwner[fmt.Sprintf("owner-%d", i)]
		if !ok {
			break
		}
		creds = append(creds, *c)
	}
	if len(creds) == len(s.byOwner) {
		return creds, nil
	}
	creds = creds[:0]
	for _, c := range s.byOwner {
		creds = append(creds, *c)
	}
	return creds, nil
}

func (s *memTokenStore) Save(_ context.Context, c *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	cp := *c
	s.byOwner[c.OwnerID] = &cp
	return nil
}

func (s *memTokenStore) UpdateLastSynced(_ context.Context, ownerID string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byOwner[ownerID]; ok {
		stamp := syncedAt
		c.LastSyncedAt = &stamp
	}
	return nil
}

func (s *memTokenStore) DeleteByOwner(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byOwner, ownerID)
	return nil
}

func (s *memTokenStore) lastSynced(ownerID string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byOwner[ownerID]; ok {
		return c.LastSyncedAt
	}
	return nil
}

// stubClient serves a fixed message set in one page, or fails listing.
type stubClient struct {
	messages []*gmailapi.RawMessage
	listErr  error
}

func (c *stubClient) ListMessages(_ context.Context, _ string, _ int64) (*gmailapi.MessageList, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	list := &gmailapi.MessageList{}
	for _, m := range c.messages {
		list.Messages = append(list.Messages, gmailapi.MessageStub{ID: m.ID})
	}
	return list, nil
}

func (c *stubClient) GetMessage(_ context.Context, id string) (*gmailapi.RawMessage, error) {
	for _, m := range c.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errors.New("no such message")
}

// stubRefresher implements gmailapi.TokenRefresher.
type stubRefresher struct {
	result *gmailapi.RefreshedToken
	err    error
}

func (r *stubRefresher) Refresh(_ context.Context, _ string) (*gmailapi.RefreshedToken, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// openLocker always grants; deniedLocker refuses listed owners.
type openLocker struct{}

func (openLocker) Acquire(_ context.Context, _ string) (bool, error) { return true, nil }
func (openLocker) Release(_ context.Context, _ string) error         { return nil }

type deniedLocker struct {
	denied map[string]bool
}

func (l *deniedLocker) Acquire(_ context.Context, ownerID string) (bool, error) {
	return !l.denied[ownerID], nil
}

func (l *deniedLocker) Release(_ context.Context, _ string) error { return nil }
