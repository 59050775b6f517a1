package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/guayoyo/loyalty-service/internal/auth"
	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/events"
	"github.com/guayoyo/loyalty-service/internal/observability"
	"github.com/guayoyo/loyalty-service/internal/repository"
	"github.com/guayoyo/loyalty-service/internal/tiers"
)

// MockAccountStore is a testify mock of repository.AccountStore.
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) Mode() domain.StoreMode { return domain.StoreModeRemote }

func (m *MockAccountStore) Find(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account).Clone(), args.Error(1)
}

func (m *MockAccountStore) Create(ctx context.Context, account *domain.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountStore) AddVisit(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccountStore) AddRedemption(ctx context.Context, id string, tierID int) error {
	return m.Called(ctx, id, tierID).Error(0)
}

func (m *MockAccountStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// memoryStore is an in-process AccountStore for behavioural tests.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]*domain.Account)}
}

func (s *memoryStore) Mode() domain.StoreMode { return domain.StoreModeLocal }

func (s *memoryStore) Find(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *memoryStore) Create(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return repository.ErrDuplicateAccount
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *memoryStore) mutate(id string, fn func(*domain.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	fn(acc)
	return nil
}

func (s *memoryStore) AddVisit(_ context.Context, id string) error {
	return s.mutate(id, func(a *domain.Account) { a.VisitCount++ })
}

func (s *memoryStore) AddRedemption(_ context.Context, id string, tierID int) error {
	return s.mutate(id, func(a *domain.Account) { a.AddRedemption(tierID) })
}

func (s *memoryStore) Ping(context.Context) error { return nil }

// memorySnapshots is an in-process SessionStore.
type memorySnapshots struct {
	mu    sync.Mutex
	items map[string]*domain.Account
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{items: make(map[string]*domain.Account)}
}

func (s *memorySnapshots) Save(_ context.Context, sid string, snap *domain.Account, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sid] = snap.Clone()
	return nil
}

func (s *memorySnapshots) Load(_ context.Context, sid string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.items[sid]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return snap.Clone(), nil
}

func (s *memorySnapshots) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sid)
	return nil
}

// eventLog captures every published event type.
type eventLog struct {
	mu    sync.Mutex
	types []events.EventType
}

func (l *eventLog) subscribe(d events.Dispatcher, types ...events.EventType) {
	for _, et := range types {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.types = append(l.types, e.Type)
			return nil
		})
	}
}

func (l *eventLog) count(et events.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.types {
		if t == et {
			n++
		}
	}
	return n
}

func newTestService(store repository.AccountStore, snapshots repository.SessionStore) (*LoyaltyService, *eventLog) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	log := &eventLog{}
	log.subscribe(dispatcher,
		events.EventAccountRegistered,
		events.EventVisitRecorded,
		events.EventTierCompleted,
		events.EventTierRedeemed,
		events.EventWriteFailed,
	)
	svc := NewLoyaltyService(Dependencies{
		Store:        store,
		Snapshots:    snapshots,
		Catalog:      tiers.Default(),
		Dispatcher:   dispatcher,
		Tokens:       auth.NewTokenManager("test-secret", time.Hour),
		Logger:       zap.NewNop(),
		Metrics:      observability.NewMetrics(),
		WriteTimeout: time.Second,
	})
	return svc, log
}

// gatedSnapshots blocks Save while armed until release is closed.
type gatedSnapshots struct {
	*memorySnapshots
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedSnapshots() *gatedSnapshots {
	return &gatedSnapshots{
		memorySnapshots: newMemorySnapshots(),
		entered:         make(chan struct{}, 1),
		release:         make(chan struct{}),
	}
}

func (g *gatedSnapshots) Save(ctx context.Context, sid string, snap *domain.Account, ttl time.Duration) error {
	if g.armed.Load() {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.memorySnapshots.Save(ctx, sid, snap, ttl)
}

// failingDeleteSnapshots rejects Delete while failing is set.
type failingDeleteSnapshots struct {
	*memorySnapshots
	failing atomic.Bool
}

func (f *failingDeleteSnapshots) Delete(ctx context.Context, sid string) error {
	if f.failing.Load() {
		return errors.New("redis: connection refused")
	}
	return f.memorySnapshots.Delete(ctx, sid)
}

// slowVisitStore holds AddVisit until release is closed.
type slowVisitStore struct {
	*memoryStore
	release chan struct{}
}

func (s *slowVisitStore) AddVisit(ctx context.Context, id string) error {
	<-s.release
	return s.memoryStore.AddVisit(ctx, id)
}
