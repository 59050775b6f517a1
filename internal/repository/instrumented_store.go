package repository

import (
	"context"

	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/observability"
)

type instrumentedStore struct {
	next    AccountStore
	metrics *observability.Metrics
}

// Instrument decorates store so every call is counted by mode and outcome.
// Not-found and duplicate results count as successful calls.
func Instrument(store AccountStore, metrics *observability.Metrics) AccountStore {
	if metrics == nil {
		return store
	}
	return &instrumentedStore{next: store, metrics: metrics}
}

func (s *instrumentedStore) record(op string, err error) {
	if err == ErrAccountNotFound || err == ErrDuplicateAccount {
		err = nil
	}
	s.metrics.RecordStoreOp(string(s.next.Mode()), op, err)
}

func (s *instrumentedStore) Mode() domain.StoreMode {
	return s.next.Mode()
}

func (s *instrumentedStore) Find(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.next.Find(ctx, id)
	s.record("find", err)
	return account, err
}

func (s *instrumentedStore) Create(ctx context.Context, account *domain.Account) error {
	err := s.next.Create(ctx, account)
	s.record("create", err)
	return err
}

func (s *instrumentedStore) AddVisit(ctx context.Context, id string) error {
	err := s.next.AddVisit(ctx, id)
	s.record("add_visit", err)
	if err == nil {
		s.metrics.RecordVisit()
	}
	return err
}

func (s *instrumentedStore) AddRedemption(ctx context.Context, id string, tierID int) error {
	err := s.next.AddRedemption(ctx, id, tierID)
	s.record("add_redemption", err)
	if err == nil {
		s.metrics.RecordRedemption()
	}
	return err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
