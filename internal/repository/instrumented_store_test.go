package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/guayoyo/loyalty-service/internal/domain"
	"github.com/guayoyo/loyalty-service/internal/observability"
)

type stubStore struct {
	err error
}

func (s *stubStore) Mode() domain.StoreMode { return domain.StoreModeLocal }
func (s *stubStore) Find(context.Context, string) (*domain.Account, error) {
	return nil, s.err
}
func (s *stubStore) Create(context.Context, *domain.Account) error    { return s.err }
func (s *stubStore) AddVisit(context.Context, string) error           { return s.err }
func (s *stubStore) AddRedemption(context.Context, string, int) error { return s.err }
func (s *stubStore) Ping(context.Context) error                       { return s.err }

func TestInstrumentPassesThrough(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	store := Instrument(&stubStore{err: boom}, observability.NewMetrics())
	assert.Equal(t, domain.StoreModeLocal, store.Mode())
	assert.ErrorIs(t, store.AddVisit(ctx, "1"), boom)
	assert.ErrorIs(t, store.AddRedemption(ctx, "1", 1), boom)

	store = Instrument(&stubStore{err: ErrAccountNotFound}, observability.NewMetrics())
	_, err := store.Find(ctx, "1")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestInstrumentNilMetrics(t *testing.T) {
	inner := &stubStore{}
	assert.Same(t, AccountStore(inner), Instrument(inner, nil))
}
