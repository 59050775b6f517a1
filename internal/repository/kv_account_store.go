package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/guayoyo/loyalty-service/internal/domain"
)

// DefaultAccountsKey names the hash acting as the local account database.
const DefaultAccountsKey = "loyalty:accounts"

const maxTxRetries = 10

// kvAccountStore keeps every account as a JSON record in one Redis hash
// mapping account id to record. There is no uniqueness constraint, so
// existence is checked explicitly on create. Updates are serialized per
// account through a revision counter key; writers to different accounts
// never conflict.
type kvAccountStore struct {
	client *redis.Client
	key    string
}

// NewKVAccountStore returns the local fallback implementation.
func NewKVAccountStore(client *redis.Client, key string) AccountStore {
	if key == "" {
		key = DefaultAccountsKey
	}
	return &kvAccountStore{client: client, key: key}
}

func (s *kvAccountStore) Mode() domain.StoreMode {
	return domain.StoreModeLocal
}

func (s *kvAccountStore) Find(ctx context.Context, id string) (*domain.Account, error) {
	data, err := s.client.HGet(ctx, s.key, id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, "failed to read account")
	}
	return decodeAccount(data)
}

func (s *kvAccountStore) Create(ctx context.Context, account *domain.Account) error {
	if account.RedeemedTierIDs == nil {
		account.RedeemedTierIDs = []int{}
	}
	data, err := json.Marshal(account)
	if err != nil {
		return errors.Wrap(err, "failed to marshal account")
	}

	created, err := s.client.HSetNX(ctx, s.key, account.ID, data).Result()
	if err != nil {
		return errors.Wrap(err, "failed to write account")
	}
	if !created {
		return ErrDuplicateAccount
	}
	return nil
}

func (s *kvAccountStore) AddVisit(ctx context.Context, id string) error {
	return s.update(ctx, id, func(a *domain.Account) {
		a.VisitCount++
	})
}

func (s *kvAccountStore) AddRedemption(ctx context.Context, id string, tierID int) error {
	return s.update(ctx, id, func(a *domain.Account) {
		a.AddRedemption(tierID)
	})
}

func (s *kvAccountStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// revKey is the per-account counter every update bumps inside its MULTI.
// Watching it, not the shared hash, confines conflicts to one account.
func (s *kvAccountStore) revKey(id string) string {
	return s.key + ":rev:" + id
}

// update applies mutate to the stored record under WATCH so concurrent
// writers never lose an increment.
func (s *kvAccountStore) update(ctx context.Context, id string, mutate func(*domain.Account)) error {
	txf := func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, s.key, id).Bytes()
		if err != nil {
			if err == redis.Nil {
				return ErrAccountNotFound
			}
			return errors.Wrap(err, "failed to read account")
		}
		account, err := decodeAccount(data)
		if err != nil {
			return err
		}

		mutate(account)

		updated, err := json.Marshal(account)
		if err != nil {
			return errors.Wrap(err, "failed to marshal account")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, id, updated)
			pipe.Incr(ctx, s.revKey(id))
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.revKey(id))
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil && err != ErrAccountNotFound {
			return errors.Wrap(err, "failed to update account")
		}
		return err
	}
	return errors.New("failed to update account: too much contention")
}

func decodeAccount(data []byte) (*domain.Account, error) {
	var account domain.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal account")
	}
	if account.RedeemedTierIDs == nil {
		account.RedeemedTierIDs = []int{}
	}
	return &account, nil
}
