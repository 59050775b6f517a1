package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guayoyo/loyalty-service/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type pgAccountStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountStore returns the remote-backend implementation. Visit
// counts are derived from the visits relation, never stored.
func NewPostgresAccountStore(pool *pgxpool.Pool) AccountStore {
	return &pgAccountStore{pool: pool}
}

func (s *pgAccountStore) Mode() domain.StoreMode {
	return domain.StoreModeRemote
}

func (s *pgAccountStore) Find(ctx context.Context, id string) (*domain.Account, error) {
	const profileQuery = `
        SELECT id, display_name, contact, created_at
        FROM profiles WHERE id=$1`

	var account domain.Account
	if err := s.pool.QueryRow(ctx, profileQuery, id).Scan(
		&account.ID,
		&account.DisplayName,
		&account.Contact,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM visits WHERE account_id=$1`
	if err := s.pool.QueryRow(ctx, countQuery, id).Scan(&account.VisitCount); err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}

	const redemptionsQuery = `
        SELECT tier_id FROM redemptions
        WHERE account_id=$1
        ORDER BY tier_id`

	rows, err := s.pool.Query(ctx, redemptionsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	tierIDs, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("scan redemptions: %w", err)
	}
	if tierIDs == nil {
		tierIDs = []int{}
	}
	account.RedeemedTierIDs = tierIDs

	return &account, nil
}

func (s *pgAccountStore) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO profiles (id, display_name, contact)
        VALUES ($1, $2, $3)
        RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		account.ID,
		account.DisplayName,
		account.Contact,
	).Scan(&account.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *pgAccountStore) AddVisit(ctx context.Context, id string) error {
	const query = `INSERT INTO visits (account_id) VALUES ($1)`

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return ErrAccountNotFound
		}
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (s *pgAccountStore) AddRedemption(ctx context.Context, id string, tierID int) error {
	const query = `
        INSERT INTO redemptions (account_id, tier_id)
        VALUES ($1, $2)
        ON CONFLICT (account_id, tier_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, id, tierID); err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return ErrAccountNotFound
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

func (s *pgAccountStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
