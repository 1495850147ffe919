package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS flagged_purchases (
        id           BIGSERIAL PRIMARY KEY,
        user_id      BIGINT      NOT NULL,
        purchased_at TIMESTAMP   NOT NULL,
        amount       NUMERIC     NOT NULL,
        mean         NUMERIC     NOT NULL,
        sd           NUMERIC     NOT NULL,
        baseline     INTEGER     NOT NULL,
        degree       INTEGER     NOT NULL,
        history_size INTEGER     NOT NULL,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS flagged_purchases_purchased_at_idx
        ON flagged_purchases (purchased_at);`

	insertFlaggedSQL = `INSERT INTO flagged_purchases (
        user_id,
        purchased_at,
        amount,
        mean,
        sd,
        baseline,
        degree,
        history_size
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	selectFlaggedColumns = `SELECT
        id,
        user_id,
        purchased_at,
        amount::text,
        mean::text,
        sd::text,
        baseline,
        degree,
        history_size,
        created_at
    FROM flagged_purchases`

	listFlaggedBetweenSQL = selectFlaggedColumns + `
    WHERE purchased_at >= $1
      AND purchased_at < $2
    ORDER BY purchased_at, id;`

	listRecentFlaggedSQL = selectFlaggedColumns + `
    ORDER BY id DESC
    LIMIT $1;`

	countFlaggedSQL = `SELECT COUNT(*) FROM flagged_purchases;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// FlaggedStore persists flagged purchases.
type FlaggedStore interface {
	InsertFlagged(ctx context.Context, rec FlaggedPurchase) (FlaggedPurchase, error)
	ListFlaggedBetween(ctx context.Context, from, to time.Time) ([]FlaggedPurchase, error)
	ListRecentFlagged(ctx context.Context, limit int) ([]FlaggedPurchase, error)
	CountFlagged(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL-backed FlaggedStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the flagged_purchases table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session ends with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertFlagged persists a flagged purchase and returns it with its id.
func (s *Store) InsertFlagged(ctx context.Context, rec FlaggedPurchase) (FlaggedPurchase, error) {
	pool, err := s.getPool()
	if err != nil {
		return FlaggedPurchase{}, err
	}

	row := pool.QueryRow(ctx, insertFlaggedSQL,
		rec.UserID,
		rec.PurchasedAt,
		rec.Amount.String(),
		rec.Mean.String(),
		rec.StdDev.String(),
		rec.Baseline,
		rec.Degree,
		rec.HistorySize,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return FlaggedPurchase{}, fmt.Errorf("insert flagged purchase: %w", err)
	}
	return rec, nil
}

// ListFlaggedBetween lists flagged purchases made within [from, to).
func (s *Store) ListFlaggedBetween(ctx context.Context, from, to time.Time) ([]FlaggedPurchase, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listFlaggedBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list flagged between: %w", queryErr)
	}
	return collectFlagged(rows)
}

// ListRecentFlagged lists the most recently stored flagged purchases.
func (s *Store) ListRecentFlagged(ctx context.Context, limit int) ([]FlaggedPurchase, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentFlaggedSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent flagged: %w", queryErr)
	}
	return collectFlagged(rows)
}

// CountFlagged counts stored flagged purchases.
func (s *Store) CountFlagged(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countFlaggedSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count flagged: %w", scanErr)
	}
	return count, nil
}

func collectFlagged(rows pgx.Rows) ([]FlaggedPurchase, error) {
	defer rows.Close()

	out := make([]FlaggedPurchase, 0)
	for rows.Next() {
		rec, err := scanFlagged(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanFlagged(rows pgx.Rows) (FlaggedPurchase, error) {
	var (
		rec                        FlaggedPurchase
		amountStr, meanStr, sdStr string
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.PurchasedAt,
		&amountStr,
		&meanStr,
		&sdStr,
		&rec.Baseline,
		&rec.Degree,
		&rec.HistorySize,
		&rec.CreatedAt,
	); err != nil {
		return FlaggedPurchase{}, err
	}

	var err error
	if rec.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return FlaggedPurchase{}, fmt.Errorf("parse amount: %w", err)
	}
	if rec.Mean, err = decimal.NewFromString(meanStr); err != nil {
		return FlaggedPurchase{}, fmt.Errorf("parse mean: %w", err)
	}
	if rec.StdDev, err = decimal.NewFromString(sdStr); err != nil {
		return FlaggedPurchase{}, fmt.Errorf("parse sd: %w", err)
	}
	return rec, nil
}
