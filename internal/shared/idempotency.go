package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict reports a key that was already claimed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore records client request keys so a retried create returns
// the first result instead of writing twice. A key is claimed before the
// write and completed with a result reference after it commits.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool, now: time.Now}
}

// CheckAndInsert claims key for module, or returns ErrIdempotencyConflict
// when someone already holds it.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	key, module = strings.TrimSpace(key), strings.TrimSpace(module)
	if key == "" || module == "" {
		return Invalid("idempotency_key", "key and module are required")
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, module, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`, key, module, s.now().UTC())
	if err != nil {
		return storeErr("claim", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Complete stores the result reference of a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, ref string) error {
	if _, err := s.pool.Exec(ctx, `UPDATE idempotency_keys SET result_ref = $2 WHERE key = $1`, key, ref); err != nil {
		return storeErr("complete", err)
	}
	return nil
}

// Resolve returns the result reference of key; "" means the first request
// is still in flight.
func (s *IdempotencyStore) Resolve(ctx context.Context, key string) (string, error) {
	var ref *string
	err := s.pool.QueryRow(ctx, `SELECT result_ref FROM idempotency_keys WHERE key = $1`, key).Scan(&ref)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", fmt.Errorf("idempotency key %q: %w", key, ErrNotFound)
	case err != nil:
		return "", storeErr("resolve", err)
	case ref == nil:
		return "", nil
	}
	return *ref, nil
}

// Delete releases a claim whose write failed, so the client may retry.
func (s *IdempotencyStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key); err != nil {
		return storeErr("release", err)
	}
	return nil
}

// Cleanup removes keys older than retention and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().UTC().Add(-retention))
	if err != nil {
		return 0, storeErr("cleanup", err)
	}
	return tag.RowsAffected(), nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("idempotency %s: %w: %w", op, ErrTransientIO, err)
}
