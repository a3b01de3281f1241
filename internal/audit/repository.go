package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx so entries can be
// appended inside the caller's transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Append writes an entry using q. There is deliberately no update or delete path.
func Append(ctx context.Context, q Querier, entry Entry) (Entry, error) {
	if !entry.Action.IsValid() {
		return Entry{}, fmt.Errorf("audit: unknown action %q", entry.Action)
	}
	const query = `
		INSERT INTO order_timeline (order_id, action, previous_status, new_status, notes, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := q.QueryRow(ctx, query,
		entry.OrderID, entry.Action, entry.PreviousStatus, entry.NewStatus,
		entry.Notes, entry.ActorID, entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return Entry{}, fmt.Errorf("audit: append: %w", err)
	}
	return entry, nil
}

// PGRepository reads timelines from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL timeline repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListTimeline returns entries oldest first.
func (r *PGRepository) ListTimeline(ctx context.Context, orderID uuid.UUID, offset, limit int) ([]Entry, error) {
	const query = `
		SELECT id, order_id, action, previous_status, new_status, notes, actor_id, created_at
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
		OFFSET $2 LIMIT $3`
	rows, err := r.pool.Query(ctx, query, orderID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Action, &e.PreviousStatus, &e.NewStatus, &e.Notes, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
