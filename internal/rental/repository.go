package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentflow/rentflow/internal/audit"
	"github.com/rentflow/rentflow/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for rental orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	NextInvoiceNumber(ctx context.Context, branchID int64, day time.Time) (string, error)
	InsertOrder(ctx context.Context, o Order) error
	InsertItems(ctx context.Context, items []Item) error
	LockOrder(ctx context.Context, id uuid.UUID) (Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []Item) error
	UpdateItemReturns(ctx context.Context, items []Item) error
	ExpireScheduled(ctx context.Context, id uuid.UUID, now time.Time) (Order, bool, error)
	MarkOverdue(ctx context.Context, id uuid.UUID, now time.Time) (Order, bool, error)
	AppendTimeline(ctx context.Context, entry audit.Entry) (audit.Entry, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction. Serialization
// failures surface as conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `
	id, invoice_number, branch_id, customer_id, created_by, booking_date,
	start_at, end_at, status, subtotal, gst_amount, late_fee, total_amount,
	late_returned, version, created_at, updated_at`

const itemColumns = `
	id, order_id, product_name, photo_ref, quantity, price_per_day, days,
	return_status, returned_quantity, actual_return_date, late_return,
	damage_fee, damage_description`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.InvoiceNumber, &o.BranchID, &o.CustomerID, &o.CreatedBy, &o.BookingDate,
		&o.Start, &o.End, &o.Status, &o.Subtotal, &o.GSTAmount, &o.LateFee, &o.TotalAmount,
		&o.LateReturned, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductName, &it.PhotoRef, &it.Quantity, &it.PricePerDay, &it.Days,
			&it.ReturnStatus, &it.ReturnedQuantity, &it.ActualReturnDate, &it.LateReturn,
			&it.DamageFee, &it.DamageDescription,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

// GetOrder retrieves an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, db.Classify(err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return Order{}, db.Classify(err)
	}
	if o.Items, err = scanItems(rows); err != nil {
		return Order{}, db.Classify(err)
	}
	return o, nil
}

func listWhere(filter ListFilter) (string, []any) {
	where := `($1 = 0 OR branch_id = $1)`
	args := []any{filter.BranchID}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND end_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND start_at < $%d", len(args))
	}
	return where, args
}

// CountOrders counts orders whose window overlaps the filter range.
func (r *Repository) CountOrders(ctx context.Context, filter ListFilter) (int, error) {
	where, args := listWhere(filter)
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args...).Scan(&n); err != nil {
		return 0, db.Classify(err)
	}
	return int(n), nil
}

// ListOrders returns one slice of the orders whose window overlaps the filter
// range, items included. Category filtering happens in the service.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter, page OrderPage) ([]Order, error) {
	where, args := listWhere(filter)
	if page.After != nil {
		args = append(args, page.After.Start, page.After.ID)
		where += fmt.Sprintf(" AND (start_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, page.Limit)
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where +
		fmt.Sprintf(" ORDER BY start_at DESC, id DESC LIMIT $%d", len(args))
	if page.After == nil && page.Offset > 0 {
		args = append(args, page.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	var orders []Order
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, db.Classify(err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	itemRows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, db.Classify(err)
	}
	items, err := scanItems(itemRows)
	if err != nil {
		return nil, db.Classify(err)
	}
	byOrder := make(map[uuid.UUID][]Item, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

// ListExpiredScheduled returns scheduled orders whose start has passed.
// Branch 0 covers every branch.
func (r *Repository) ListExpiredScheduled(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
		SELECT id FROM orders
		WHERE status = 'scheduled' AND start_at < $2 AND ($1 = 0 OR branch_id = $1)
		ORDER BY start_at
		LIMIT $3`, branchID, now, limit)
}

// ListOverdueActive returns active orders whose window has ended.
func (r *Repository) ListOverdueActive(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `
		SELECT id FROM orders
		WHERE status = 'active' AND end_at < $2 AND ($1 = 0 OR branch_id = $1)
		ORDER BY end_at
		LIMIT $3`, branchID, now, limit)
}

func (r *Repository) listIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, db.Classify(err)
	}
	return ids, nil
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) NextInvoiceNumber(ctx context.Context, branchID int64, day time.Time) (string, error) {
	query := `
		INSERT INTO invoice_sequences (branch_id, day, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (branch_id, day) DO UPDATE SET last_seq = invoice_sequences.last_seq + 1
		RETURNING last_seq`
	var seq int64
	if err := t.tx.QueryRow(ctx, query, branchID, day.Format(dateLayout)).Scan(&seq); err != nil {
		return "", err
	}
	return formatInvoiceNumber(branchID, day, seq), nil
}

func formatInvoiceNumber(branchID int64, day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%d-%s-%04d", branchID, day.Format("20060102"), seq)
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := t.tx.Exec(ctx, query,
		o.ID, o.InvoiceNumber, o.BranchID, o.CustomerID, o.CreatedBy, o.BookingDate,
		o.Start, o.End, o.Status, o.Subtotal, o.GSTAmount, o.LateFee, o.TotalAmount,
		o.LateReturned, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (t *txRepo) InsertItems(ctx context.Context, items []Item) error {
	query := `
		INSERT INTO order_items (` + itemColumns + `, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	batch := &pgx.Batch{}
	for pos, it := range items {
		batch.Queue(query,
			it.ID, it.OrderID, it.ProductName, it.PhotoRef, it.Quantity, it.PricePerDay, it.Days,
			it.ReturnStatus, it.ReturnedQuantity, it.ActualReturnDate, it.LateReturn,
			it.DamageFee, it.DamageDescription, pos,
		)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) LockOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return Order{}, err
	}
	if o.Items, err = scanItems(rows); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (t *txRepo) UpdateOrder(ctx context.Context, o Order) error {
	query := `
		UPDATE orders SET
			start_at = $2, end_at = $3, status = $4, subtotal = $5, gst_amount = $6,
			late_fee = $7, total_amount = $8, late_returned = $9, version = $10, updated_at = $11
		WHERE id = $1`
	cmdTag, err := t.tx.Exec(ctx, query,
		o.ID, o.Start, o.End, o.Status, o.Subtotal, o.GSTAmount,
		o.LateFee, o.TotalAmount, o.LateReturned, o.Version, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepo) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	return t.InsertItems(ctx, items)
}

func (t *txRepo) UpdateItemReturns(ctx context.Context, items []Item) error {
	query := `
		UPDATE order_items SET
			return_status = $2, returned_quantity = $3, actual_return_date = $4,
			late_return = $5, damage_fee = $6, damage_description = $7
		WHERE id = $1`
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(query,
			it.ID, it.ReturnStatus, it.ReturnedQuantity, it.ActualReturnDate,
			it.LateReturn, it.DamageFee, it.DamageDescription,
		)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) ExpireScheduled(ctx context.Context, id uuid.UUID, now time.Time) (Order, bool, error) {
	query := `
		UPDATE orders SET status = 'cancelled', version = version + 1, updated_at = $2
		WHERE id = $1 AND status = 'scheduled' AND start_at < $2
		RETURNING ` + orderColumns
	return conditionalUpdate(t.tx.QueryRow(ctx, query, id, now))
}

func (t *txRepo) MarkOverdue(ctx context.Context, id uuid.UUID, now time.Time) (Order, bool, error) {
	query := `
		UPDATE orders SET status = 'pending_return', version = version + 1, updated_at = $2
		WHERE id = $1 AND status = 'active' AND end_at < $2
		RETURNING ` + orderColumns
	return conditionalUpdate(t.tx.QueryRow(ctx, query, id, now))
}

// conditionalUpdate treats zero affected rows as someone else having won.
func conditionalUpdate(row pgx.Row) (Order, bool, error) {
	o, err := scanOrder(row)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (t *txRepo) AppendTimeline(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	return audit.Append(ctx, t.tx, entry)
}
