package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/bistro/internal/domain"
)

const (
	orderStatusActive    = "active"
	orderStatusCompleted = "completed"
)

type OrderRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *OrderRepo) ListActive(ctx context.Context) ([]domain.Order, error) {
	return r.listByStatus(ctx, orderStatusActive)
}

func (r *OrderRepo) ListCompleted(ctx context.Context) ([]domain.Order, error) {
	return r.listByStatus(ctx, orderStatusCompleted)
}

// SaveSnapshot replaces the active orders and appends completed orders that
// are not stored yet. An order that moved from active to completed is
// rewritten with its completed status.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - active: every live order.
//   - completed: every paid order; already stored ones are skipped.
//
// Returns:
//   - error: any database error.
func (r *OrderRepo) SaveSnapshot(ctx context.Context, active, completed []domain.Order) error {
	const op = "postgres.OrderRepo.SaveSnapshot"

	db := r.handle()

	if _, err := db.Exec(ctx, `DELETE FROM orders WHERE status = $1`, orderStatusActive); err != nil {
		return wrapDBErr(op, err)
	}

	batch := &pgx.Batch{}
	for _, o := range completed {
		queueOrder(batch, o, orderStatusCompleted)
	}
	for _, o := range active {
		queueOrder(batch, o, orderStatusActive)
	}

	if batch.Len() == 0 {
		return nil
	}

	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// queueOrder inserts the order and its items only when the order row is new.
func queueOrder(batch *pgx.Batch, o domain.Order, status string) {
	var paidAt *time.Time
	if !o.PaidAt.IsZero() {
		paidAt = &o.PaidAt
	}

	batch.Queue(
		`INSERT INTO orders(id, status, staff_id, customer_id, table_number, party_size,
		                    member, original_total, nett_total, created_at, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		o.ID, status, o.StaffID, o.CustomerID, o.TableNumber, o.PartySize,
		o.Member, o.OriginalTotal, o.NettTotal, o.CreatedAt, paidAt,
	)

	for i, it := range o.Items {
		batch.Queue(
			`INSERT INTO order_items(order_id, position, name, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (order_id, position) DO NOTHING`,
			o.ID, i, it.Name, it.UnitPrice, it.Quantity,
		)
	}
}

func (r *OrderRepo) listByStatus(ctx context.Context, status string) ([]domain.Order, error) {
	const op = "postgres.OrderRepo.listByStatus"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, staff_id, customer_id, table_number, party_size,
		        member, original_total, nett_total, created_at, paid_at
		 FROM orders
		 WHERE status = $1
		 ORDER BY created_at, id`,
		status,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			o      domain.Order
			paidAt *time.Time
		)
		if err := rows.Scan(
			&o.ID, &o.StaffID, &o.CustomerID, &o.TableNumber, &o.PartySize,
			&o.Member, &o.OriginalTotal, &o.NettTotal, &o.CreatedAt, &paidAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if paidAt != nil {
			o.PaidAt = *paidAt
		}
		o.Items = []domain.OrderItem{}
		index[o.ID] = len(out)
		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if len(out) == 0 {
		return out, nil
	}

	itemRows, err := db.Query(ctx,
		`SELECT i.order_id, i.name, i.unit_price, i.quantity
		 FROM order_items i
		 JOIN orders o ON o.id = i.order_id
		 WHERE o.status = $1
		 ORDER BY i.order_id, i.position`,
		status,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID string
			it      domain.OrderItem
		)
		if err := itemRows.Scan(&orderID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, wrapDBErr(op, err)
		}
		if i, ok := index[orderID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}

	if err := itemRows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
