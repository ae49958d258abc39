package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/bistro/internal/domain"
)

type ReservationRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ReservationRepo) With(db DB) *ReservationRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ReservationRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// List returns every stored reservation ordered by start time.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//
// Returns:
//   - []domain.Reservation: stored reservations, possibly empty.
//   - error: any database error.
func (r *ReservationRepo) List(ctx context.Context) ([]domain.Reservation, error) {
	const op = "postgres.ReservationRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, table_number, customer_id, customer_name, customer_contact,
		        party_size, starts_at, duration_hours
		 FROM reservations
		 ORDER BY starts_at, id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := make([]domain.Reservation, 0)
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(
			&res.ID, &res.TableNumber, &res.CustomerID, &res.CustomerName, &res.CustomerContact,
			&res.PartySize, &res.Start, &res.DurationHours,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, res)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// ReplaceAll overwrites the stored calendar with reservations. Run it inside
// a unit of work so readers never observe an empty table.
func (r *ReservationRepo) ReplaceAll(ctx context.Context, reservations []domain.Reservation) error {
	const op = "postgres.ReservationRepo.ReplaceAll"

	db := r.handle()

	if _, err := db.Exec(ctx, `DELETE FROM reservations`); err != nil {
		return wrapDBErr(op, err)
	}

	if len(reservations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, res := range reservations {
		batch.Queue(
			`INSERT INTO reservations(id, table_number, customer_id, customer_name, customer_contact,
			                          party_size, starts_at, duration_hours)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			res.ID, res.TableNumber, res.CustomerID, res.CustomerName, res.CustomerContact,
			res.PartySize, res.Start, res.DurationHours,
		)
	}

	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
