package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/bistro/internal/domain"
)

// DirectoryRepo resolves customers, staff and catalog entries.
type DirectoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *DirectoryRepo) With(db DB) *DirectoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *DirectoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Customer retrieves a customer by id.
//
// Returns:
//   - error: repository.ErrNotFound if the customer does not exist.
func (r *DirectoryRepo) Customer(ctx context.Context, id int64) (domain.Customer, error) {
	const op = "postgres.DirectoryRepo.Customer"

	var c domain.Customer
	err := r.handle().QueryRow(ctx,
		`SELECT id, name, contact, member FROM customers WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Contact, &c.Member)
	if err != nil {
		return domain.Customer{}, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *DirectoryRepo) IsMember(ctx context.Context, customerID int64) (bool, error) {
	const op = "postgres.DirectoryRepo.IsMember"

	var member bool
	err := r.handle().QueryRow(ctx,
		`SELECT member FROM customers WHERE id = $1`,
		customerID,
	).Scan(&member)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return member, nil
}

func (r *DirectoryRepo) Staff(ctx context.Context, id int64) (domain.Staff, error) {
	const op = "postgres.DirectoryRepo.Staff"

	var s domain.Staff
	err := r.handle().QueryRow(ctx,
		`SELECT id, name, role FROM staff WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Role)
	if err != nil {
		return domain.Staff{}, wrapDBErr(op, err)
	}

	return s, nil
}

// MenuItem looks an item up by name, ignoring case, and returns it under its
// catalog spelling.
func (r *DirectoryRepo) MenuItem(ctx context.Context, name string) (domain.MenuItem, error) {
	const op = "postgres.DirectoryRepo.MenuItem"

	db := r.handle()

	var m domain.MenuItem
	err := db.QueryRow(ctx,
		`SELECT name, kind, description, price
		 FROM menu_items WHERE lower(name) = lower($1)`,
		name,
	).Scan(&m.Name, &m.Kind, &m.Description, &m.Price)
	if err != nil {
		return domain.MenuItem{}, wrapDBErr(op, err)
	}

	if m.Kind != domain.MenuItemPackage {
		return m, nil
	}

	rows, err := db.Query(ctx,
		`SELECT component_name FROM menu_item_components
		 WHERE package_name = $1
		 ORDER BY position`,
		m.Name,
	)
	if err != nil {
		return domain.MenuItem{}, wrapDBErr(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return domain.MenuItem{}, wrapDBErr(op, err)
		}
		m.Components = append(m.Components, c)
	}

	if err := rows.Err(); err != nil {
		return domain.MenuItem{}, wrapDBErr(op, err)
	}

	return m, nil
}
