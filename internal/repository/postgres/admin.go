package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/bistro/internal/domain"
)

type AdminRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AdminRepo) With(db DB) *AdminRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AdminRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AdminRepo) CreateCustomer(ctx context.Context, name, contact string, member bool) (int64, error) {
	const op = "postgres.AdminRepo.CreateCustomer"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO customers(name, contact, member)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		name, contact, member,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *AdminRepo) CreateStaff(ctx context.Context, name string, role domain.StaffRole) (int64, error) {
	const op = "postgres.AdminRepo.CreateStaff"

	var id int64
	if err := r.handle().QueryRow(ctx,
		`INSERT INTO staff(name, role)
		 VALUES ($1, $2)
		 RETURNING id`,
		name, role,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// CreateMenuItem inserts a catalog entry and, for packages, its components.
//
// Returns:
//   - error: repository.ErrConflict if the name is taken in any letter case.
//   - error: repository.ErrNotFound if a component does not exist.
func (r *AdminRepo) CreateMenuItem(ctx context.Context, item domain.MenuItem) error {
	const op = "postgres.AdminRepo.CreateMenuItem"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`INSERT INTO menu_items(name, kind, description, price)
		 VALUES ($1, $2, $3, $4)`,
		item.Name, item.Kind, item.Description, item.Price,
	); err != nil {
		return wrapDBErr(op, err)
	}

	if len(item.Components) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, c := range item.Components {
		batch.Queue(
			`INSERT INTO menu_item_components(package_name, position, component_name)
			 VALUES ($1, $2, $3)`,
			item.Name, i, c,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// MenuItemKinds returns the kind of each named item that exists, keyed by
// the name as stored.
func (r *AdminRepo) MenuItemKinds(ctx context.Context, names []string) (map[string]domain.MenuItemKind, error) {
	const op = "postgres.AdminRepo.MenuItemKinds"

	rows, err := r.handle().Query(ctx,
		`SELECT name, kind FROM menu_items WHERE name = ANY($1)`,
		names,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	out := make(map[string]domain.MenuItemKind, len(names))
	for rows.Next() {
		var (
			name string
			kind domain.MenuItemKind
		)
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out[name] = kind
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}
