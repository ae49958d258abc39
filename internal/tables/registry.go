package tables

import (
	"sync"

	"github.com/kirinyoku/bistro/internal/domain"
)

// Registry owns the fixed set of tables. Every status change goes through
// one of its transition methods, each an atomic read-modify-write.
type Registry struct {
	mu     sync.Mutex
	tables []domain.Table
}

// New creates one available table per capacity, numbered from 1 in the
// given order.
func New(capacities []int) (*Registry, error) {
	const op = "tables.New"

	if len(capacities) == 0 {
		return nil, domain.Validation(op, "at least one table is required")
	}

	tables := make([]domain.Table, 0, len(capacities))
	for i, seats := range capacities {
		if seats <= 0 {
			return nil, domain.Validation(op, "table %d has %d seats", i+1, seats)
		}
		tables = append(tables, domain.Table{
			Number: i + 1,
			Seats:  seats,
			Status: domain.TableAvailable,
		})
	}

	return &Registry{tables: tables}, nil
}

func (r *Registry) Len() int {
	return len(r.tables)
}

// Tables returns a snapshot in definition order.
func (r *Registry) Tables() []domain.Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Table, len(r.tables))
	copy(out, r.tables)
	return out
}

func (r *Registry) Lookup(number int) (domain.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get("tables.Lookup", number)
	if err != nil {
		return domain.Table{}, err
	}
	return *t, nil
}

// MarkReserved holds an available table for a customer. Re-marking a table
// already reserved by the same customer is a no-op.
func (r *Registry) MarkReserved(number int, customerID int64) error {
	const op = "tables.MarkReserved"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(op, number)
	if err != nil {
		return err
	}

	switch {
	case t.Status == domain.TableAvailable:
	case t.Status == domain.TableReserved && t.Occupant == customerID:
	default:
		return domain.Conflict(op, "table %d is %s by customer %d", number, t.Status, t.Occupant)
	}

	t.Status = domain.TableReserved
	t.Occupant = customerID
	return nil
}

// MarkOccupied seats a customer at an available or reserved table.
func (r *Registry) MarkOccupied(number int, customerID int64) error {
	const op = "tables.MarkOccupied"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(op, number)
	if err != nil {
		return err
	}

	if t.Status == domain.TableOccupied {
		if t.Occupant == customerID {
			return nil
		}
		return domain.Conflict(op, "table %d is occupied by customer %d", number, t.Occupant)
	}

	t.Status = domain.TableOccupied
	t.Occupant = customerID
	return nil
}

// Release drops a reservation hold. Occupied tables are left untouched.
func (r *Registry) Release(number int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get("tables.Release", number)
	if err != nil {
		return err
	}

	if t.Status == domain.TableReserved {
		t.Status = domain.TableAvailable
		t.Occupant = 0
	}
	return nil
}

// Free makes a reserved or occupied table available again.
func (r *Registry) Free(number int) error {
	const op = "tables.Free"

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.get(op, number)
	if err != nil {
		return err
	}

	if t.Status == domain.TableAvailable {
		return domain.State(op, "table %d is already available", number)
	}

	t.Status = domain.TableAvailable
	t.Occupant = 0
	return nil
}

func (r *Registry) get(op string, number int) (*domain.Table, error) {
	if number < 1 || number > len(r.tables) {
		return nil, domain.NotFound(op, "table %d", number)
	}
	return &r.tables[number-1], nil
}
