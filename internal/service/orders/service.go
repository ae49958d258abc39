package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/bistro/internal/booking"
	"github.com/kirinyoku/bistro/internal/clock"
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/ledger"
	"github.com/kirinyoku/bistro/internal/repository"
)

type CustomerDirectory interface {
	Customer(ctx context.Context, id int64) (domain.Customer, error)
}

type StaffDirectory interface {
	Staff(ctx context.Context, id int64) (domain.Staff, error)
}

type CatalogLookup interface {
	MenuItem(ctx context.Context, name string) (domain.MenuItem, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.FloorEvent) error
}

// RevenueCache drops cached reports that a payment makes stale.
type RevenueCache interface {
	InvalidateRevenue(ctx context.Context, t time.Time) error
}

type Deps struct {
	Scheduler *booking.Scheduler
	Ledger    *ledger.Ledger
	Customers CustomerDirectory
	Staff     StaffDirectory
	Catalog   CatalogLookup
	Publisher Publisher
	Cache     RevenueCache
	Clock     clock.Clock
	Logger    *slog.Logger
}

type Service struct {
	scheduler *booking.Scheduler
	ledger    *ledger.Ledger
	customers CustomerDirectory
	staff     StaffDirectory
	catalog   CatalogLookup
	publisher Publisher
	cache     RevenueCache
	clock     clock.Clock
	logger    *slog.Logger
}

func New(d Deps) *Service {
	return &Service{
		scheduler: d.Scheduler,
		ledger:    d.Ledger,
		customers: d.Customers,
		staff:     d.Staff,
		catalog:   d.Catalog,
		publisher: d.Publisher,
		cache:     d.Cache,
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

type ItemInput struct {
	Name     string
	Quantity int
}

// CreateInput describes a new order. PartySize is only used for walk-ins;
// a checked-in customer's party size comes from the reservation.
type CreateInput struct {
	StaffID    int64
	CustomerID int64
	PartySize  int
	Items      []ItemInput
}

type resolvedItem struct {
	item domain.MenuItem
	qty  int
}

// Create seats the customer, then opens and places an order for them.
// A customer already seated by a check-in or walk-in keeps that table. A
// customer holding a reserved table is checked in; anyone else is seated as
// a walk-in.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: waiter, customer, party size and initial items.
//
// Returns:
//   - domain.Order: the placed order.
//   - error: domain.ErrValidation if the staff member is not a waiter or no items are given.
//   - error: domain.ErrNotFound for an unknown staff member, customer or menu item,
//     or when no free table can seat the party.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Order, error) {
	const op = "service.orders.Create"

	if len(in.Items) == 0 {
		return domain.Order{}, domain.Validation(op, "an order needs at least one item")
	}

	if err := s.waiter(ctx, in.StaffID); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.customer(ctx, in.CustomerID); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]resolvedItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return domain.Order{}, domain.Validation(op, "quantity of %q must be at least 1", it.Name)
		}
		m, err := s.menuItem(ctx, it.Name)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, resolvedItem{item: m, qty: it.Quantity})
	}

	now := s.clock.Now()
	table, party, seated, err := s.seat(in.CustomerID, in.PartySize, now)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	o, err := s.openAndPlace(ctx, in.StaffID, in.CustomerID, table.Number, party, items, now)
	if err != nil {
		if !seated {
			if relErr := s.ledger.ReleaseSeat(table.Number); relErr != nil {
				s.logger.Error("failed to release table after order failure", "table", table.Number, "error", relErr)
			}
		}
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if !seated {
		s.publish(ctx, domain.FloorEvent{Type: domain.EventTableSeated, TableNumber: table.Number, CustomerID: in.CustomerID, At: now})
	}
	s.publish(ctx, domain.FloorEvent{Type: domain.EventOrderPlaced, TableNumber: table.Number, CustomerID: in.CustomerID, OrderID: o.ID, At: now})

	return o, nil
}

// AddItem adds a catalog item to a live order.
func (s *Service) AddItem(ctx context.Context, orderID, name string, qty int) (domain.Order, error) {
	const op = "service.orders.AddItem"

	m, err := s.menuItem(ctx, name)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	o, err := s.ledger.AddToOrder(ctx, orderID, m.Name, m.Price, qty)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	return o, nil
}

// RemoveItem removes qty of an item from a live order. An order left
// without items is discarded and its table freed.
//
// Returns:
//   - domain.Order: the order after removal.
//   - bool: true when the order was discarded.
//   - error: domain.ErrNotFound for an unknown order or item.
func (s *Service) RemoveItem(ctx context.Context, orderID, name string, qty int) (domain.Order, bool, error) {
	const op = "service.orders.RemoveItem"

	o, err := s.ledger.RemoveFromOrder(ctx, orderID, name, qty)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("%s: %w", op, err)
	}

	if !o.IsEmpty() {
		return o, false, nil
	}

	if _, err := s.ledger.Discard(orderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrState) {
			// a concurrent add or pay got there first
			return o, false, nil
		}
		return domain.Order{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return o, true, nil
}

// Pay settles an order and returns its invoice.
func (s *Service) Pay(ctx context.Context, orderID string) (domain.Order, ledger.Invoice, error) {
	const op = "service.orders.Pay"

	now := s.clock.Now()
	o, err := s.ledger.Pay(orderID, now)
	if err != nil {
		return domain.Order{}, ledger.Invoice{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateRevenue(ctx, o.CreatedAt); err != nil {
			s.logger.Warn("failed to invalidate revenue cache", "order", o.ID, "error", err)
		}
	}

	s.publish(ctx, domain.FloorEvent{Type: domain.EventOrderPaid, TableNumber: o.TableNumber, CustomerID: o.CustomerID, OrderID: o.ID, At: now})

	return o, ledger.NewInvoice(o), nil
}

func (s *Service) List(ctx context.Context) []domain.Order {
	return s.ledger.Active()
}

func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	const op = "service.orders.Get"

	o, err := s.ledger.Order(orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	return o, nil
}

// seat finds the table for a new order. seated is true when the customer
// was already sitting at it, in which case the seat outlives a failed order.
// A party size of zero on an existing seat takes the table's capacity.
func (s *Service) seat(customerID int64, partySize int, now time.Time) (table domain.Table, party int, seated bool, err error) {
	if t, ok := s.ledger.SeatedTable(customerID); ok {
		if partySize == 0 {
			partySize = t.Seats
		}
		return t, partySize, true, nil
	}

	table, party, err = s.scheduler.CheckIn(customerID, now)
	if err == nil {
		return table, party, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Table{}, 0, false, err
	}

	table, err = s.scheduler.WalkIn(customerID, partySize, now)
	if err != nil {
		return domain.Table{}, 0, false, err
	}

	return table, partySize, false, nil
}

func (s *Service) openAndPlace(
	ctx context.Context,
	staffID, customerID int64,
	table, party int,
	items []resolvedItem,
	now time.Time,
) (domain.Order, error) {
	o, err := s.ledger.Open(staffID, customerID, table, party, now)
	if err != nil {
		return domain.Order{}, err
	}

	for _, it := range items {
		if err := s.ledger.AddItem(ctx, o, it.item.Name, it.item.Price, it.qty); err != nil {
			return domain.Order{}, err
		}
	}

	if err := s.ledger.Place(o); err != nil {
		return domain.Order{}, err
	}

	return o.Clone(), nil
}

func (s *Service) waiter(ctx context.Context, staffID int64) error {
	const op = "service.orders.waiter"

	st, err := s.staff.Staff(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound(op, "staff %d", staffID)
		}
		return err
	}

	if st.Role != domain.RoleWaiter {
		return domain.Validation(op, "staff %d is a %s, only waiters take orders", staffID, st.Role)
	}

	return nil
}

func (s *Service) customer(ctx context.Context, id int64) (domain.Customer, error) {
	const op = "service.orders.customer"

	c, err := s.customers.Customer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Customer{}, domain.NotFound(op, "customer %d", id)
		}
		return domain.Customer{}, err
	}

	return c, nil
}

func (s *Service) menuItem(ctx context.Context, name string) (domain.MenuItem, error) {
	const op = "service.orders.menuItem"

	m, err := s.catalog.MenuItem(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.MenuItem{}, domain.NotFound(op, "menu item %q", name)
		}
		return domain.MenuItem{}, err
	}

	return m, nil
}

func (s *Service) publish(ctx context.Context, ev domain.FloorEvent) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish floor event", "type", ev.Type, "table", ev.TableNumber, "error", err)
	}
}
