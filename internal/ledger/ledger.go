package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/tables"
)

// MembershipLookup reports whether a customer receives the member discount.
type MembershipLookup interface {
	IsMember(ctx context.Context, customerID int64) (bool, error)
}

type Config struct {
	MinPartySize int
	MaxPartySize int
}

// Ledger holds active and completed orders. Every mutation of a placed order
// runs under the ledger mutex.
type Ledger struct {
	mu        sync.Mutex
	registry  *tables.Registry
	members   MembershipLookup
	cfg       Config
	active    map[string]*domain.Order
	sequence  []string
	completed []domain.Order
	paidIDs   map[string]struct{}
}

func New(registry *tables.Registry, members MembershipLookup, cfg Config) *Ledger {
	if cfg.MinPartySize <= 0 {
		cfg.MinPartySize = 1
	}

	if cfg.MaxPartySize < cfg.MinPartySize {
		cfg.MaxPartySize = 10
	}

	return &Ledger{
		registry: registry,
		members:  members,
		cfg:      cfg,
		active:   make(map[string]*domain.Order),
		paidIDs:  make(map[string]struct{}),
	}
}

// OrderID derives an order id from the creation instant (to the millisecond)
// followed by the table number.
func OrderID(now time.Time, table int) string {
	stamp := strings.ReplaceAll(now.Format("20060102150405.000"), ".", "")
	return stamp + strconv.Itoa(table)
}

// Open starts a draft order. The draft is not active until Place.
func (l *Ledger) Open(staffID, customerID int64, table, partySize int, now time.Time) (*domain.Order, error) {
	const op = "ledger.Open"

	if partySize < l.cfg.MinPartySize || partySize > l.cfg.MaxPartySize {
		return nil, domain.Validation(op, "party size must be between %d and %d, got %d",
			l.cfg.MinPartySize, l.cfg.MaxPartySize, partySize)
	}

	if _, err := l.registry.Lookup(table); err != nil {
		return nil, err
	}

	return &domain.Order{
		ID:          OrderID(now, table),
		StaffID:     staffID,
		CustomerID:  customerID,
		TableNumber: table,
		PartySize:   partySize,
		Items:       []domain.OrderItem{},
		CreatedAt:   now,
	}, nil
}

// AddItem merges qty of the named item into the order, or appends it. An
// existing line keeps its original unit price.
//
// Parameters:
//   - o: a draft order not yet handed to Place.
//   - name, unitPrice: the catalog entry being ordered.
//   - qty: at least 1.
//
// Returns:
//   - error: domain.ErrValidation for a bad quantity or item, or the
//     membership lookup error, in which case the order is unchanged.
func (l *Ledger) AddItem(ctx context.Context, o *domain.Order, name string, unitPrice float64, qty int) error {
	const op = "ledger.AddItem"

	if err := checkAdd(op, name, unitPrice, qty); err != nil {
		return err
	}

	member, err := l.isMember(ctx, o.CustomerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	addItem(o, name, unitPrice, qty, member)

	return nil
}

// RemoveItem decrements the named item on a draft order. The order itself
// stays even when it becomes empty.
func (l *Ledger) RemoveItem(ctx context.Context, o *domain.Order, name string, qty int) error {
	const op = "ledger.RemoveItem"

	if qty < 1 {
		return domain.Validation(op, "quantity must be at least 1, got %d", qty)
	}

	member, err := l.isMember(ctx, o.CustomerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return removeItem(op, o, name, qty, member)
}

// AddToOrder adds qty of an item to a live order. Membership is looked up
// before the ledger lock is taken.
func (l *Ledger) AddToOrder(ctx context.Context, id, name string, unitPrice float64, qty int) (domain.Order, error) {
	const op = "ledger.AddToOrder"

	if err := checkAdd(op, name, unitPrice, qty); err != nil {
		return domain.Order{}, err
	}

	member, err := l.memberOf(ctx, op, id)
	if err != nil {
		return domain.Order{}, err
	}

	return l.Update(ctx, id, func(o *domain.Order) error {
		addItem(o, name, unitPrice, qty, member)
		return nil
	})
}

// RemoveFromOrder decrements an item on a live order. The order stays
// active even when it becomes empty.
func (l *Ledger) RemoveFromOrder(ctx context.Context, id, name string, qty int) (domain.Order, error) {
	const op = "ledger.RemoveFromOrder"

	if qty < 1 {
		return domain.Order{}, domain.Validation(op, "quantity must be at least 1, got %d", qty)
	}

	member, err := l.memberOf(ctx, op, id)
	if err != nil {
		return domain.Order{}, err
	}

	return l.Update(ctx, id, func(o *domain.Order) error {
		return removeItem(op, o, name, qty, member)
	})
}

// Recompute refreshes both totals from the items.
func (l *Ledger) Recompute(ctx context.Context, o *domain.Order) error {
	const op = "ledger.Recompute"

	member, err := l.isMember(ctx, o.CustomerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	recompute(o, member)

	return nil
}

// Place moves a draft with at least one item into the active set and marks
// its table occupied by the customer.
func (l *Ledger) Place(o *domain.Order) error {
	const op = "ledger.Place"

	if o.IsEmpty() {
		return domain.State(op, "order %s has no items", o.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.known(o.ID) {
		return domain.Conflict(op, "order %s already exists", o.ID)
	}

	if err := l.registry.MarkOccupied(o.TableNumber, o.CustomerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	cp := o.Clone()
	l.active[cp.ID] = &cp
	l.sequence = append(l.sequence, cp.ID)

	return nil
}

// Update runs fn against a live order. If fn fails the order is restored.
// fn runs with the ledger mutex held and must not block.
func (l *Ledger) Update(ctx context.Context, id string, fn func(o *domain.Order) error) (domain.Order, error) {
	const op = "ledger.Update"

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.active[id]
	if !ok {
		return domain.Order{}, domain.NotFound(op, "order %s", id)
	}

	before := o.Clone()
	if err := fn(o); err != nil {
		*o = before
		return domain.Order{}, err
	}

	return o.Clone(), nil
}

// Pay completes an order. The table is freed unless another active order
// still sits on it.
//
// Returns:
//   - domain.Order: the completed order.
//   - error: domain.ErrNotFound for an unknown id, domain.ErrState for an
//     order without items.
func (l *Ledger) Pay(id string, now time.Time) (domain.Order, error) {
	const op = "ledger.Pay"

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.active[id]
	if !ok {
		return domain.Order{}, domain.NotFound(op, "order %s", id)
	}

	if o.IsEmpty() {
		return domain.Order{}, domain.State(op, "order %s has no items", id)
	}

	if err := l.freeTable(id, o.TableNumber); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	paid := o.Clone()
	paid.PaidAt = now
	l.drop(id)
	l.completed = append(l.completed, paid)
	l.paidIDs[id] = struct{}{}

	return paid.Clone(), nil
}

// Discard removes an emptied active order and frees its table.
func (l *Ledger) Discard(id string) (domain.Order, error) {
	const op = "ledger.Discard"

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.active[id]
	if !ok {
		return domain.Order{}, domain.NotFound(op, "order %s", id)
	}

	if !o.IsEmpty() {
		return domain.Order{}, domain.State(op, "order %s still has items", id)
	}

	if err := l.freeTable(id, o.TableNumber); err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	out := o.Clone()
	l.drop(id)

	return out, nil
}

// ReleaseSeat frees a table seated for an order that was never placed. The
// table stays occupied while any active order sits on it.
func (l *Ledger) ReleaseSeat(table int) error {
	const op = "ledger.ReleaseSeat"

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.freeTable("", table); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SeatedTable returns the table customerID already occupies without an
// active order on it, as left behind by a check-in or walk-in.
func (l *Ledger) SeatedTable(customerID int64) (domain.Table, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.registry.Tables() {
		if t.Status != domain.TableOccupied || t.Occupant != customerID {
			continue
		}
		if l.ordered(t.Number) {
			continue
		}
		return t, true
	}
	return domain.Table{}, false
}

// Active returns live orders in placement order.
func (l *Ledger) Active() []domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Order, 0, len(l.sequence))
	for _, id := range l.sequence {
		out = append(out, l.active[id].Clone())
	}
	return out
}

func (l *Ledger) Order(id string) (domain.Order, error) {
	const op = "ledger.Order"

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.active[id]
	if !ok {
		return domain.Order{}, domain.NotFound(op, "order %s", id)
	}
	return o.Clone(), nil
}

// Completed returns paid orders in payment order.
func (l *Ledger) Completed() []domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Order, 0, len(l.completed))
	for _, o := range l.completed {
		out = append(out, o.Clone())
	}
	return out
}

// Restore replaces the ledger contents. Active orders get fresh totals and
// their tables are marked occupied again; completed orders are kept as
// recorded. On error the ledger and the table registry are left as they were.
func (l *Ledger) Restore(ctx context.Context, active, completed []domain.Order) error {
	const op = "ledger.Restore"

	restored := make(map[string]*domain.Order, len(active))
	sequence := make([]string, 0, len(active))
	paidIDs := make(map[string]struct{}, len(completed))
	claims := make(map[int]int64, len(active))

	for _, o := range completed {
		if _, dup := paidIDs[o.ID]; dup {
			return domain.Conflict(op, "duplicate completed order %s", o.ID)
		}
		paidIDs[o.ID] = struct{}{}
	}

	for _, o := range active {
		if _, dup := restored[o.ID]; dup {
			return domain.Conflict(op, "duplicate active order %s", o.ID)
		}
		if _, dup := paidIDs[o.ID]; dup {
			return domain.Conflict(op, "order %s is both active and completed", o.ID)
		}
		if o.IsEmpty() {
			return domain.State(op, "active order %s has no items", o.ID)
		}
		if owner, ok := claims[o.TableNumber]; ok && owner != o.CustomerID {
			return domain.Conflict(op, "table %d is claimed by customers %d and %d", o.TableNumber, owner, o.CustomerID)
		}
		claims[o.TableNumber] = o.CustomerID

		cp := o.Clone()
		if err := l.Recompute(ctx, &cp); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		restored[cp.ID] = &cp
		sequence = append(sequence, cp.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var marked []domain.Table
	for _, id := range sequence {
		o := restored[id]
		prev, err := l.registry.Lookup(o.TableNumber)
		if err == nil {
			err = l.registry.MarkOccupied(o.TableNumber, o.CustomerID)
		}
		if err != nil {
			l.unmark(marked)
			return fmt.Errorf("%s: order %s: %w", op, id, err)
		}
		if prev.Status != domain.TableOccupied {
			marked = append(marked, prev)
		}
	}

	l.active = restored
	l.sequence = sequence
	l.completed = make([]domain.Order, 0, len(completed))
	for _, o := range completed {
		l.completed = append(l.completed, o.Clone())
	}
	l.paidIDs = paidIDs

	return nil
}

func (l *Ledger) ExportActive() []domain.Order {
	return l.Active()
}

func (l *Ledger) ExportCompleted() []domain.Order {
	return l.Completed()
}

func (l *Ledger) isMember(ctx context.Context, customerID int64) (bool, error) {
	if l.members == nil {
		return false, nil
	}
	return l.members.IsMember(ctx, customerID)
}

// memberOf resolves the membership of the customer behind a live order.
func (l *Ledger) memberOf(ctx context.Context, op, id string) (bool, error) {
	l.mu.Lock()
	o, ok := l.active[id]
	var customerID int64
	if ok {
		customerID = o.CustomerID
	}
	l.mu.Unlock()

	if !ok {
		return false, domain.NotFound(op, "order %s", id)
	}

	member, err := l.isMember(ctx, customerID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return member, nil
}

func (l *Ledger) known(id string) bool {
	if _, ok := l.active[id]; ok {
		return true
	}
	_, ok := l.paidIDs[id]
	return ok
}

// freeTable must be called with l.mu held.
func (l *Ledger) freeTable(id string, table int) error {
	for other, o := range l.active {
		if other != id && o.TableNumber == table {
			return nil
		}
	}
	return l.registry.Free(table)
}

// ordered must be called with l.mu held.
func (l *Ledger) ordered(table int) bool {
	for _, o := range l.active {
		if o.TableNumber == table {
			return true
		}
	}
	return false
}

// unmark puts tables back to the state recorded before Restore touched them.
// It must be called with l.mu held.
func (l *Ledger) unmark(prev []domain.Table) {
	for i := len(prev) - 1; i >= 0; i-- {
		t := prev[i]
		_ = l.registry.Free(t.Number)
		if t.Status == domain.TableReserved {
			_ = l.registry.MarkReserved(t.Number, t.Occupant)
		}
	}
}

// drop must be called with l.mu held.
func (l *Ledger) drop(id string) {
	delete(l.active, id)
	for i, v := range l.sequence {
		if v == id {
			l.sequence = append(l.sequence[:i], l.sequence[i+1:]...)
			break
		}
	}
}

func checkAdd(op, name string, unitPrice float64, qty int) error {
	if qty < 1 {
		return domain.Validation(op, "quantity must be at least 1, got %d", qty)
	}
	if name == "" || unitPrice < 0 {
		return domain.Validation(op, "item must have a name and a non-negative price")
	}
	return nil
}

func addItem(o *domain.Order, name string, unitPrice float64, qty int, member bool) {
	merged := false
	for i := range o.Items {
		if o.Items[i].Name == name {
			o.Items[i].Quantity += qty
			merged = true
			break
		}
	}

	if !merged {
		o.Items = append(o.Items, domain.OrderItem{Name: name, UnitPrice: unitPrice, Quantity: qty})
	}

	recompute(o, member)
}

// removeItem drops the line once its quantity reaches zero or below, so
// removing more than was ordered clears the line.
func removeItem(op string, o *domain.Order, name string, qty int, member bool) error {
	idx := -1
	for i := range o.Items {
		if o.Items[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.NotFound(op, "item %q is not on order %s", name, o.ID)
	}

	o.Items[idx].Quantity -= qty
	if o.Items[idx].Quantity <= 0 {
		o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
	}

	recompute(o, member)

	return nil
}

func recompute(o *domain.Order, member bool) {
	var original float64
	for _, it := range o.Items {
		original += it.UnitPrice * float64(it.Quantity)
	}

	o.Member = member
	o.OriginalTotal = original
	o.NettTotal = Nett(original, member)
}
