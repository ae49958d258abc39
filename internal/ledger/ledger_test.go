package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/tables"
)

type fakeMembers struct {
	members map[int64]bool
	err     error
}

func (f *fakeMembers) IsMember(_ context.Context, customerID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.members[customerID], nil
}

var now = time.Date(2026, 10, 20, 12, 30, 45, 123_000_000, time.UTC)

func newLedger(t *testing.T, members *fakeMembers) (*Ledger, *tables.Registry) {
	t.Helper()
	reg, err := tables.New([]int{2, 4, 4, 6, 10})
	if err != nil {
		t.Fatalf("tables.New: %v", err)
	}
	if members == nil {
		members = &fakeMembers{}
	}
	return New(reg, members, Config{}), reg
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func placed(t *testing.T, l *Ledger, customerID int64, table int, at time.Time) domain.Order {
	t.Helper()
	o, err := l.Open(1, customerID, table, 2, at)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.AddItem(context.Background(), o, "Burger", 12.5, 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := l.Place(o); err != nil {
		t.Fatalf("Place: %v", err)
	}
	return *o
}

func TestOrderID(t *testing.T) {
	if got, want := OrderID(now, 3), "202610201230451233"; got != want {
		t.Fatalf("OrderID = %q, want %q", got, want)
	}
	if got, want := OrderID(now.Truncate(time.Second), 10), "2026102012304500010"; got != want {
		t.Fatalf("OrderID = %q, want %q", got, want)
	}
}

func TestOpenValidation(t *testing.T) {
	l, _ := newLedger(t, nil)

	if _, err := l.Open(1, 1, 9, 2, now); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown table error = %v", err)
	}
	if _, err := l.Open(1, 1, 1, 11, now); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("party size error = %v", err)
	}

	o, err := l.Open(1, 1, 1, 2, now)
	if err != nil {
		t.Fatal(err)
	}
	if !o.IsEmpty() || o.OriginalTotal != 0 || o.NettTotal != 0 {
		t.Fatalf("draft not empty: %+v", o)
	}
	if len(l.Active()) != 0 {
		t.Fatal("draft must not be active")
	}
}

func TestAddItemMergesByName(t *testing.T) {
	l, _ := newLedger(t, nil)
	ctx := context.Background()

	o, _ := l.Open(1, 1, 1, 2, now)
	if err := l.AddItem(ctx, o, "Soda", 2.0, 3); err != nil {
		t.Fatal(err)
	}
	if err := l.AddItem(ctx, o, "Soda", 9.99, 2); err != nil {
		t.Fatal(err)
	}

	if len(o.Items) != 1 || o.ItemQuantity("Soda") != 5 {
		t.Fatalf("items = %+v", o.Items)
	}
	if o.Items[0].UnitPrice != 2.0 {
		t.Fatalf("unit price re-snapshotted: %v", o.Items[0].UnitPrice)
	}

	if err := l.AddItem(ctx, o, "soda", 2.0, 1); err != nil {
		t.Fatal(err)
	}
	if len(o.Items) != 2 {
		t.Fatalf("merge must be case-sensitive: %+v", o.Items)
	}
}

func TestTotalsInvariant(t *testing.T) {
	tests := []struct {
		name   string
		member bool
	}{
		{"regular", false},
		{"member", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := newLedger(t, &fakeMembers{members: map[int64]bool{7: tt.member}})
			ctx := context.Background()
			o, _ := l.Open(1, 7, 2, 4, now)

			check := func() {
				t.Helper()
				var sum float64
				for _, it := range o.Items {
					sum += it.UnitPrice * float64(it.Quantity)
				}
				want := sum * 1.10 * 1.07
				if tt.member {
					want *= 0.90
				}
				if !approx(o.OriginalTotal, sum) || !approx(o.NettTotal, want) {
					t.Fatalf("totals = %v/%v, want %v/%v", o.OriginalTotal, o.NettTotal, sum, want)
				}
				if o.Member != tt.member {
					t.Fatalf("member flag = %v", o.Member)
				}
			}

			steps := []func() error{
				func() error { return l.AddItem(ctx, o, "Pasta", 14.9, 2) },
				func() error { return l.AddItem(ctx, o, "Soda", 2.5, 3) },
				func() error { return l.RemoveItem(ctx, o, "Soda", 1) },
				func() error { return l.RemoveItem(ctx, o, "Pasta", 5) },
			}
			for i, step := range steps {
				if err := step(); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
				check()
			}

			if o.ItemQuantity("Pasta") != 0 || o.ItemQuantity("Soda") != 2 {
				t.Fatalf("items = %+v", o.Items)
			}
		})
	}
}

func TestNettFormula(t *testing.T) {
	if got := Nett(100, false); !approx(got, 117.7) {
		t.Errorf("Nett(100, false) = %v", got)
	}
	if got := Nett(100, true); !approx(got, 105.93) {
		t.Errorf("Nett(100, true) = %v", got)
	}
}

func TestMembershipFailureLeavesOrderUntouched(t *testing.T) {
	members := &fakeMembers{}
	l, _ := newLedger(t, members)
	ctx := context.Background()

	o, _ := l.Open(1, 1, 1, 2, now)
	if err := l.AddItem(ctx, o, "Soda", 2, 1); err != nil {
		t.Fatal(err)
	}

	members.err = errors.New("directory down")
	if err := l.AddItem(ctx, o, "Soda", 2, 1); err == nil {
		t.Fatal("expected error")
	}
	if err := l.RemoveItem(ctx, o, "Soda", 1); err == nil {
		t.Fatal("expected error")
	}
	if o.ItemQuantity("Soda") != 1 || !approx(o.OriginalTotal, 2) {
		t.Fatalf("order mutated: %+v", o)
	}
}

func TestRemoveUnknownItem(t *testing.T) {
	l, _ := newLedger(t, nil)
	o, _ := l.Open(1, 1, 1, 2, now)

	if err := l.RemoveItem(context.Background(), o, "Ghost", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestPlace(t *testing.T) {
	l, reg := newLedger(t, nil)

	empty, _ := l.Open(1, 1, 1, 2, now)
	if err := l.Place(empty); !errors.Is(err, domain.ErrState) {
		t.Fatalf("empty place error = %v", err)
	}

	o := placed(t, l, 1, 1, now)
	tbl, _ := reg.Lookup(1)
	if tbl.Status != domain.TableOccupied || tbl.Occupant != 1 {
		t.Fatalf("table = %+v", tbl)
	}

	dup, _ := l.Open(1, 1, 1, 2, now)
	_ = l.AddItem(context.Background(), dup, "Soda", 2, 1)
	if err := l.Place(dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate place error = %v", err)
	}

	got, err := l.Order(o.ID)
	if err != nil || got.ItemQuantity("Burger") != 1 {
		t.Fatalf("Order = %+v, %v", got, err)
	}
}

func TestUpdateRestoresOnError(t *testing.T) {
	l, _ := newLedger(t, nil)
	ctx := context.Background()
	o := placed(t, l, 1, 1, now)

	_, err := l.Update(ctx, o.ID, func(o *domain.Order) error {
		if err := l.AddItem(ctx, o, "Soda", 2, 4); err != nil {
			return err
		}
		return l.RemoveItem(ctx, o, "Ghost", 1)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v", err)
	}

	got, _ := l.Order(o.ID)
	if got.ItemQuantity("Soda") != 0 || !approx(got.OriginalTotal, 12.5) {
		t.Fatalf("order not restored: %+v", got)
	}

	if _, err := l.Update(ctx, "missing", func(*domain.Order) error { return nil }); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown order error = %v", err)
	}
}

func TestPayFreesTable(t *testing.T) {
	l, reg := newLedger(t, nil)
	o := placed(t, l, 1, 2, now)

	paid, err := l.Pay(o.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if !paid.PaidAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("PaidAt = %v", paid.PaidAt)
	}

	tbl, _ := reg.Lookup(2)
	if tbl.Status != domain.TableAvailable {
		t.Fatalf("table = %+v", tbl)
	}
	if len(l.Active()) != 0 || len(l.Completed()) != 1 {
		t.Fatalf("active %d completed %d", len(l.Active()), len(l.Completed()))
	}
	if _, err := l.Pay(o.ID, now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second pay error = %v", err)
	}
}

func TestPayKeepsSharedTableOccupied(t *testing.T) {
	l, reg := newLedger(t, nil)
	first := placed(t, l, 1, 3, now)
	second := placed(t, l, 1, 3, now.Add(time.Second))

	if _, err := l.Pay(first.ID, now); err != nil {
		t.Fatal(err)
	}
	tbl, _ := reg.Lookup(3)
	if tbl.Status != domain.TableOccupied {
		t.Fatalf("table freed while another order is open: %+v", tbl)
	}

	if _, err := l.Pay(second.ID, now); err != nil {
		t.Fatal(err)
	}
	tbl, _ = reg.Lookup(3)
	if tbl.Status != domain.TableAvailable {
		t.Fatalf("table = %+v", tbl)
	}
}

func TestPayEmptyOrder(t *testing.T) {
	l, _ := newLedger(t, nil)
	ctx := context.Background()
	o := placed(t, l, 1, 1, now)

	if _, err := l.Update(ctx, o.ID, func(o *domain.Order) error {
		return l.RemoveItem(ctx, o, "Burger", 1)
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Pay(o.ID, now); !errors.Is(err, domain.ErrState) {
		t.Fatalf("error = %v, want state", err)
	}
}

func TestDiscard(t *testing.T) {
	l, reg := newLedger(t, nil)
	ctx := context.Background()
	o := placed(t, l, 1, 4, now)

	if _, err := l.Discard(o.ID); !errors.Is(err, domain.ErrState) {
		t.Fatalf("discard non-empty error = %v", err)
	}

	if _, err := l.Update(ctx, o.ID, func(o *domain.Order) error {
		return l.RemoveItem(ctx, o, "Burger", 1)
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Discard(o.ID); err != nil {
		t.Fatal(err)
	}

	tbl, _ := reg.Lookup(4)
	if tbl.Status != domain.TableAvailable || len(l.Active()) != 0 {
		t.Fatalf("table %+v active %d", tbl, len(l.Active()))
	}
}

func TestRestore(t *testing.T) {
	l, reg := newLedger(t, &fakeMembers{members: map[int64]bool{5: true}})
	ctx := context.Background()

	active := []domain.Order{{
		ID: "a1", CustomerID: 5, TableNumber: 5, PartySize: 8, CreatedAt: now,
		Items: []domain.OrderItem{{Name: "Platter", UnitPrice: 40, Quantity: 1}},
	}}
	completed := []domain.Order{{ID: "c1", TableNumber: 1, CreatedAt: now, OriginalTotal: 10, NettTotal: 11.77}}

	if err := l.Restore(ctx, active, completed); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := l.Order("a1")
	if err != nil {
		t.Fatal(err)
	}
	if !approx(got.NettTotal, Nett(40, true)) {
		t.Fatalf("restored order not recomputed: %+v", got)
	}
	tbl, _ := reg.Lookup(5)
	if tbl.Status != domain.TableOccupied || tbl.Occupant != 5 {
		t.Fatalf("table = %+v", tbl)
	}
	if c := l.ExportCompleted(); len(c) != 1 || c[0].NettTotal != 11.77 {
		t.Fatalf("completed = %+v", c)
	}

	if err := l.Restore(ctx, completed, completed); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("overlapping restore error = %v", err)
	}
}

func TestRestoreRejects(t *testing.T) {
	burger := []domain.OrderItem{{Name: "Burger", UnitPrice: 12.5, Quantity: 1}}

	tests := []struct {
		name   string
		active []domain.Order
		want   error
	}{
		{
			name:   "empty active order",
			active: []domain.Order{{ID: "a1", CustomerID: 1, TableNumber: 1, PartySize: 2, CreatedAt: now}},
			want:   domain.ErrState,
		},
		{
			name: "table claimed by two customers",
			active: []domain.Order{
				{ID: "a1", CustomerID: 1, TableNumber: 1, PartySize: 2, CreatedAt: now, Items: burger},
				{ID: "a2", CustomerID: 2, TableNumber: 1, PartySize: 2, CreatedAt: now, Items: burger},
			},
			want: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, reg := newLedger(t, nil)

			if err := l.Restore(context.Background(), tt.active, nil); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if n := len(l.Active()); n != 0 {
				t.Fatalf("%d orders restored", n)
			}
			for _, tbl := range reg.Tables() {
				if tbl.Status != domain.TableAvailable {
					t.Fatalf("table %d left %s", tbl.Number, tbl.Status)
				}
			}
		})
	}
}

func TestRestoreRollsBackTables(t *testing.T) {
	l, reg := newLedger(t, nil)
	ctx := context.Background()

	if err := reg.MarkReserved(1, 7); err != nil {
		t.Fatal(err)
	}
	if err := reg.MarkOccupied(3, 9); err != nil {
		t.Fatal(err)
	}

	burger := []domain.OrderItem{{Name: "Burger", UnitPrice: 12.5, Quantity: 1}}
	active := []domain.Order{
		{ID: "a1", CustomerID: 7, TableNumber: 1, PartySize: 2, CreatedAt: now, Items: burger},
		{ID: "a2", CustomerID: 1, TableNumber: 2, PartySize: 2, CreatedAt: now, Items: burger},
		{ID: "a3", CustomerID: 2, TableNumber: 3, PartySize: 2, CreatedAt: now, Items: burger},
	}

	if err := l.Restore(ctx, active, nil); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}

	want := map[int]domain.Table{
		1: {Status: domain.TableReserved, Occupant: 7},
		2: {Status: domain.TableAvailable},
		3: {Status: domain.TableOccupied, Occupant: 9},
	}
	for n, w := range want {
		tbl, _ := reg.Lookup(n)
		if tbl.Status != w.Status || tbl.Occupant != w.Occupant {
			t.Errorf("table %d = %s/%d, want %s/%d", n, tbl.Status, tbl.Occupant, w.Status, w.Occupant)
		}
	}
	if n := len(l.Active()); n != 0 {
		t.Fatalf("%d orders restored", n)
	}
}

func TestSeatedTable(t *testing.T) {
	l, reg := newLedger(t, nil)

	if _, ok := l.SeatedTable(1); ok {
		t.Fatal("customer with no table reported seated")
	}

	if err := reg.MarkOccupied(2, 1); err != nil {
		t.Fatal(err)
	}
	tbl, ok := l.SeatedTable(1)
	if !ok || tbl.Number != 2 {
		t.Fatalf("SeatedTable = %+v, %v", tbl, ok)
	}

	placed(t, l, 1, 2, now)
	if _, ok := l.SeatedTable(1); ok {
		t.Fatal("table with an active order reported as a free seat")
	}
}

func TestRemoveMoreThanOrdered(t *testing.T) {
	l, _ := newLedger(t, nil)
	ctx := context.Background()
	o := placed(t, l, 1, 1, now)

	if _, err := l.AddToOrder(ctx, o.ID, "Soda", 2.5, 2); err != nil {
		t.Fatal(err)
	}

	got, err := l.RemoveFromOrder(ctx, o.ID, "Soda", 5)
	if err != nil {
		t.Fatalf("RemoveFromOrder: %v", err)
	}
	if got.ItemQuantity("Soda") != 0 || len(got.Items) != 1 {
		t.Fatalf("items = %+v", got.Items)
	}
	if !approx(got.OriginalTotal, 12.5) || !approx(got.NettTotal, Nett(12.5, false)) {
		t.Fatalf("totals = %v / %v", got.OriginalTotal, got.NettTotal)
	}
}

type blockingMembers struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingMembers) IsMember(ctx context.Context, _ int64) (bool, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestLiveEditsLookUpMembershipOutsideLock(t *testing.T) {
	reg, err := tables.New([]int{2, 4})
	if err != nil {
		t.Fatal(err)
	}
	members := &blockingMembers{entered: make(chan struct{}), release: make(chan struct{})}
	l := New(reg, members, Config{})
	ctx := context.Background()

	burger := []domain.OrderItem{{Name: "Burger", UnitPrice: 12.5, Quantity: 1}}
	restored := make(chan error, 1)
	go func() {
		restored <- l.Restore(ctx, []domain.Order{{ID: "a1", CustomerID: 1, TableNumber: 1, PartySize: 2, CreatedAt: now, Items: burger}}, nil)
	}()
	<-members.entered
	members.release <- struct{}{}
	if err := <-restored; err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := l.AddToOrder(ctx, "a1", "Soda", 2.5, 1)
		done <- err
	}()
	<-members.entered

	listed := make(chan int, 1)
	go func() { listed <- len(l.Active()) }()

	select {
	case n := <-listed:
		if n != 1 {
			t.Fatalf("active = %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("ledger locked while membership lookup is pending")
	}

	members.release <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("AddToOrder: %v", err)
	}

	got, err := l.Order("a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ItemQuantity("Soda") != 1 || !approx(got.NettTotal, Nett(15, true)) {
		t.Fatalf("order = %+v", got)
	}
}

func TestInvoice(t *testing.T) {
	o := domain.Order{
		ID: "x", TableNumber: 2, Member: true,
		Items:         []domain.OrderItem{{Name: "Steak", UnitPrice: 50, Quantity: 2}},
		OriginalTotal: 100,
		NettTotal:     Nett(100, true),
	}

	inv := NewInvoice(o)
	checks := map[string]struct{ got, want string }{
		"subtotal": {inv.Subtotal.StringFixed(2), "100.00"},
		"service":  {inv.ServiceCharge.StringFixed(2), "10.00"},
		"gst":      {inv.GST.StringFixed(2), "7.70"},
		"discount": {inv.MemberDiscount.StringFixed(2), "11.77"},
		"total":    {inv.Total.StringFixed(2), "105.93"},
		"line":     {inv.Items[0].Amount.StringFixed(2), "100.00"},
	}
	for name, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %s, want %s", name, c.got, c.want)
		}
	}
}

func TestReleaseSeat(t *testing.T) {
	l, reg := newLedger(t, nil)

	if err := reg.MarkOccupied(2, 9); err != nil {
		t.Fatal(err)
	}
	if err := l.ReleaseSeat(2); err != nil {
		t.Fatalf("ReleaseSeat: %v", err)
	}
	if tbl, _ := reg.Lookup(2); tbl.Status != domain.TableAvailable {
		t.Fatalf("table = %+v", tbl)
	}

	placed(t, l, 1, 3, now)
	if err := l.ReleaseSeat(3); err != nil {
		t.Fatal(err)
	}
	if tbl, _ := reg.Lookup(3); tbl.Status != domain.TableOccupied {
		t.Fatalf("table with active order released: %+v", tbl)
	}
}
