package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/tables"
)

var day = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func newScheduler(t *testing.T) (*Scheduler, *tables.Registry) {
	t.Helper()
	reg, err := tables.New([]int{2, 4, 4, 6, 10})
	if err != nil {
		t.Fatalf("tables.New: %v", err)
	}
	return New(reg, Config{}), reg
}

func customer(id int64) domain.Customer {
	return domain.Customer{ID: id, Name: "guest", Contact: "555-0100"}
}

func TestAddAllocatesFirstFittingTable(t *testing.T) {
	s, _ := newScheduler(t)
	now := at(8, 0)

	r1, err := s.Add(Request{Customer: customer(1), PartySize: 3, Start: at(12, 0)}, now)
	if err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if r1.TableNumber != 2 {
		t.Fatalf("first reservation table = %d, want 2", r1.TableNumber)
	}

	r2, err := s.Add(Request{Customer: customer(2), PartySize: 4, Start: at(12, 30)}, now)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if r2.TableNumber != 3 {
		t.Fatalf("second reservation table = %d, want 3", r2.TableNumber)
	}
	if r2.DurationHours != 2 || !r2.End().Equal(at(14, 30)) {
		t.Fatalf("unexpected window %v-%v", r2.Start, r2.End())
	}
}

func TestAddOverlapAcceptance(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		wantTbl int
	}{
		{"ends exactly at next start", at(10, 0), 1},
		{"starts exactly at previous end", at(14, 0), 1},
		{"overlaps", at(13, 0), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := tables.New([]int{2, 10})
			if err != nil {
				t.Fatal(err)
			}
			s := New(reg, Config{})
			if _, err := s.Add(Request{Customer: customer(1), PartySize: 2, Start: at(12, 0)}, at(8, 0)); err != nil {
				t.Fatal(err)
			}

			r, err := s.Add(Request{Customer: customer(2), PartySize: 2, Start: tt.start}, at(8, 0))
			if err != nil {
				t.Fatalf("Add: %v", err)
			}
			if r.TableNumber != tt.wantTbl {
				t.Errorf("table = %d, want %d", r.TableNumber, tt.wantTbl)
			}
		})
	}
}

func TestAddConflictLeavesCalendarUntouched(t *testing.T) {
	reg, err := tables.New([]int{2})
	if err != nil {
		t.Fatal(err)
	}
	s := New(reg, Config{})
	now := at(8, 0)

	if _, err := s.Add(Request{Customer: customer(1), PartySize: 2, Start: at(12, 0)}, now); err != nil {
		t.Fatal(err)
	}
	_, err = s.Add(Request{Customer: customer(2), PartySize: 2, Start: at(13, 59)}, now)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}
	if got := len(s.Export()); got != 1 {
		t.Fatalf("calendar size = %d, want 1", got)
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name  string
		party int
		start time.Time
		hours int
		now   time.Time
		ok    bool
	}{
		{"at opening", 2, at(9, 0), 0, at(8, 0), false},
		{"just after opening", 2, at(9, 1), 0, at(8, 0), true},
		{"ends at closing", 2, at(20, 0), 0, at(8, 0), false},
		{"ends before closing", 2, at(19, 59), 0, at(8, 0), true},
		{"crosses midnight", 2, at(23, 0), 0, at(8, 0), false},
		{"party too small", 0, at(12, 0), 0, at(8, 0), false},
		{"party too large", 11, at(12, 0), 0, at(8, 0), false},
		{"negative duration", 2, at(12, 0), -1, at(8, 0), false},
		{"in the past", 2, at(11, 0), 0, at(12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newScheduler(t)

			_, err := s.Add(Request{Customer: customer(1), PartySize: tt.party, Start: tt.start, DurationHours: tt.hours}, tt.now)
			if tt.ok && err != nil {
				t.Fatalf("Add: %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestAddUsesRestaurantTimeZone(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*60*60)
	reg, err := tables.New([]int{2, 4, 4, 6, 10})
	if err != nil {
		t.Fatal(err)
	}
	s := New(reg, Config{Location: sgt})
	now := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	// 13:00Z is 21:00-23:00 in the restaurant, past closing.
	late := time.Date(2026, 10, 20, 13, 0, 0, 0, time.UTC)
	if _, err := s.Add(Request{Customer: customer(1), PartySize: 2, Start: late}, now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation", err)
	}

	// 02:00Z is 10:00 local, and 01:00 in UTC would be before opening.
	morning := time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC)
	r, err := s.Add(Request{Customer: customer(1), PartySize: 2, Start: morning}, now)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if r.Start.Location() != sgt || r.Start.Hour() != 10 || !r.Start.Equal(morning) {
		t.Fatalf("start = %v, want 10:00 SGT", r.Start)
	}
}

func TestSweepLifecycle(t *testing.T) {
	s, reg := newScheduler(t)

	r, err := s.Add(Request{Customer: customer(7), PartySize: 2, Start: at(12, 0)}, at(8, 0))
	if err != nil {
		t.Fatal(err)
	}

	res := s.Sweep(at(11, 59))
	if !res.Empty() {
		t.Fatalf("sweep before start changed state: %+v", res)
	}

	res = s.Sweep(at(12, 0))
	if len(res.Activated) != 1 || res.Activated[0].ID != r.ID {
		t.Fatalf("expected activation, got %+v", res)
	}
	tbl, _ := reg.Lookup(r.TableNumber)
	if tbl.Status != domain.TableReserved || tbl.Occupant != 7 {
		t.Fatalf("table after activation = %+v", tbl)
	}

	res = s.Sweep(at(12, 5))
	if !res.Empty() {
		t.Fatalf("sweep within grace changed state: %+v", res)
	}

	res = s.Sweep(at(12, 6))
	if len(res.Expired) != 1 {
		t.Fatalf("expected no-show expiry, got %+v", res)
	}
	tbl, _ = reg.Lookup(r.TableNumber)
	if tbl.Status != domain.TableAvailable {
		t.Fatalf("table after expiry = %+v", tbl)
	}
	if len(s.List(at(12, 6))) != 0 {
		t.Fatal("expired reservation still listed")
	}
}

func TestSweepDoesNotStealOccupiedTable(t *testing.T) {
	reg, err := tables.New([]int{4})
	if err != nil {
		t.Fatal(err)
	}
	s := New(reg, Config{})

	if _, err := s.Add(Request{Customer: customer(1), PartySize: 2, Start: at(12, 0)}, at(8, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WalkIn(99, 2, at(11, 0)); err != nil {
		t.Fatal(err)
	}

	res := s.Sweep(at(12, 1))
	if len(res.Activated) != 0 {
		t.Fatalf("held an occupied table: %+v", res)
	}
	tbl, _ := reg.Lookup(1)
	if tbl.Occupant != 99 {
		t.Fatalf("walk-in lost the table: %+v", tbl)
	}
}

func TestCheckIn(t *testing.T) {
	s, reg := newScheduler(t)

	r, err := s.Add(Request{Customer: customer(3), PartySize: 5, Start: at(18, 0)}, at(8, 0))
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.CheckIn(3, at(17, 30)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("early check-in error = %v, want not found", err)
	}

	tbl, party, err := s.CheckIn(3, at(18, 2))
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if tbl.Number != r.TableNumber || tbl.Status != domain.TableOccupied || party != 5 {
		t.Fatalf("CheckIn = %+v party %d", tbl, party)
	}
	if len(s.Export()) != 0 {
		t.Fatal("checked-in reservation still on the calendar")
	}

	s.Sweep(at(18, 30))
	got, _ := reg.Lookup(r.TableNumber)
	if got.Status != domain.TableOccupied || got.Occupant != 3 {
		t.Fatalf("sweep disturbed seated party: %+v", got)
	}
}

func TestWalkIn(t *testing.T) {
	s, _ := newScheduler(t)
	now := at(12, 0)

	tbl, err := s.WalkIn(1, 6, now)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Number != 4 {
		t.Fatalf("walk-in table = %d, want 4", tbl.Number)
	}

	if _, err := s.WalkIn(2, 7, now); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WalkIn(3, 7, now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if _, err := s.WalkIn(4, 0, now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestRemove(t *testing.T) {
	s, reg := newScheduler(t)

	r, err := s.Add(Request{Customer: customer(4), PartySize: 2, Start: at(12, 0)}, at(8, 0))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Remove(uuid.New(), at(12, 1)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}

	if _, err := s.Remove(r.ID, at(12, 1)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	tbl, _ := reg.Lookup(r.TableNumber)
	if tbl.Status != domain.TableAvailable {
		t.Fatalf("table after remove = %+v", tbl)
	}
}

func TestRestoreRejectsOverlap(t *testing.T) {
	s, _ := newScheduler(t)
	in := []domain.Reservation{
		{ID: uuid.New(), TableNumber: 1, CustomerID: 1, PartySize: 2, Start: at(12, 0), DurationHours: 2},
		{ID: uuid.New(), TableNumber: 1, CustomerID: 2, PartySize: 2, Start: at(13, 0), DurationHours: 2},
	}

	if err := s.Restore(in); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}
	if len(s.Export()) != 0 {
		t.Fatal("failed restore left partial calendar")
	}

	if err := s.Restore(in[:1]); err != nil {
		t.Fatal(err)
	}
	if got := s.Export(); len(got) != 1 || got[0].ID != in[0].ID {
		t.Fatalf("Export = %+v", got)
	}
}

func TestCalendarSortedByStart(t *testing.T) {
	s, _ := newScheduler(t)
	now := at(8, 0)
	for i, h := range []int{15, 10, 12, 10} {
		if _, err := s.Add(Request{Customer: customer(int64(i + 1)), PartySize: 2, Start: at(h, 0)}, now); err != nil {
			t.Fatal(err)
		}
	}

	list := s.List(now)
	for i := 1; i < len(list); i++ {
		if list[i].Start.Before(list[i-1].Start) {
			t.Fatalf("calendar out of order at %d: %v before %v", i, list[i].Start, list[i-1].Start)
		}
	}
	if list[0].CustomerID != 2 || list[1].CustomerID != 4 {
		t.Fatalf("equal starts lost arrival order: %d, %d", list[0].CustomerID, list[1].CustomerID)
	}
}
