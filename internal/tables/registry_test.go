package tables

import (
	"errors"
	"testing"

	"github.com/kirinyoku/bistro/internal/domain"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New([]int{2, 4, 4, 6, 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		capacities []int
		wantErr    bool
	}{
		{"default floor", []int{2, 4, 4, 6, 10}, false},
		{"empty", nil, true},
		{"zero seats", []int{2, 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.capacities)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			for i, tbl := range r.Tables() {
				if tbl.Number != i+1 || tbl.Seats != tt.capacities[i] || tbl.Status != domain.TableAvailable {
					t.Errorf("table %d = %+v", i+1, tbl)
				}
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	r := newRegistry(t)
	for _, n := range []int{0, 6, -1} {
		if _, err := r.Lookup(n); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Lookup(%d) error = %v, want not found", n, err)
		}
	}
}

func TestLifecycle(t *testing.T) {
	r := newRegistry(t)

	if err := r.MarkReserved(2, 7); err != nil {
		t.Fatalf("MarkReserved: %v", err)
	}
	if err := r.MarkReserved(2, 7); err != nil {
		t.Fatalf("MarkReserved by same customer: %v", err)
	}
	if err := r.MarkReserved(2, 8); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("MarkReserved by other customer error = %v, want conflict", err)
	}

	if err := r.MarkOccupied(2, 7); err != nil {
		t.Fatalf("MarkOccupied: %v", err)
	}
	tbl, _ := r.Lookup(2)
	if tbl.Status != domain.TableOccupied || tbl.Occupant != 7 {
		t.Fatalf("after check-in: %+v", tbl)
	}

	// release must never downgrade an occupied table
	if err := r.Release(2); err != nil {
		t.Fatalf("Release: %v", err)
	}
	tbl, _ = r.Lookup(2)
	if tbl.Status != domain.TableOccupied {
		t.Fatalf("release downgraded occupied table: %+v", tbl)
	}

	if err := r.MarkOccupied(2, 9); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("MarkOccupied by other customer error = %v, want conflict", err)
	}

	if err := r.Free(2); err != nil {
		t.Fatalf("Free: %v", err)
	}
	tbl, _ = r.Lookup(2)
	if tbl.Status != domain.TableAvailable || tbl.Occupant != 0 {
		t.Fatalf("after free: %+v", tbl)
	}

	if err := r.Free(2); !errors.Is(err, domain.ErrState) {
		t.Fatalf("double Free error = %v, want state error", err)
	}
}

func TestReleaseReserved(t *testing.T) {
	r := newRegistry(t)
	_ = r.MarkReserved(1, 3)

	if err := r.Release(1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	tbl, _ := r.Lookup(1)
	if tbl.Status != domain.TableAvailable || tbl.Occupant != 0 {
		t.Fatalf("after release: %+v", tbl)
	}
}

func TestWalkInFromAvailable(t *testing.T) {
	r := newRegistry(t)
	if err := r.MarkOccupied(5, 1); err != nil {
		t.Fatalf("MarkOccupied: %v", err)
	}
	if err := r.MarkReserved(5, 1); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("reserving an occupied table error = %v, want conflict", err)
	}
}
