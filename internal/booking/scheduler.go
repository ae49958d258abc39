package booking

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/tables"
)

type Config struct {
	MinPartySize  int
	MaxPartySize  int
	DurationHours int
	OpeningHour   int
	ClosingHour   int
	NoShowGrace   time.Duration
	// Location is the restaurant time zone that opening hours refer to.
	// Nil evaluates each request in the zone of its own start time.
	Location *time.Location
}

// Request describes a reservation to allocate. A zero DurationHours uses
// the configured default.
type Request struct {
	Customer      domain.Customer
	PartySize     int
	Start         time.Time
	DurationHours int
}

// Scheduler owns the reservation calendar. The calendar mutex is held across
// the expiry sweep and the decision that follows it.
type Scheduler struct {
	mu       sync.Mutex
	registry *tables.Registry
	calendar []domain.Reservation
	cfg      Config
}

func New(registry *tables.Registry, cfg Config) *Scheduler {
	if cfg.MinPartySize <= 0 {
		cfg.MinPartySize = 1
	}

	if cfg.MaxPartySize < cfg.MinPartySize {
		cfg.MaxPartySize = 10
	}

	if cfg.DurationHours <= 0 {
		cfg.DurationHours = 2
	}

	if cfg.OpeningHour <= 0 && cfg.ClosingHour <= 0 {
		cfg.OpeningHour, cfg.ClosingHour = 9, 22
	}

	if cfg.NoShowGrace <= 0 {
		cfg.NoShowGrace = 5 * time.Minute
	}

	return &Scheduler{
		registry: registry,
		cfg:      cfg,
	}
}

func (s *Scheduler) Config() Config {
	return s.cfg
}

// Add allocates the first table, in definition order, that seats the party
// and has no overlapping reservation.
//
// Parameters:
//   - req: customer, party size, start time and optional duration.
//   - now: current instant; reservations cannot start before it.
//
// Returns:
//   - domain.Reservation: the created reservation.
//   - error: domain.ErrValidation for bad party size, duration or window.
//   - error: domain.ErrConflict if no table fits the window.
func (s *Scheduler) Add(req Request, now time.Time) (domain.Reservation, error) {
	const op = "booking.Add"

	if req.PartySize < s.cfg.MinPartySize || req.PartySize > s.cfg.MaxPartySize {
		return domain.Reservation{}, domain.Validation(op,
			"party size must be between %d and %d, got %d",
			s.cfg.MinPartySize, s.cfg.MaxPartySize, req.PartySize)
	}

	hours := req.DurationHours
	if hours == 0 {
		hours = s.cfg.DurationHours
	}
	if hours < 0 {
		return domain.Reservation{}, domain.Validation(op, "duration must be positive, got %d", hours)
	}

	start := req.Start
	if s.cfg.Location != nil {
		start = start.In(s.cfg.Location)
	}

	end := start.Add(time.Duration(hours) * time.Hour)
	if !s.withinOperatingHours(start, end) {
		return domain.Reservation{}, domain.Validation(op,
			"reservation %s-%s is outside opening hours %02d:00-%02d:00",
			start.Format("15:04"), end.Format("15:04"), s.cfg.OpeningHour, s.cfg.ClosingHour)
	}

	if start.Before(now) {
		return domain.Reservation{}, domain.Validation(op, "reservations can only be made in advance")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	for _, t := range s.registry.Tables() {
		if t.Seats < req.PartySize || s.booked(t.Number, start, end) {
			continue
		}

		r := domain.Reservation{
			ID:              uuid.New(),
			TableNumber:     t.Number,
			CustomerID:      req.Customer.ID,
			CustomerName:    req.Customer.Name,
			CustomerContact: req.Customer.Contact,
			PartySize:       req.PartySize,
			Start:           start,
			DurationHours:   hours,
		}
		s.insert(r)

		return r, nil
	}

	return domain.Reservation{}, domain.Conflict(op,
		"no table can seat %d people at %s", req.PartySize, start.Format("2006-01-02 15:04"))
}

// Remove cancels a reservation, releasing its table if the hold is active.
func (s *Scheduler) Remove(id uuid.UUID, now time.Time) (domain.Reservation, error) {
	const op = "booking.Remove"

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	idx := -1
	for i, r := range s.calendar {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Reservation{}, domain.NotFound(op, "reservation %s", id)
	}

	r := s.calendar[idx]

	t, err := s.registry.Lookup(r.TableNumber)
	if err != nil {
		return domain.Reservation{}, err
	}
	if t.Status == domain.TableReserved && t.Occupant == r.CustomerID {
		if err := s.registry.Release(r.TableNumber); err != nil {
			return domain.Reservation{}, err
		}
	}

	s.calendar = append(s.calendar[:idx], s.calendar[idx+1:]...)

	return r, nil
}

// Sweep expires no-shows, activates holds whose window has started and drops
// reservations that were checked in.
func (s *Scheduler) Sweep(now time.Time) domain.SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweep(now)
}

// List returns the live calendar ordered by start time.
func (s *Scheduler) List(now time.Time) []domain.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	out := make([]domain.Reservation, len(s.calendar))
	copy(out, s.calendar)
	return out
}

// Tables returns table availability after sweeping.
func (s *Scheduler) Tables(now time.Time) []domain.Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	return s.registry.Tables()
}

// CheckIn seats a customer at the table currently held for them.
//
// Returns:
//   - domain.Table: the table, now occupied.
//   - int: the party size recorded on the reservation.
//   - error: domain.ErrNotFound if no table is held for the customer.
func (s *Scheduler) CheckIn(customerID int64, now time.Time) (domain.Table, int, error) {
	const op = "booking.CheckIn"

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	for _, t := range s.registry.Tables() {
		if t.Status != domain.TableReserved || t.Occupant != customerID {
			continue
		}

		if err := s.registry.MarkOccupied(t.Number, customerID); err != nil {
			return domain.Table{}, 0, err
		}

		partySize := 0
		kept := s.calendar[:0]
		for _, r := range s.calendar {
			if partySize == 0 && r.TableNumber == t.Number &&
				r.CustomerID == customerID && !r.Start.After(now) {
				partySize = r.PartySize
				continue
			}
			kept = append(kept, r)
		}
		s.calendar = kept

		t.Status = domain.TableOccupied
		return t, partySize, nil
	}

	return domain.Table{}, 0, domain.NotFound(op, "no table is reserved for customer %d", customerID)
}

// WalkIn seats a customer at the first available table that fits the party.
//
// Returns:
//   - error: domain.ErrNotFound if no available table seats the party.
func (s *Scheduler) WalkIn(customerID int64, partySize int, now time.Time) (domain.Table, error) {
	const op = "booking.WalkIn"

	if partySize < s.cfg.MinPartySize || partySize > s.cfg.MaxPartySize {
		return domain.Table{}, domain.Validation(op,
			"party size must be between %d and %d, got %d",
			s.cfg.MinPartySize, s.cfg.MaxPartySize, partySize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(now)

	for _, t := range s.registry.Tables() {
		if t.Status != domain.TableAvailable || t.Seats < partySize {
			continue
		}

		if err := s.registry.MarkOccupied(t.Number, customerID); err != nil {
			return domain.Table{}, err
		}

		t.Status = domain.TableOccupied
		t.Occupant = customerID
		return t, nil
	}

	return domain.Table{}, domain.NotFound(op, "no available table for %d people", partySize)
}

// Restore replaces the calendar with previously exported reservations.
func (s *Scheduler) Restore(reservations []domain.Reservation) error {
	const op = "booking.Restore"

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.calendar
	s.calendar = nil

	for _, r := range reservations {
		if r.DurationHours <= 0 {
			s.calendar = prev
			return domain.Validation(op, "reservation %s has duration %d", r.ID, r.DurationHours)
		}

		if _, err := s.registry.Lookup(r.TableNumber); err != nil {
			s.calendar = prev
			return err
		}

		if s.booked(r.TableNumber, r.Start, r.End()) {
			s.calendar = prev
			return domain.Conflict(op, "reservation %s overlaps on table %d", r.ID, r.TableNumber)
		}

		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.insert(r)
	}

	return nil
}

// Export returns the calendar for persistence.
func (s *Scheduler) Export() []domain.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Reservation, len(s.calendar))
	copy(out, s.calendar)
	return out
}

func (s *Scheduler) sweep(now time.Time) domain.SweepResult {
	var res domain.SweepResult

	kept := s.calendar[:0]
	for _, r := range s.calendar {
		t, err := s.registry.Lookup(r.TableNumber)
		if err != nil {
			// calendar entries are validated against the registry on insert
			kept = append(kept, r)
			continue
		}

		seatedHere := t.Status == domain.TableOccupied && t.Occupant == r.CustomerID

		switch {
		case now.After(r.Start.Add(s.cfg.NoShowGrace)):
			if seatedHere {
				res.Consumed = append(res.Consumed, r)
				continue
			}
			if t.Status == domain.TableReserved && t.Occupant == r.CustomerID {
				_ = s.registry.Release(r.TableNumber)
			}
			res.Expired = append(res.Expired, r)
			continue

		case !r.Start.After(now):
			if seatedHere {
				res.Consumed = append(res.Consumed, r)
				continue
			}
			if t.Status == domain.TableAvailable {
				if err := s.registry.MarkReserved(r.TableNumber, r.CustomerID); err == nil {
					res.Activated = append(res.Activated, r)
				}
			}
		}

		kept = append(kept, r)
	}

	// clear the tail so dropped reservations are not retained
	for i := len(kept); i < len(s.calendar); i++ {
		s.calendar[i] = domain.Reservation{}
	}
	s.calendar = kept

	return res
}

func (s *Scheduler) booked(table int, start, end time.Time) bool {
	for _, r := range s.calendar {
		if r.TableNumber == table && r.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// insert keeps the calendar sorted by start; equal starts keep arrival order.
func (s *Scheduler) insert(r domain.Reservation) {
	i := sort.Search(len(s.calendar), func(i int) bool {
		return s.calendar[i].Start.After(r.Start)
	})

	s.calendar = append(s.calendar, domain.Reservation{})
	copy(s.calendar[i+1:], s.calendar[i:])
	s.calendar[i] = r
}

func (s *Scheduler) withinOperatingHours(start, end time.Time) bool {
	y, m, d := start.Date()
	opening := time.Date(y, m, d, s.cfg.OpeningHour, 0, 0, 0, start.Location())
	closing := time.Date(y, m, d, s.cfg.ClosingHour, 0, 0, 0, start.Location())

	return start.After(opening) && end.Before(closing)
}
