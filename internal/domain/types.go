package domain

import (
	"time"

	"github.com/google/uuid"
)

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableReserved  TableStatus = "reserved"
	TableOccupied  TableStatus = "occupied"
)

// Table is a physical table. Occupant is zero while the table is available.
type Table struct {
	Number   int         `json:"number"`
	Seats    int         `json:"seats"`
	Status   TableStatus `json:"status"`
	Occupant int64       `json:"occupant,omitempty"`
}

type Reservation struct {
	ID              uuid.UUID `json:"id"`
	TableNumber     int       `json:"table_number"`
	CustomerID      int64     `json:"customer_id"`
	CustomerName    string    `json:"customer_name"`
	CustomerContact string    `json:"customer_contact"`
	PartySize       int       `json:"party_size"`
	Start           time.Time `json:"start"`
	DurationHours   int       `json:"duration_hours"`
}

func (r Reservation) End() time.Time {
	return r.Start.Add(time.Duration(r.DurationHours) * time.Hour)
}

// Overlaps reports whether the two windows intersect. Touching edges do not.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && r.End().After(start)
}

// SweepResult describes what a reservation sweep changed.
type SweepResult struct {
	Expired   []Reservation
	Activated []Reservation
	Consumed  []Reservation
}

func (s SweepResult) Empty() bool {
	return len(s.Expired) == 0 && len(s.Activated) == 0 && len(s.Consumed) == 0
}

type OrderItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

type Order struct {
	ID            string      `json:"id"`
	StaffID       int64       `json:"staff_id"`
	CustomerID    int64       `json:"customer_id"`
	TableNumber   int         `json:"table_number"`
	PartySize     int         `json:"party_size"`
	Items         []OrderItem `json:"items"`
	CreatedAt     time.Time   `json:"created_at"`
	PaidAt        time.Time   `json:"paid_at,omitzero"`
	Member        bool        `json:"member"`
	OriginalTotal float64     `json:"original_total"`
	NettTotal     float64     `json:"nett_total"`
}

// ItemQuantity returns the quantity of the named item, or 0 if absent.
func (o *Order) ItemQuantity(name string) int {
	for _, it := range o.Items {
		if it.Name == name {
			return it.Quantity
		}
	}
	return 0
}

func (o *Order) IsEmpty() bool {
	return len(o.Items) == 0
}

// Clone returns a deep copy so callers never share the item slice.
func (o Order) Clone() Order {
	cp := o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return cp
}

type Customer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Member  bool   `json:"member"`
}

type StaffRole string

const (
	RoleWaiter   StaffRole = "waiter"
	RoleCashier  StaffRole = "cashier"
	RoleCleaner  StaffRole = "cleaner"
	RoleLineCook StaffRole = "line_cook"
	RoleSousChef StaffRole = "sous_chef"
	RoleChef     StaffRole = "chef"
)

func (r StaffRole) Valid() bool {
	switch r {
	case RoleWaiter, RoleCashier, RoleCleaner, RoleLineCook, RoleSousChef, RoleChef:
		return true
	}
	return false
}

type Staff struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Role StaffRole `json:"role"`
}

type MenuItemKind string

const (
	MenuItemPlain   MenuItemKind = "plain"
	MenuItemPackage MenuItemKind = "package"
)

// MenuItem is a catalog entry. Components names the plain items bundled
// into a package and is empty for plain items.
type MenuItem struct {
	Name        string       `json:"name"`
	Kind        MenuItemKind `json:"kind"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Components  []string     `json:"components,omitempty"`
}

type FloorEventType string

const (
	EventReservationCreated   FloorEventType = "reservation_created"
	EventReservationCancelled FloorEventType = "reservation_cancelled"
	EventReservationExpired   FloorEventType = "reservation_expired"
	EventTableSeated          FloorEventType = "table_seated"
	EventOrderPlaced          FloorEventType = "order_placed"
	EventOrderPaid            FloorEventType = "order_paid"
)

// FloorEvent is published after a change to tables, reservations or orders.
type FloorEvent struct {
	Type          FloorEventType `json:"type"`
	TableNumber   int            `json:"table_number"`
	CustomerID    int64          `json:"customer_id,omitempty"`
	ReservationID string         `json:"reservation_id,omitempty"`
	OrderID       string         `json:"order_id,omitempty"`
	At            time.Time      `json:"at"`
}

type DayRevenue struct {
	Date    time.Time `json:"date"`
	Total   float64   `json:"total"`
	Orders  []Order   `json:"orders"`
	NoSales bool      `json:"no_sales"`
}

type MonthRevenue struct {
	Year       int         `json:"year"`
	Month      time.Month  `json:"month"`
	Days       [31]float64 `json:"days"`
	Total      float64     `json:"total"`
	NoSales    bool        `json:"no_sales"`
	MaxDay     int         `json:"max_day"`
	MaxRevenue float64     `json:"max_revenue"`
	MinDay     int         `json:"min_day"`
	MinRevenue float64     `json:"min_revenue"`
}
