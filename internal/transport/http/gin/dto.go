package httpgin

import (
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/ledger"
)

type CreateReservationRequest struct {
	CustomerID    int64  `json:"customer_id" binding:"required"`
	PartySize     int    `json:"party_size" binding:"required"`
	Start         string `json:"start" binding:"required"`
	DurationHours int    `json:"duration_hours"`
}

type CheckInRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required"`
}

type WalkInRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required"`
	PartySize  int   `json:"party_size" binding:"required"`
}

type OrderItemInput struct {
	Name     string `json:"name" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	StaffID    int64            `json:"staff_id" binding:"required"`
	CustomerID int64            `json:"customer_id" binding:"required"`
	PartySize  int              `json:"party_size"`
	Items      []OrderItemInput `json:"items" binding:"required,min=1,dive"`
}

type CreateCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact" binding:"required"`
	Member  bool   `json:"member"`
}

type CreateStaffRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"required"`
}

type CreateMenuItemRequest struct {
	Name        string   `json:"name" binding:"required"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Components  []string `json:"components"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CheckInResponse struct {
	Table     domain.Table `json:"table"`
	PartySize int          `json:"party_size"`
}

type RemoveItemResponse struct {
	Order     domain.Order `json:"order"`
	Discarded bool         `json:"discarded"`
}

type PayResponse struct {
	Order   domain.Order   `json:"order"`
	Invoice ledger.Invoice `json:"invoice"`
}
