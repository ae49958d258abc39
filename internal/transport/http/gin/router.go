package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/bistro/internal/domain"
	redisrepo "github.com/kirinyoku/bistro/internal/repository/redis"
	"github.com/kirinyoku/bistro/internal/service"
	"github.com/kirinyoku/bistro/internal/service/orders"
	"github.com/kirinyoku/bistro/internal/service/reservation"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// IdempotencyStore remembers the response of a keyed POST so retries replay it.
type IdempotencyStore interface {
	GetResult(ctx context.Context, key string) (string, bool, error)
	AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	SaveResult(ctx context.Context, key string, jsonPayload string) error
	Release(ctx context.Context, key string) error
}

const idemLockTTL = 60 * time.Second

// NewRouter wires every HTTP route onto a gin engine.
//
// Parameters:
//   - svcs: application services.
//   - idem: idempotency store for POST /reservations; nil disables replay.
//   - loc: restaurant time zone used to interpret report dates.
//   - logger: request logger.
//   - middlewares: extra middlewares appended after the defaults.
func NewRouter(
	svcs *service.Services,
	idem IdempotencyStore,
	loc *time.Location,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	if loc == nil {
		loc = time.Local
	}

	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/tables", handleListTables(svcs))

	r.GET("/reservations", handleListReservations(svcs))
	r.POST("/reservations", handleCreateReservation(svcs, idem))
	r.DELETE("/reservations/:id", handleCancelReservation(svcs))

	r.POST("/seatings/check-in", handleCheckIn(svcs))
	r.POST("/seatings/walk-in", handleWalkIn(svcs))

	r.GET("/orders", handleListOrders(svcs))
	r.GET("/orders/:id", handleGetOrder(svcs))
	r.POST("/orders", handleCreateOrder(svcs))
	r.POST("/orders/:id/items", handleAddOrderItem(svcs))
	r.DELETE("/orders/:id/items/:name", handleRemoveOrderItem(svcs))
	r.POST("/orders/:id/pay", handlePayOrder(svcs))

	reports := r.Group("/reports/revenue")
	{
		reports.GET("/day", handleDayRevenue(svcs, loc))
		reports.GET("/month", handleMonthRevenue(svcs))
	}

	// TODO: put the admin group behind staff authentication.
	admin := r.Group("/admin")
	{
		admin.POST("/customers", handleCreateCustomer(svcs))
		admin.POST("/staff", handleCreateStaff(svcs))
		admin.POST("/menu-items", handleCreateMenuItem(svcs))
	}

	return r
}

// @Summary  List tables with their availability
// @Success  200  {array}  domain.Table
// @Router   /tables [get]
func handleListTables(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables := svcs.Reservation.Tables(c.Request.Context())
		writeJSONWithCache(c, http.StatusOK, tables, "no-cache", true)
	}
}

// @Summary  List reservations ordered by start time
// @Success  200  {array}  domain.Reservation
// @Router   /reservations [get]
func handleListReservations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		writeJSONWithCache(c, http.StatusOK, svcs.Reservation.List(c.Request.Context()), "no-cache", true)
	}
}

// @Summary  Create reservation (idempotent)
// @Param    req body  CreateReservationRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} domain.Reservation
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "unknown customer"
// @Failure  409 {object} ErrorResponse "no table fits / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /reservations [post]
func handleCreateReservation(svcs *service.Services, idem IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			badRequest(c, "invalid start (RFC3339)")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemReservation(idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				replay(c, idemKey, payload)
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		res, err := svcs.Reservation.Create(c.Request.Context(), reservation.CreateInput{
			CustomerID:    req.CustomerID,
			PartySize:     req.PartySize,
			Start:         start,
			DurationHours: req.DurationHours,
		}, "ip:"+c.ClientIP())
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(res)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, res)
	}
}

// @Summary  Cancel reservation
// @Param    id  path  string  true  "Reservation ID (uuid)"
// @Success  200 {object} domain.Reservation
// @Failure  404 {object} ErrorResponse
// @Router   /reservations/{id} [delete]
func handleCancelReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			badRequest(c, "invalid id")
			return
		}
		res, err := svcs.Reservation.Cancel(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary  Check in a customer holding a reservation
// @Param    req body  CheckInRequest true "payload"
// @Success  200 {object} CheckInResponse
// @Failure  404 {object} ErrorResponse "no active reservation"
// @Router   /seatings/check-in [post]
func handleCheckIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		table, party, err := svcs.Reservation.CheckIn(c.Request.Context(), req.CustomerID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CheckInResponse{Table: table, PartySize: party})
	}
}

// @Summary  Seat a walk-in party
// @Param    req body  WalkInRequest true "payload"
// @Success  200 {object} domain.Table
// @Failure  404 {object} ErrorResponse "no free table"
// @Router   /seatings/walk-in [post]
func handleWalkIn(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WalkInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		table, err := svcs.Reservation.WalkIn(c.Request.Context(), req.CustomerID, req.PartySize)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, table)
	}
}

// @Summary  List active orders
// @Success  200 {array} domain.Order
// @Router   /orders [get]
func handleListOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svcs.Orders.List(c.Request.Context()))
	}
}

// @Summary  Get active order
// @Param    id  path  string  true  "Order ID"
// @Success  200 {object} domain.Order
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svcs.Orders.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  Seat a customer and place an order
// @Param    req body  CreateOrderRequest true "payload"
// @Success  201 {object} domain.Order
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "unknown staff, customer or menu item, or no free table"
// @Router   /orders [post]
func handleCreateOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		items := make([]orders.ItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, orders.ItemInput{Name: it.Name, Quantity: it.Quantity})
		}
		o, err := svcs.Orders.Create(c.Request.Context(), orders.CreateInput{
			StaffID:    req.StaffID,
			CustomerID: req.CustomerID,
			PartySize:  req.PartySize,
			Items:      items,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// @Summary  Add item to an active order
// @Param    id  path  string  true  "Order ID"
// @Param    req body  OrderItemInput true "payload"
// @Success  200 {object} domain.Order
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id}/items [post]
func handleAddOrderItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OrderItemInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		o, err := svcs.Orders.AddItem(c.Request.Context(), c.Param("id"), req.Name, req.Quantity)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  Remove item from an active order
// @Param    id        path   string  true   "Order ID"
// @Param    name      path   string  true   "Item name"
// @Param    quantity  query  int     false  "quantity to remove (default 1)"
// @Success  200 {object} RemoveItemResponse
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id}/items/{name} [delete]
func handleRemoveOrderItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		qty, err := parseIntDefault(c.Query("quantity"), 1)
		if err != nil {
			badRequest(c, "invalid quantity")
			return
		}
		o, discarded, err := svcs.Orders.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("name"), qty)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, RemoveItemResponse{Order: o, Discarded: discarded})
	}
}

// @Summary  Pay an order and free its table
// @Param    id  path  string  true  "Order ID"
// @Success  200 {object} PayResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "order is empty"
// @Router   /orders/{id}/pay [post]
func handlePayOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, inv, err := svcs.Orders.Pay(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, PayResponse{Order: o, Invoice: inv})
	}
}

// @Summary  Revenue of one day
// @Param    date  query  string  true  "YYYY-MM-DD"
// @Success  200 {object} domain.DayRevenue
// @Failure  400 {object} ErrorResponse
// @Router   /reports/revenue/day [get]
func handleDayRevenue(svcs *service.Services, loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, err := time.ParseInLocation(time.DateOnly, c.Query("date"), loc)
		if err != nil {
			badRequest(c, "invalid date (YYYY-MM-DD)")
			return
		}
		rep, err := svcs.Query.DayRevenue(c.Request.Context(), date)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, rep, "private, max-age=60", true)
	}
}

// @Summary  Revenue of one month
// @Param    month  query  string  true  "YYYY-MM"
// @Success  200 {object} domain.MonthRevenue
// @Failure  400 {object} ErrorResponse
// @Router   /reports/revenue/month [get]
func handleMonthRevenue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		year, month, err := parseMonth(c.Query("month"))
		if err != nil {
			badRequest(c, "invalid month (YYYY-MM)")
			return
		}
		rep, err := svcs.Query.MonthRevenue(c.Request.Context(), year, month)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, rep, "private, max-age=60", true)
	}
}

// @Summary  Register customer
// @Param    req body  CreateCustomerRequest true "payload"
// @Success  201 {object} domain.Customer
// @Failure  409 {object} ErrorResponse
// @Router   /admin/customers [post]
func handleCreateCustomer(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCustomerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		cust, err := svcs.Admin.CreateCustomer(c.Request.Context(), domain.Customer{
			Name:    req.Name,
			Contact: req.Contact,
			Member:  req.Member,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, cust)
	}
}

// @Summary  Register staff member
// @Param    req body  CreateStaffRequest true "payload"
// @Success  201 {object} domain.Staff
// @Failure  400 {object} ErrorResponse "unknown role"
// @Router   /admin/staff [post]
func handleCreateStaff(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateStaffRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		st, err := svcs.Admin.CreateStaff(c.Request.Context(), domain.Staff{
			Name: req.Name,
			Role: domain.StaffRole(req.Role),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, st)
	}
}

// @Summary  Add menu item or package
// @Param    req body  CreateMenuItemRequest true "payload"
// @Success  201 {object} domain.MenuItem
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "name taken"
// @Router   /admin/menu-items [post]
func handleCreateMenuItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateMenuItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		kind := domain.MenuItemKind(req.Kind)
		if kind == "" {
			kind = domain.MenuItemPlain
		}
		item, err := svcs.Admin.CreateMenuItem(c.Request.Context(), domain.MenuItem{
			Name:        req.Name,
			Kind:        kind,
			Description: req.Description,
			Price:       req.Price,
			Components:  req.Components,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// --- Helpers ---

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// parseMonth reads a YYYY-MM value.
func parseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", retryAfterSeconds(rl.RetryAfter))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: reservation.ErrRateLimited.Error()})
		return
	}

	switch domain.KindOf(err) {
	case domain.ErrValidation:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: message(err)})
	case domain.ErrNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: message(err)})
	case domain.ErrConflict, domain.ErrState:
		c.JSON(http.StatusConflict, ErrorResponse{Error: message(err)})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// message returns the human part of a domain error without the op chain.
func message(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
