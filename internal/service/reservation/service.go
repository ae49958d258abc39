package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/bistro/internal/booking"
	"github.com/kirinyoku/bistro/internal/clock"
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/repository"
)

type CustomerDirectory interface {
	Customer(ctx context.Context, id int64) (domain.Customer, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.FloorEvent) error
}

type RateLimiter interface {
	Allow(ctx context.Context, clientID string) (allowed bool, current int64, retryAfter time.Duration, err error)
}

type Service struct {
	scheduler *booking.Scheduler
	customers CustomerDirectory
	publisher Publisher
	limiter   RateLimiter
	clock     clock.Clock
	logger    *slog.Logger
}

func New(
	scheduler *booking.Scheduler,
	customers CustomerDirectory,
	publisher Publisher,
	limiter RateLimiter,
	clk clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		scheduler: scheduler,
		customers: customers,
		publisher: publisher,
		limiter:   limiter,
		clock:     clk,
		logger:    logger,
	}
}

// CreateInput describes a reservation request. A zero DurationHours uses
// the configured default.
type CreateInput struct {
	CustomerID    int64
	PartySize     int
	Start         time.Time
	DurationHours int
}

// Create books a table for a registered customer.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: customer, party size and requested window.
//   - clientID: rate limit key, usually the client IP; empty disables limiting.
//
// Returns:
//   - domain.Reservation: the created reservation.
//   - error: RateLimitedError if the client exceeded its quota.
//   - error: domain.ErrNotFound if the customer is unknown.
//   - error: domain.ErrValidation or domain.ErrConflict from the scheduler.
func (s *Service) Create(ctx context.Context, in CreateInput, clientID string) (domain.Reservation, error) {
	const op = "service.reservation.Create"

	if s.limiter != nil && clientID != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, clientID)
		if err != nil {
			return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			return domain.Reservation{}, fmt.Errorf("%s: %w", op, RateLimitedError{RetryAfter: retry})
		}
	}

	customer, err := s.customer(ctx, in.CustomerID)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	res, err := s.scheduler.Add(booking.Request{
		Customer:      customer,
		PartySize:     in.PartySize,
		Start:         in.Start,
		DurationHours: in.DurationHours,
	}, now)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, domain.FloorEvent{
		Type:          domain.EventReservationCreated,
		TableNumber:   res.TableNumber,
		CustomerID:    res.CustomerID,
		ReservationID: res.ID.String(),
		At:            now,
	})

	return res, nil
}

// Cancel removes a reservation and releases its table if it was held.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	const op = "service.reservation.Cancel"

	now := s.clock.Now()
	res, err := s.scheduler.Remove(id, now)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, domain.FloorEvent{
		Type:          domain.EventReservationCancelled,
		TableNumber:   res.TableNumber,
		CustomerID:    res.CustomerID,
		ReservationID: res.ID.String(),
		At:            now,
	})

	return res, nil
}

func (s *Service) List(ctx context.Context) []domain.Reservation {
	return s.scheduler.List(s.clock.Now())
}

func (s *Service) Tables(ctx context.Context) []domain.Table {
	return s.scheduler.Tables(s.clock.Now())
}

// CheckIn seats a customer at the table reserved for them.
//
// Returns:
//   - domain.Table: the now occupied table.
//   - int: party size recorded on the reservation.
//   - error: domain.ErrNotFound if no table is held for the customer.
func (s *Service) CheckIn(ctx context.Context, customerID int64) (domain.Table, int, error) {
	const op = "service.reservation.CheckIn"

	now := s.clock.Now()
	table, party, err := s.scheduler.CheckIn(customerID, now)
	if err != nil {
		return domain.Table{}, 0, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, domain.FloorEvent{
		Type:        domain.EventTableSeated,
		TableNumber: table.Number,
		CustomerID:  customerID,
		At:          now,
	})

	return table, party, nil
}

// WalkIn seats a registered customer without a reservation.
func (s *Service) WalkIn(ctx context.Context, customerID int64, partySize int) (domain.Table, error) {
	const op = "service.reservation.WalkIn"

	if _, err := s.customer(ctx, customerID); err != nil {
		return domain.Table{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	table, err := s.scheduler.WalkIn(customerID, partySize, now)
	if err != nil {
		return domain.Table{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, domain.FloorEvent{
		Type:        domain.EventTableSeated,
		TableNumber: table.Number,
		CustomerID:  customerID,
		At:          now,
	})

	return table, nil
}

// Sweep runs the expiry sweep and announces no-shows.
func (s *Service) Sweep(ctx context.Context) domain.SweepResult {
	now := s.clock.Now()
	res := s.scheduler.Sweep(now)

	if res.Empty() {
		return res
	}

	s.logger.Info("reservations swept",
		"expired", len(res.Expired),
		"activated", len(res.Activated),
		"consumed", len(res.Consumed),
	)

	for _, r := range res.Expired {
		s.publish(ctx, domain.FloorEvent{
			Type:          domain.EventReservationExpired,
			TableNumber:   r.TableNumber,
			CustomerID:    r.CustomerID,
			ReservationID: r.ID.String(),
			At:            now,
		})
	}

	return res
}

func (s *Service) customer(ctx context.Context, id int64) (domain.Customer, error) {
	const op = "service.reservation.customer"

	c, err := s.customers.Customer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Customer{}, domain.NotFound(op, "customer %d", id)
		}
		return domain.Customer{}, err
	}

	return c, nil
}

func (s *Service) publish(ctx context.Context, ev domain.FloorEvent) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish floor event", "type", ev.Type, "table", ev.TableNumber, "error", err)
	}
}
