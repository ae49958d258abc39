package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirinyoku/bistro/internal/booking"
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/ledger"
)

// Snapshot is the persisted state of the floor.
type Snapshot struct {
	Reservations []domain.Reservation
	Active       []domain.Order
	Completed    []domain.Order
}

type Repository interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Service moves floor state between memory and the repository.
type Service struct {
	repo      Repository
	scheduler *booking.Scheduler
	ledger    *ledger.Ledger
	logger    *slog.Logger
}

func New(repo Repository, scheduler *booking.Scheduler, l *ledger.Ledger, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		scheduler: scheduler,
		ledger:    l,
		logger:    logger,
	}
}

// Load restores reservations and orders saved by a previous run. Tables of
// active orders are occupied again; reserved holds come back on the next
// sweep.
func (s *Service) Load(ctx context.Context) error {
	const op = "service.snapshot.Load"

	snap, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.scheduler.Restore(snap.Reservations); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.ledger.Restore(ctx, snap.Active, snap.Completed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("floor state restored",
		"reservations", len(snap.Reservations),
		"active_orders", len(snap.Active),
		"completed_orders", len(snap.Completed),
	)

	return nil
}

// Save writes the current floor state.
func (s *Service) Save(ctx context.Context) error {
	const op = "service.snapshot.Save"

	snap := Snapshot{
		Reservations: s.scheduler.Export(),
		Active:       s.ledger.ExportActive(),
		Completed:    s.ledger.ExportCompleted(),
	}

	if err := s.repo.Save(ctx, snap); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Debug("floor state saved",
		"reservations", len(snap.Reservations),
		"active_orders", len(snap.Active),
		"completed_orders", len(snap.Completed),
	)

	return nil
}
