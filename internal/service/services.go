package service

import (
	"log/slog"

	"github.com/kirinyoku/bistro/internal/booking"
	"github.com/kirinyoku/bistro/internal/clock"
	"github.com/kirinyoku/bistro/internal/ledger"
	postgres "github.com/kirinyoku/bistro/internal/repository/postgres"
	redis "github.com/kirinyoku/bistro/internal/repository/redis"
	"github.com/kirinyoku/bistro/internal/revenue"
	"github.com/kirinyoku/bistro/internal/service/admin"
	"github.com/kirinyoku/bistro/internal/service/orders"
	"github.com/kirinyoku/bistro/internal/service/query"
	"github.com/kirinyoku/bistro/internal/service/reservation"
	"github.com/kirinyoku/bistro/internal/service/snapshot"
	"github.com/kirinyoku/bistro/internal/tables"
)

type Services struct {
	Reservation *reservation.Service
	Orders      *orders.Service
	Query       *query.Service
	Admin       *admin.Service
	Snapshot    *snapshot.Service
}

type Config struct {
	Tables  []int
	Booking booking.Config
	Ledger  ledger.Config
	Query   query.Config
}

// Publisher is implemented by the Redis and RabbitMQ event publishers.
type Publisher interface {
	reservation.Publisher
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	publisher Publisher,
	limiter reservation.RateLimiter,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) (*Services, error) {
	registry, err := tables.New(cfg.Tables)
	if err != nil {
		return nil, err
	}

	// A nil *redis.Cache must reach the services as a nil interface.
	var revenueCache orders.RevenueCache
	if cache != nil {
		revenueCache = cache
	}

	directory := store.Directory()
	scheduler := booking.New(registry, cfg.Booking)
	ldg := ledger.New(registry, directory, cfg.Ledger)

	return &Services{
		Reservation: reservation.New(scheduler, directory, publisher, limiter, clk, logger),
		Orders: orders.New(orders.Deps{
			Scheduler: scheduler,
			Ledger:    ldg,
			Customers: directory,
			Staff:     directory,
			Catalog:   directory,
			Publisher: publisher,
			Cache:     revenueCache,
			Clock:     clk,
			Logger:    logger,
		}),
		Query:    query.New(revenue.New(ldg), cache, clk, cfg.Query),
		Admin:    admin.New(store, logger),
		Snapshot: snapshot.New(snapshot.NewPostgresRepository(store), scheduler, ldg, logger),
	}, nil
}
