package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/bistro/internal/booking"
	"github.com/kirinyoku/bistro/internal/clock"
	"github.com/kirinyoku/bistro/internal/config"
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/ledger"
	"github.com/kirinyoku/bistro/internal/postgres"
	"github.com/kirinyoku/bistro/internal/redis"
	postgresrepo "github.com/kirinyoku/bistro/internal/repository/postgres"
	"github.com/kirinyoku/bistro/internal/repository/rabbitmq"
	redisrepo "github.com/kirinyoku/bistro/internal/repository/redis"
	"github.com/kirinyoku/bistro/internal/service"
	"github.com/kirinyoku/bistro/internal/service/query"
	httpgin "github.com/kirinyoku/bistro/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	rdb        *goredis.Client
	pubsub     *redisrepo.EventsPubSub
	rabbit     *rabbitmq.Publisher
	services   *service.Services
	httpServer *http.Server
}

// New connects to Postgres and Redis, applies migrations, builds the
// services and restores the floor from the last snapshot.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN(),
		MaxConns: cfg.Postgres.MaxConns,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, pool: pgxPool, rdb: rdb}

	store := postgresrepo.NewStore(pgxPool)
	applied, err := store.Migrate(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "files", applied)
	}

	cache := redisrepo.New(rdb)
	a.pubsub = redisrepo.NewEventsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "reservations", cfg.Limits.RateLimit, cfg.Limits.RateWindow)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Limits.IdempotencyTTL)

	var publisher service.Publisher = a.pubsub
	if cfg.Events.Backend == "rabbitmq" {
		a.rabbit, err = rabbitmq.NewPublisher(cfg.Events.RabbitMQURL, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
		publisher = a.rabbit
	}

	loc := cfg.Floor.Location()
	a.services, err = service.NewServices(store, cache, publisher, limiter, clock.System(loc), logger, service.Config{
		Tables: cfg.Floor.TableCapacities,
		Booking: booking.Config{
			DurationHours: cfg.Floor.ReservationHours,
			OpeningHour:   cfg.Floor.OpeningHour,
			ClosingHour:   cfg.Floor.ClosingHour,
			NoShowGrace:   cfg.Floor.NoShowGrace,
			Location:      loc,
		},
		Ledger: ledger.Config{},
		Query:  query.Config{},
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := a.services.Snapshot.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to restore floor: %w", err)
	}

	router := httpgin.NewRouter(a.services, idempotencyStore, loc, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Run serves HTTP and the background workers until ctx is cancelled or a
// termination signal arrives, then saves a final snapshot.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		every(gCtx, a.cfg.Workers.SweepInterval, func() {
			a.services.Reservation.Sweep(gCtx)
		})
		return nil
	})

	g.Go(func() error {
		every(gCtx, a.cfg.Workers.SnapshotInterval, func() {
			if err := a.services.Snapshot.Save(gCtx); err != nil {
				a.logger.Error("periodic snapshot failed", "error", err)
			}
		})
		return nil
	})

	if a.rabbit == nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, func(_ context.Context, ev domain.FloorEvent) {
				a.logger.Debug("floor event", "type", ev.Type, "table", ev.TableNumber, "order_id", ev.OrderID)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("floor event subscription ended", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := a.services.Snapshot.Save(shutdownCtx); err != nil {
			return fmt.Errorf("final snapshot: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (a *App) close() {
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq publisher", "error", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
