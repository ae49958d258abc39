package query

import (
	"context"
	"fmt"
	"time"

	"github.com/kirinyoku/bistro/internal/clock"
	"github.com/kirinyoku/bistro/internal/domain"
	redisrepo "github.com/kirinyoku/bistro/internal/repository/redis"
	"github.com/kirinyoku/bistro/internal/revenue"
)

type Config struct {
	ReportTTL time.Duration
}

// Service answers revenue reports, caching them in Redis when a cache is
// configured. Payments invalidate the affected day and month.
type Service struct {
	aggregator *revenue.Aggregator
	cache      *redisrepo.Cache
	clock      clock.Clock
	cfg        Config
}

func New(aggregator *revenue.Aggregator, cache *redisrepo.Cache, clk clock.Clock, cfg Config) *Service {
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = 5 * time.Minute
	}

	return &Service{
		aggregator: aggregator,
		cache:      cache,
		clock:      clk,
		cfg:        cfg,
	}
}

// DayRevenue reports completed orders created on date.
//
// Parameters:
//   - ctx: request-scoped context.
//   - date: the business day, in the restaurant's time zone.
//
// Returns:
//   - domain.DayRevenue: the day's orders and total.
//   - error: domain.ErrValidation if date is after today.
func (s *Service) DayRevenue(ctx context.Context, date time.Time) (domain.DayRevenue, error) {
	const op = "service.query.DayRevenue"

	now := s.clock.Now()
	if err := revenue.ValidateDay(date, now); err != nil {
		return domain.DayRevenue{}, fmt.Errorf("%s: %w", op, err)
	}

	load := func(context.Context) (domain.DayRevenue, error) {
		return s.aggregator.Day(date, now)
	}

	var (
		out domain.DayRevenue
		err error
	)
	if s.cache == nil {
		out, err = load(ctx)
	} else {
		out, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyDayRevenue(date), s.cfg.ReportTTL, load)
	}
	if err != nil {
		return domain.DayRevenue{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// MonthRevenue reports daily totals for a month with its best and worst
// trading days.
func (s *Service) MonthRevenue(ctx context.Context, year int, month time.Month) (domain.MonthRevenue, error) {
	const op = "service.query.MonthRevenue"

	now := s.clock.Now()
	if err := revenue.ValidateMonth(year, month, now); err != nil {
		return domain.MonthRevenue{}, fmt.Errorf("%s: %w", op, err)
	}

	load := func(context.Context) (domain.MonthRevenue, error) {
		return s.aggregator.Month(year, month, now)
	}

	var (
		out domain.MonthRevenue
		err error
	)
	if s.cache == nil {
		out, err = load(ctx)
	} else {
		out, err = redisrepo.GetOrSetJSON(ctx, s.cache, redisrepo.KeyMonthRevenue(year, month), s.cfg.ReportTTL, load)
	}
	if err != nil {
		return domain.MonthRevenue{}, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
