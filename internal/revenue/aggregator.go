package revenue

import (
	"time"

	"github.com/kirinyoku/bistro/internal/domain"
)

// CompletedOrders is the read side of the ledger used for reporting.
type CompletedOrders interface {
	Completed() []domain.Order
}

type Aggregator struct {
	source CompletedOrders
}

func New(source CompletedOrders) *Aggregator {
	return &Aggregator{source: source}
}

// Day sums the nett totals of completed orders created on date.
//
// Parameters:
//   - date: any instant on the day to report; its location defines the day.
//   - now: current instant; dates after today are rejected.
//
// Returns:
//   - domain.DayRevenue: the orders and their total. NoSales is set when
//     nothing was sold.
//   - error: domain.ErrValidation for a future date.
func (a *Aggregator) Day(date, now time.Time) (domain.DayRevenue, error) {
	if err := ValidateDay(date, now); err != nil {
		return domain.DayRevenue{}, err
	}

	day := startOfDay(date)
	out := domain.DayRevenue{Date: day, Orders: []domain.Order{}}
	for _, o := range a.source.Completed() {
		if sameDay(o.CreatedAt.In(day.Location()), day) {
			out.Orders = append(out.Orders, o)
			out.Total += o.NettTotal
		}
	}
	out.NoSales = len(out.Orders) == 0

	return out, nil
}

// Month buckets nett totals per day of month and reports the best and worst
// trading days. Days without sales are skipped; ties go to the later day.
func (a *Aggregator) Month(year int, month time.Month, now time.Time) (domain.MonthRevenue, error) {
	if err := ValidateMonth(year, month, now); err != nil {
		return domain.MonthRevenue{}, err
	}

	loc := now.Location()
	out := domain.MonthRevenue{Year: year, Month: month}
	for _, o := range a.source.Completed() {
		y, m, d := o.CreatedAt.In(loc).Date()
		if y != year || m != month {
			continue
		}
		out.Days[d-1] += o.NettTotal
		out.Total += o.NettTotal
	}

	if out.Total == 0 {
		out.NoSales = true
		return out, nil
	}

	first := true
	for i, v := range out.Days {
		if v == 0 {
			continue
		}
		if first {
			out.MaxDay, out.MaxRevenue = i+1, v
			out.MinDay, out.MinRevenue = i+1, v
			first = false
			continue
		}
		if v >= out.MaxRevenue {
			out.MaxDay, out.MaxRevenue = i+1, v
		}
		if v <= out.MinRevenue {
			out.MinDay, out.MinRevenue = i+1, v
		}
	}

	return out, nil
}

// ValidateDay rejects a date after today.
func ValidateDay(date, now time.Time) error {
	const op = "revenue.Day"

	day := startOfDay(date)
	if day.After(startOfDay(now.In(date.Location()))) {
		return domain.Validation(op, "date %s is in the future", day.Format(time.DateOnly))
	}
	return nil
}

// ValidateMonth rejects a month after the current one.
func ValidateMonth(year int, month time.Month, now time.Time) error {
	const op = "revenue.Month"

	if month < time.January || month > time.December {
		return domain.Validation(op, "month %d is out of range", month)
	}

	cy, cm, _ := now.Date()
	if year > cy || (year == cy && month > cm) {
		return domain.Validation(op, "month %04d-%02d is in the future", year, month)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
