package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	postgres "github.com/kirinyoku/bistro/internal/repository/postgres"
)

// AfterCommit runs once the transaction that registered it has committed.
type AfterCommit func(ctx context.Context)

// Work is the body of a unit of work. Hooks passed to after fire only when
// the final attempt commits.
type Work func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error

type txRunner interface {
	RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx postgres.DB) error) error
}

type UoW struct {
	runner    txRunner
	attempts  int
	retryable func(error) bool
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{
		runner:    store,
		attempts:  1,
		retryable: postgres.IsRetryable,
	}
}

// WithRetry returns a copy that reruns the whole unit on serialization
// failures and deadlocks, up to attempts times in total.
func (u *UoW) WithRetry(attempts int) *UoW {
	cp := *u
	if attempts < 1 {
		attempts = 1
	}
	cp.attempts = attempts
	return &cp
}

func (u *UoW) Do(ctx context.Context, fn Work) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn in a transaction with the given options.
//
// Returns:
//   - error: the error of the last attempt, unchanged.
func (u *UoW) DoWithOpts(ctx context.Context, opts *pgx.TxOptions, fn Work) error {
	for attempt := 1; ; attempt++ {
		var hooks []AfterCommit

		err := u.runner.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil {
			for _, h := range hooks {
				h(ctx)
			}
			return nil
		}

		if attempt >= u.attempts || ctx.Err() != nil || !u.retryable(err) {
			return err
		}
	}
}
