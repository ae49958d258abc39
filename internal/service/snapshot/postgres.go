package snapshot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	postgresrepo "github.com/kirinyoku/bistro/internal/repository/postgres"
	"github.com/kirinyoku/bistro/internal/uow"
)

const saveAttempts = 3

// PostgresRepository stores snapshots through the repository layer in a
// single transaction.
type PostgresRepository struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

func NewPostgresRepository(store *postgresrepo.Store) *PostgresRepository {
	return &PostgresRepository{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

func (r *PostgresRepository) Load(ctx context.Context) (Snapshot, error) {
	const op = "snapshot.PostgresRepository.Load"

	var snap Snapshot

	err := r.uow.DoWithOpts(ctx, &pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(ctx context.Context, tx postgresrepo.DB, _ func(uow.AfterCommit)) error {
		var err error

		if snap.Reservations, err = r.store.Reservations().With(tx).List(ctx); err != nil {
			return err
		}
		if snap.Active, err = r.store.Orders().With(tx).ListActive(ctx); err != nil {
			return err
		}
		if snap.Completed, err = r.store.Orders().With(tx).ListCompleted(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return snap, nil
}

// Save replaces the stored state, retrying serialization failures.
func (r *PostgresRepository) Save(ctx context.Context, snap Snapshot) error {
	const op = "snapshot.PostgresRepository.Save"

	err := r.uow.WithRetry(saveAttempts).Do(ctx, func(ctx context.Context, tx postgresrepo.DB, _ func(uow.AfterCommit)) error {
		if err := r.store.Reservations().With(tx).ReplaceAll(ctx, snap.Reservations); err != nil {
			return err
		}
		return r.store.Orders().With(tx).SaveSnapshot(ctx, snap.Active, snap.Completed)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
