package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/kirinyoku/bistro/internal/repository"
	postgresrepo "github.com/kirinyoku/bistro/internal/repository/postgres"
	"github.com/kirinyoku/bistro/internal/uow"
)

// Service registers customers, staff and menu items.
type Service struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	logger *slog.Logger
}

func New(store *postgresrepo.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		logger: logger,
	}
}

func (s *Service) CreateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	const op = "service.admin.CreateCustomer"

	c.Name = strings.TrimSpace(c.Name)
	c.Contact = strings.TrimSpace(c.Contact)
	if err := ValidateCustomer(c); err != nil {
		return domain.Customer{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.store.Admin().CreateCustomer(ctx, c.Name, c.Contact, c.Member)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("%s: %w", op, err)
	}
	c.ID = id

	return c, nil
}

func (s *Service) CreateStaff(ctx context.Context, st domain.Staff) (domain.Staff, error) {
	const op = "service.admin.CreateStaff"

	st.Name = strings.TrimSpace(st.Name)
	if err := ValidateStaff(st); err != nil {
		return domain.Staff{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.store.Admin().CreateStaff(ctx, st.Name, st.Role)
	if err != nil {
		return domain.Staff{}, fmt.Errorf("%s: %w", op, err)
	}
	st.ID = id

	return st, nil
}

// CreateMenuItem adds a catalog entry within a unit of work.
//
// Parameters:
//   - ctx: request-scoped context.
//   - item: a plain item, or a package whose components are existing plain items.
//
// Returns:
//   - domain.MenuItem: the stored item.
//   - error: domain.ErrValidation for malformed items or non-plain components.
//   - error: domain.ErrNotFound if a component does not exist.
//   - error: domain.ErrConflict if the name is taken, ignoring case.
func (s *Service) CreateMenuItem(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	const op = "service.admin.CreateMenuItem"

	item.Name = strings.TrimSpace(item.Name)
	if item.Kind == "" {
		item.Kind = domain.MenuItemPlain
	}
	if err := ValidateMenuItem(item); err != nil {
		return domain.MenuItem{}, fmt.Errorf("%s: %w", op, err)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		admin := s.store.Admin().With(tx)

		if item.Kind == domain.MenuItemPackage {
			kinds, err := admin.MenuItemKinds(ctx, item.Components)
			if err != nil {
				return err
			}
			if err := checkComponents(item.Components, kinds); err != nil {
				return err
			}
		}

		if err := admin.CreateMenuItem(ctx, item); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.Conflict(op, "menu item %q already exists", item.Name)
			}
			return err
		}

		after(func(context.Context) {
			s.logger.Info("menu item created", "name", item.Name, "kind", item.Kind)
		})

		return nil
	})
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("%s: %w", op, err)
	}

	return item, nil
}

func ValidateCustomer(c domain.Customer) error {
	const op = "admin.ValidateCustomer"

	if c.Name == "" {
		return domain.Validation(op, "customer name is required")
	}
	if c.Contact == "" {
		return domain.Validation(op, "customer contact is required")
	}
	return nil
}

func ValidateStaff(st domain.Staff) error {
	const op = "admin.ValidateStaff"

	if st.Name == "" {
		return domain.Validation(op, "staff name is required")
	}
	if !st.Role.Valid() {
		return domain.Validation(op, "unknown staff role %q", st.Role)
	}
	return nil
}

func ValidateMenuItem(item domain.MenuItem) error {
	const op = "admin.ValidateMenuItem"

	if item.Name == "" {
		return domain.Validation(op, "menu item name is required")
	}
	if item.Price < 0 {
		return domain.Validation(op, "price of %q must not be negative", item.Name)
	}

	switch item.Kind {
	case domain.MenuItemPlain:
		if len(item.Components) > 0 {
			return domain.Validation(op, "plain item %q cannot have components", item.Name)
		}
	case domain.MenuItemPackage:
		if len(item.Components) == 0 {
			return domain.Validation(op, "package %q needs at least one component", item.Name)
		}
		seen := make(map[string]struct{}, len(item.Components))
		for _, c := range item.Components {
			if strings.EqualFold(c, item.Name) {
				return domain.Validation(op, "package %q cannot contain itself", item.Name)
			}
			if _, dup := seen[c]; dup {
				return domain.Validation(op, "package %q lists %q twice", item.Name, c)
			}
			seen[c] = struct{}{}
		}
	default:
		return domain.Validation(op, "unknown menu item kind %q", item.Kind)
	}

	return nil
}

func checkComponents(components []string, kinds map[string]domain.MenuItemKind) error {
	const op = "admin.checkComponents"

	for _, c := range components {
		kind, ok := kinds[c]
		if !ok {
			return domain.NotFound(op, "component %q", c)
		}
		if kind != domain.MenuItemPlain {
			return domain.Validation(op, "component %q is a package", c)
		}
	}
	return nil
}
