package admin

import (
	"errors"
	"testing"

	"github.com/kirinyoku/bistro/internal/domain"
)

func TestValidateMenuItem(t *testing.T) {
	tests := []struct {
		name string
		item domain.MenuItem
		ok   bool
	}{
		{"plain", domain.MenuItem{Name: "Soda", Kind: domain.MenuItemPlain, Price: 2}, true},
		{"free plain", domain.MenuItem{Name: "Water", Kind: domain.MenuItemPlain}, true},
		{"package", domain.MenuItem{Name: "Lunch Set", Kind: domain.MenuItemPackage, Price: 15, Components: []string{"Soda", "Burger"}}, true},
		{"no name", domain.MenuItem{Kind: domain.MenuItemPlain, Price: 2}, false},
		{"negative price", domain.MenuItem{Name: "Soda", Kind: domain.MenuItemPlain, Price: -1}, false},
		{"plain with components", domain.MenuItem{Name: "Soda", Kind: domain.MenuItemPlain, Components: []string{"Ice"}}, false},
		{"empty package", domain.MenuItem{Name: "Set", Kind: domain.MenuItemPackage}, false},
		{"self reference", domain.MenuItem{Name: "Set", Kind: domain.MenuItemPackage, Components: []string{"set"}}, false},
		{"duplicate component", domain.MenuItem{Name: "Set", Kind: domain.MenuItemPackage, Components: []string{"Soda", "Soda"}}, false},
		{"unknown kind", domain.MenuItem{Name: "Set", Kind: "combo"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMenuItem(tt.item)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestCheckComponents(t *testing.T) {
	kinds := map[string]domain.MenuItemKind{
		"Soda":      domain.MenuItemPlain,
		"Lunch Set": domain.MenuItemPackage,
	}

	if err := checkComponents([]string{"Soda"}, kinds); err != nil {
		t.Fatalf("valid components rejected: %v", err)
	}
	if err := checkComponents([]string{"Soda", "Fries"}, kinds); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing component error = %v", err)
	}
	if err := checkComponents([]string{"Lunch Set"}, kinds); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("nested package error = %v", err)
	}
}

func TestValidateStaffAndCustomer(t *testing.T) {
	if err := ValidateStaff(domain.Staff{Name: "Wes", Role: domain.RoleWaiter}); err != nil {
		t.Fatal(err)
	}
	if err := ValidateStaff(domain.Staff{Name: "Wes", Role: "sommelier"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown role error = %v", err)
	}
	if err := ValidateCustomer(domain.Customer{Name: "Ada"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing contact error = %v", err)
	}
}
