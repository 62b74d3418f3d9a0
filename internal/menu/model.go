package menu

import (
	"time"

	"github.com/gofrs/uuid"
)

// Restaurant is the browsing-side restaurant record.
type Restaurant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Cuisine   string    `json:"cuisine" db:"cuisine"`
	Address   string    `json:"address" db:"address"`
	IsOpen    bool      `json:"is_open" db:"is_open"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OptionChoice is one selectable option within a customization group.
type OptionChoice struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OptionGroup is a named customization group on a menu item
// (e.g. "Toppings" with priced choices).
type OptionGroup struct {
	Name    string         `json:"name"`
	Choices []OptionChoice `json:"choices"`
}

// MenuItem is the live menu entry. Orders snapshot its name and price at
// creation time; this record is the current truth, not the historical one.
type MenuItem struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	RestaurantID uuid.UUID     `json:"restaurant_id" db:"restaurant_id"`
	Name         string        `json:"name" db:"name"`
	Description  string        `json:"description" db:"description"`
	Category     string        `json:"category" db:"category"`
	Price        float64       `json:"price" db:"price"`
	OptionGroups []OptionGroup `json:"option_groups" db:"-"`
	IsAvailable  bool          `json:"is_available" db:"is_available"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// ChoicePrice returns the surcharge for a chosen option in a group, or
// false if the group or choice does not exist on this item.
func (m *MenuItem) ChoicePrice(group, choice string) (float64, bool) {
	for _, g := range m.OptionGroups {
		if g.Name != group {
			continue
		}
		for _, c := range g.Choices {
			if c.Name == choice {
				return c.Price, true
			}
		}
	}
	return 0, false
}
