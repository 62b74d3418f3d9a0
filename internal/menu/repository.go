package menu

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrRestaurantNotFound = errors.New("restaurant not found")

// Repository is the read-only menu/restaurant store used by browsing
// endpoints and by order creation for item validation.
type Repository interface {
	ListRestaurants(ctx context.Context) ([]Restaurant, error)
	GetRestaurantByID(ctx context.Context, id uuid.UUID) (*Restaurant, error)
	ListMenu(ctx context.Context, restaurantID uuid.UUID) ([]MenuItem, error)
	GetItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]MenuItem, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	query := `
		SELECT id, name, cuisine, address, is_open, created_at, updated_at
		FROM restaurants
		ORDER BY name
	`

	restaurants := make([]Restaurant, 0)
	if err := r.db.SelectContext(ctx, &restaurants, query); err != nil {
		return nil, fmt.Errorf("repository: failed to select restaurants: %w", err)
	}

	return restaurants, nil
}

func (r *postgresRepository) GetRestaurantByID(ctx context.Context, id uuid.UUID) (*Restaurant, error) {
	query := `
		SELECT id, name, cuisine, address, is_open, created_at, updated_at
		FROM restaurants
		WHERE id = $1
	`

	var restaurant Restaurant
	if err := r.db.GetContext(ctx, &restaurant, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("repository: failed to select restaurant %s: %w", id, err)
	}

	return &restaurant, nil
}

func (r *postgresRepository) ListMenu(ctx context.Context, restaurantID uuid.UUID) ([]MenuItem, error) {
	query := `
		SELECT id, restaurant_id, name, description, category, price, option_groups, is_available, created_at, updated_at
		FROM menu_items
		WHERE restaurant_id = $1
		ORDER BY category, name
	`

	rows, err := r.db.QueryxContext(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query menu for restaurant %s: %w", restaurantID, err)
	}
	defer rows.Close()

	return scanMenuItems(rows)
}

func (r *postgresRepository) GetItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]MenuItem, error) {
	if len(ids) == 0 {
		return []MenuItem{}, nil
	}

	idStrs := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrs = append(idStrs, id.String())
	}

	query := `
		SELECT id, restaurant_id, name, description, category, price, option_groups, is_available, created_at, updated_at
		FROM menu_items
		WHERE id = ANY($1)
	`

	rows, err := r.db.QueryxContext(ctx, query, pq.Array(idStrs))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query menu items by ids: %w", err)
	}
	defer rows.Close()

	return scanMenuItems(rows)
}

func scanMenuItems(rows *sqlx.Rows) ([]MenuItem, error) {
	items := make([]MenuItem, 0)
	for rows.Next() {
		var (
			item       MenuItem
			groupsJSON []byte
		)
		err := rows.Scan(
			&item.ID,
			&item.RestaurantID,
			&item.Name,
			&item.Description,
			&item.Category,
			&item.Price,
			&groupsJSON,
			&item.IsAvailable,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan menu item: %w", err)
		}
		if len(groupsJSON) > 0 {
			if err := json.Unmarshal(groupsJSON, &item.OptionGroups); err != nil {
				return nil, fmt.Errorf("repository: failed to unmarshal option groups for item %s: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating menu items: %w", err)
	}

	return items, nil
}
