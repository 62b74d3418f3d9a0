package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type postgresCatalog struct {
	db *sqlx.DB
}

func NewPostgresCatalog(db *sqlx.DB) Catalog {
	return &postgresCatalog{db: db}
}

func (r *postgresCatalog) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	query := `
		SELECT code, kind, value, min_order_subtotal, description, active, created_at
		FROM coupons
		WHERE LOWER(code) = LOWER($1) AND active
	`

	var c Coupon
	if err := r.db.GetContext(ctx, &c, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("repository: failed to select coupon %q: %w", code, err)
	}

	return &c, nil
}
