package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/feastline/feastline/internal/pricing"
)

var ErrCouponNotFound = errors.New("coupon not found")

// MinimumOrderNotMetError reports a coupon whose minimum subtotal the
// order does not reach.
type MinimumOrderNotMetError struct {
	Code     string
	Required float64
}

func (e *MinimumOrderNotMetError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum order of %.2f", e.Code, e.Required)
}

// Coupon is one entry of the discount catalog.
type Coupon struct {
	Code             string               `json:"code" db:"code"`
	Kind             pricing.DiscountKind `json:"kind" db:"kind"`
	Value            float64              `json:"value" db:"value"`
	MinOrderSubtotal float64              `json:"min_order_subtotal" db:"min_order_subtotal"`
	Description      string               `json:"description" db:"description"`
	Active           bool                 `json:"active" db:"active"`
	CreatedAt        time.Time            `json:"created_at" db:"created_at"`
}

// DiscountInput converts the coupon into the calculator's discount shape.
func (c Coupon) DiscountInput() pricing.DiscountInput {
	return pricing.DiscountInput{
		Kind:        c.Kind,
		Value:       c.Value,
		Code:        c.Code,
		Description: c.Description,
	}
}

// Catalog is the read-only coupon store. Lookup is case-insensitive on
// the code.
type Catalog interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
}

type Service interface {
	Resolve(ctx context.Context, code string, subtotal float64) (*Coupon, error)
}

type service struct {
	catalog Catalog
}

func NewService(catalog Catalog) Service {
	return &service{catalog: catalog}
}

// Resolve looks up a coupon and checks its minimum-subtotal rule. The
// catalog is never mutated; redemption tracking is not part of this
// service.
func (s *service) Resolve(ctx context.Context, code string, subtotal float64) (*Coupon, error) {
	c, err := s.catalog.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			log.Warn().Str("code", code).Msg("service: coupon not found")
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("service: failed to look up coupon %q: %w", code, err)
	}

	if subtotal < c.MinOrderSubtotal {
		log.Info().Str("code", c.Code).Float64("subtotal", subtotal).Float64("required", c.MinOrderSubtotal).
			Msg("service: coupon minimum order not met")
		return nil, &MinimumOrderNotMetError{Code: c.Code, Required: c.MinOrderSubtotal}
	}

	return c, nil
}
