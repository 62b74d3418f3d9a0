package pricing

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoItems         = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
)

// DiscountKind tells how a discount amount was derived.
type DiscountKind string

const (
	DiscountNone         DiscountKind = "none"
	DiscountPercentage   DiscountKind = "percentage"
	DiscountFixed        DiscountKind = "fixed"
	DiscountFreeDelivery DiscountKind = "free_delivery"
)

// Customization is one chosen option group on a line item. The additional
// price is snapshotted from the menu when the order is created.
type Customization struct {
	Name                string   `json:"name"`
	ChosenOptions       []string `json:"chosen_options"`
	AdditionalUnitPrice float64  `json:"additional_unit_price"`
}

// LineItem is one ordered menu entry. Name and unit price are captured at
// order time; later menu edits must not change historical orders.
type LineItem struct {
	MenuItemID     string          `json:"menu_item_id"`
	Name           string          `json:"name"`
	UnitPrice      float64         `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	Variant        string          `json:"variant,omitempty"`
	Customizations []Customization `json:"customizations,omitempty"`
}

// LineTotal returns (unit price + customization surcharges) * quantity.
func (li LineItem) LineTotal() float64 {
	unit := li.UnitPrice
	for _, c := range li.Customizations {
		unit += c.AdditionalUnitPrice
	}
	return unit * float64(li.Quantity)
}

// DiscountInput is a resolved coupon handed to the calculator. Value is
// the raw coupon value (a percentage for percentage kinds, a currency
// amount for fixed kinds, unused for free_delivery).
type DiscountInput struct {
	Kind        DiscountKind
	Value       float64
	Code        string
	Description string
}

// NoDiscount is the zero discount applied when no coupon was given.
var NoDiscount = DiscountInput{Kind: DiscountNone}

// Discount is the applied-discount part of a breakdown.
type Discount struct {
	Amount      float64      `json:"amount"`
	Kind        DiscountKind `json:"kind"`
	Code        string       `json:"code,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Breakdown is the itemized result of pricing an order.
type Breakdown struct {
	Subtotal    float64  `json:"subtotal"`
	DeliveryFee float64  `json:"delivery_fee"`
	ServiceFee  float64  `json:"service_fee"`
	TaxAmount   float64  `json:"tax_amount"`
	Discount    Discount `json:"discount"`
	Total       float64  `json:"total"`
}

// Config carries the fee and tax knobs. These are deployment
// configuration, not constants: tax rate in particular varies by locale.
type Config struct {
	DeliveryFeeBase float64
	ServiceFeeRate  float64
	TaxRate         float64
	LoyaltyRate     float64
}

// ComputeBreakdown prices a set of line items. It is deterministic and has
// no side effects; callers may re-run it freely. The discount describes
// what was already resolved from a coupon (NoDiscount for no coupon):
// percentage and fixed kinds reduce the total, free_delivery zeroes the
// delivery fee instead. A fixed discount never exceeds the subtotal and
// the total is never negative.
func ComputeBreakdown(items []LineItem, cfg Config, discount DiscountInput) (Breakdown, error) {
	if len(items) == 0 {
		return Breakdown{}, ErrNoItems
	}

	subtotal := 0.0
	for _, item := range items {
		if item.Quantity < 1 {
			return Breakdown{}, fmt.Errorf("%w: item %q has quantity %d", ErrInvalidQuantity, item.Name, item.Quantity)
		}
		subtotal += item.LineTotal()
	}

	serviceFee := subtotal * cfg.ServiceFeeRate
	taxAmount := subtotal * cfg.TaxRate

	deliveryFee := cfg.DeliveryFeeBase
	if discount.Kind == DiscountFreeDelivery {
		deliveryFee = 0
	}

	applied := Discount{
		Kind:        discount.Kind,
		Code:        discount.Code,
		Description: discount.Description,
	}
	switch discount.Kind {
	case DiscountPercentage:
		applied.Amount = subtotal * discount.Value / 100
	case DiscountFixed:
		applied.Amount = math.Min(discount.Value, subtotal)
	case DiscountFreeDelivery:
		// The benefit is the waived delivery fee, not a discount amount.
		applied.Amount = 0
	default:
		applied.Kind = DiscountNone
	}

	total := subtotal + deliveryFee + serviceFee + taxAmount - applied.Amount
	if total < 0 {
		total = 0
	}

	return Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		ServiceFee:  serviceFee,
		TaxAmount:   taxAmount,
		Discount:    applied,
		Total:       total,
	}, nil
}

// LoyaltyPoints returns the points earned for an order total, rounded
// down to whole points.
func LoyaltyPoints(total float64, rate float64) int64 {
	return int64(math.Floor(total * rate))
}
