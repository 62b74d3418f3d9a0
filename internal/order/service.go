package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/feastline/feastline/internal/coupon"
	"github.com/feastline/feastline/internal/menu"
	"github.com/feastline/feastline/internal/metrics"
	"github.com/feastline/feastline/internal/pricing"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrNoAvailableItems = errors.New("none of the original items are still available")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrUnknownOption    = errors.New("unknown customization option")
	ErrVersionConflict  = errors.New("order was modified concurrently")
)

// InvalidMenuItemError reports an order item that does not resolve to a
// usable menu entry of the order's restaurant.
type InvalidMenuItemError struct {
	ItemID uuid.UUID
	Reason string
}

func (e *InvalidMenuItemError) Error() string {
	return fmt.Sprintf("invalid menu item %s: %s", e.ItemID, e.Reason)
}

// Repository is the order store. Create persists the order and credits
// the buyer's loyalty balance in one transaction; Update is a
// compare-and-swap on the order's version.
type Repository interface {
	Create(ctx context.Context, o *Order, loyaltyPoints int64) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter Filter) ([]Order, error)
	Update(ctx context.Context, o *Order) error
}

// Filter narrows order listings. Nil fields match everything.
type Filter struct {
	UserID       *uuid.UUID
	RestaurantID *uuid.UUID
	Status       *Status
}

// CustomizationInput is a chosen option group on an incoming order item.
type CustomizationInput struct {
	Name          string   `json:"name"`
	ChosenOptions []string `json:"chosen_options"`
}

// ItemInput is one requested line of a checkout submission. Prices are
// never taken from the client; they are resolved from the live menu.
type ItemInput struct {
	MenuItemID     uuid.UUID            `json:"menu_item_id"`
	Quantity       int                  `json:"quantity"`
	Variant        string               `json:"variant,omitempty"`
	Customizations []CustomizationInput `json:"customizations,omitempty"`
}

// CreateInput is a validated checkout submission.
type CreateInput struct {
	UserID        uuid.UUID
	RestaurantID  uuid.UUID
	Items         []ItemInput
	Address       DeliveryAddress
	PaymentMethod PaymentMethod
	CouponCode    string
}

type Service interface {
	Create(ctx context.Context, input CreateInput) (*Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, filter Filter) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status, note string) (*Order, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string, by CancelledBy) (*Order, error)
	AttachReview(ctx context.Context, id uuid.UUID, rating int, comment string) (*Order, error)
	Reorder(ctx context.Context, originalID uuid.UUID) (*Order, error)
}

// Config carries the pricing knobs and the delivery-time estimate used
// when new orders are created.
type Config struct {
	Pricing     pricing.Config
	DeliveryETA time.Duration
}

type service struct {
	orderRepo Repository
	menuRepo  menu.Repository
	coupons   coupon.Service
	cfg       Config
}

func NewService(orderRepo Repository, menuRepo menu.Repository, coupons coupon.Service, cfg Config) Service {
	return &service{
		orderRepo: orderRepo,
		menuRepo:  menuRepo,
		coupons:   coupons,
		cfg:       cfg,
	}
}

// Create validates a checkout submission against the live menu, prices
// it, and persists the order together with the loyalty credit. Item names
// and prices are snapshotted here; later menu edits never touch the
// stored order.
func (s *service) Create(ctx context.Context, input CreateInput) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, pricing.ErrNoItems
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %s has quantity %d", pricing.ErrInvalidQuantity, item.MenuItemID, item.Quantity)
		}
		ids = append(ids, item.MenuItemID)
	}

	menuItems, err := s.menuRepo.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load menu items: %w", err)
	}
	byID := make(map[uuid.UUID]*menu.MenuItem, len(menuItems))
	for i := range menuItems {
		byID[menuItems[i].ID] = &menuItems[i]
	}

	lineItems := make([]pricing.LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		entry, ok := byID[item.MenuItemID]
		if !ok {
			return nil, &InvalidMenuItemError{ItemID: item.MenuItemID, Reason: "no such menu item"}
		}
		if entry.RestaurantID != input.RestaurantID {
			// Cross-restaurant references are a hard error, never
			// silently repaired.
			return nil, &InvalidMenuItemError{ItemID: item.MenuItemID, Reason: "belongs to a different restaurant"}
		}
		if !entry.IsAvailable {
			return nil, &InvalidMenuItemError{ItemID: item.MenuItemID, Reason: "currently unavailable"}
		}

		line, err := snapshotLine(entry, item)
		if err != nil {
			return nil, err
		}
		lineItems = append(lineItems, line)
	}

	discount, err := s.resolveDiscount(ctx, input.CouponCode, subtotalOf(lineItems))
	if err != nil {
		return nil, err
	}

	o, err := s.assemble(input.UserID, input.RestaurantID, lineItems, input.Address, input.PaymentMethod, discount)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.Create(ctx, o, o.LoyaltyPointsEarned); err != nil {
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	metrics.IncOrderCreated()
	log.Info().Stringer("order_id", o.ID).Stringer("user_id", o.UserID).Float64("total", o.Pricing.Total).
		Msg("service: order created")

	return o, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]Order, error) {
	orders, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus advances the order along the lifecycle graph. Cancellation
// is not accepted here because it carries extra data; use Cancel.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status, note string) (*Order, error) {
	if _, known := allowedTransitions[newStatus]; !known {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}
	if newStatus == StatusCancelled {
		return nil, fmt.Errorf("%w: cancellations require a reason, use the cancel operation", ErrInvalidStatus)
	}

	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if newStatus == StatusRefunded {
		err = o.ProcessRefund(note, now)
	} else {
		err = o.Transition(newStatus, note, now)
	}
	if err != nil {
		log.Warn().Stringer("order_id", id).Str("from", o.Status.String()).Str("to", newStatus.String()).
			Msg("service: rejected status transition")
		return nil, err
	}

	if err := s.orderRepo.Update(ctx, o); err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", id).Str("status", newStatus.String()).Msg("service: order status updated")
	return o, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string, by CancelledBy) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := o.Cancel(reason, by, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := s.orderRepo.Update(ctx, o); err != nil {
		return nil, err
	}

	metrics.IncOrderCancelled(string(by))
	log.Info().Stringer("order_id", id).Str("cancelled_by", string(by)).Str("reason", reason).
		Msg("service: order cancelled")
	return o, nil
}

func (s *service) AttachReview(ctx context.Context, id uuid.UUID, rating int, comment string) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := o.AttachReview(rating, comment); err != nil {
		return nil, err
	}

	if err := s.orderRepo.Update(ctx, o); err != nil {
		return nil, err
	}

	return o, nil
}

// Reorder builds a fresh order from a past one. Items that have since
// left the menu or become unavailable are dropped, and surviving items
// are re-priced at current menu prices, deliberately diverging from the
// snapshot the original order keeps.
func (s *service) Reorder(ctx context.Context, originalID uuid.UUID) (*Order, error) {
	original, err := s.orderRepo.GetByID(ctx, originalID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(original.Items))
	for _, li := range original.Items {
		id, err := uuid.FromString(li.MenuItemID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	menuItems, err := s.menuRepo.GetItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load menu items for reorder: %w", err)
	}
	byID := make(map[string]*menu.MenuItem, len(menuItems))
	for i := range menuItems {
		byID[menuItems[i].ID.String()] = &menuItems[i]
	}

	lineItems := make([]pricing.LineItem, 0, len(original.Items))
	for _, li := range original.Items {
		entry, ok := byID[li.MenuItemID]
		if !ok || !entry.IsAvailable || entry.RestaurantID != original.RestaurantID {
			continue
		}

		line := pricing.LineItem{
			MenuItemID: li.MenuItemID,
			Name:       entry.Name,
			UnitPrice:  entry.Price,
			Quantity:   li.Quantity,
			Variant:    li.Variant,
		}
		for _, c := range li.Customizations {
			if priced, ok := repriceCustomization(entry, c); ok {
				line.Customizations = append(line.Customizations, priced)
			}
		}
		lineItems = append(lineItems, line)
	}

	if len(lineItems) == 0 {
		return nil, ErrNoAvailableItems
	}

	o, err := s.assemble(original.UserID, original.RestaurantID, lineItems, original.DeliveryAddress, original.PaymentMethod, pricing.NoDiscount)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.Create(ctx, o, o.LoyaltyPointsEarned); err != nil {
		return nil, fmt.Errorf("service: failed to create reorder: %w", err)
	}

	metrics.IncOrderCreated()
	log.Info().Stringer("order_id", o.ID).Stringer("original_order_id", originalID).
		Int("items", len(lineItems)).Msg("service: reorder created")

	return o, nil
}

func (s *service) resolveDiscount(ctx context.Context, code string, subtotal float64) (pricing.DiscountInput, error) {
	if code == "" {
		return pricing.NoDiscount, nil
	}

	c, err := s.coupons.Resolve(ctx, code, subtotal)
	if err != nil {
		metrics.IncCouponRejected()
		return pricing.NoDiscount, err
	}

	return c.DiscountInput(), nil
}

// assemble builds the pending order from snapshotted line items.
func (s *service) assemble(userID, restaurantID uuid.UUID, items []pricing.LineItem, addr DeliveryAddress, method PaymentMethod, discount pricing.DiscountInput) (*Order, error) {
	breakdown, err := pricing.ComputeBreakdown(items, s.cfg.Pricing, discount)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order id: %w", err)
	}

	now := time.Now().UTC()
	paymentStatus := PaymentStatusCompleted
	if method == PaymentCash {
		// Cash settles on delivery.
		paymentStatus = PaymentStatusPending
	}

	return &Order{
		ID:              id,
		UserID:          userID,
		RestaurantID:    restaurantID,
		Items:           items,
		Pricing:         breakdown,
		DeliveryAddress: addr,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		Status:          StatusPending,
		StatusHistory: []StatusChange{{
			Status:    StatusPending,
			Timestamp: now,
			Note:      "Order placed successfully",
		}},
		EstimatedDeliveryTime: now.Add(s.cfg.DeliveryETA),
		LoyaltyPointsEarned:   pricing.LoyaltyPoints(breakdown.Total, s.cfg.Pricing.LoyaltyRate),
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

func snapshotLine(entry *menu.MenuItem, item ItemInput) (pricing.LineItem, error) {
	line := pricing.LineItem{
		MenuItemID: entry.ID.String(),
		Name:       entry.Name,
		UnitPrice:  entry.Price,
		Quantity:   item.Quantity,
		Variant:    item.Variant,
	}

	for _, c := range item.Customizations {
		surcharge := 0.0
		for _, chosen := range c.ChosenOptions {
			price, ok := entry.ChoicePrice(c.Name, chosen)
			if !ok {
				return pricing.LineItem{}, fmt.Errorf("%w: %q / %q on item %s", ErrUnknownOption, c.Name, chosen, entry.ID)
			}
			surcharge += price
		}
		line.Customizations = append(line.Customizations, pricing.Customization{
			Name:                c.Name,
			ChosenOptions:       c.ChosenOptions,
			AdditionalUnitPrice: surcharge,
		})
	}

	return line, nil
}

// repriceCustomization re-resolves a historical customization against the
// current menu. Options that no longer exist are dropped.
func repriceCustomization(entry *menu.MenuItem, c pricing.Customization) (pricing.Customization, bool) {
	surcharge := 0.0
	kept := make([]string, 0, len(c.ChosenOptions))
	for _, chosen := range c.ChosenOptions {
		if price, ok := entry.ChoicePrice(c.Name, chosen); ok {
			surcharge += price
			kept = append(kept, chosen)
		}
	}
	if len(kept) == 0 {
		return pricing.Customization{}, false
	}
	return pricing.Customization{
		Name:                c.Name,
		ChosenOptions:       kept,
		AdditionalUnitPrice: surcharge,
	}, true
}

func subtotalOf(items []pricing.LineItem) float64 {
	subtotal := 0.0
	for _, li := range items {
		subtotal += li.LineTotal()
	}
	return subtotal
}
