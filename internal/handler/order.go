package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/feastline/feastline/internal/auth"
	"github.com/feastline/feastline/internal/order"
	"github.com/feastline/feastline/internal/user"
)

type CreateOrderRequest struct {
	RestaurantID  string             `json:"restaurant_id" validate:"required,uuid4"`
	Items         []CreateOrderItem  `json:"items" validate:"required,min=1,dive"`
	Address       CreateOrderAddress `json:"delivery_address" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=card cash wallet upi gpay"`
	CouponCode    string             `json:"coupon_code,omitempty"`
}

type CreateOrderItem struct {
	MenuItemID     string                     `json:"menu_item_id" validate:"required,uuid4"`
	Quantity       int                        `json:"quantity" validate:"required,min=1"`
	Variant        string                     `json:"variant,omitempty"`
	Customizations []CreateOrderCustomization `json:"customizations,omitempty" validate:"dive"`
}

type CreateOrderCustomization struct {
	Name          string   `json:"name" validate:"required"`
	ChosenOptions []string `json:"chosen_options" validate:"required,min=1"`
}

type CreateOrderAddress struct {
	Street   string `json:"street" validate:"required"`
	City     string `json:"city" validate:"required"`
	Postcode string `json:"postcode" validate:"required"`
	Phone    string `json:"phone,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
	router.Patch("/orders/{id}/cancel", h.handleCancelOrder)
	router.Post("/orders/{id}/review", h.handleAttachReview)
	router.Post("/orders/{id}/reorder", h.handleReorder)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload CreateOrderRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	input, err := toCreateInput(identity.UserID, payload)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.service.Create(r.Context(), input)
	if err != nil {
		log.Info().Err(err).Stringer("user_id", identity.UserID).Msg("Failed to create order")
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	filter := order.Filter{}
	if s := r.URL.Query().Get("status"); s != "" {
		status := order.Status(s)
		filter.Status = &status
	}

	if isStaff(identity) {
		if u := r.URL.Query().Get("user"); u != "" {
			userID, err := uuid.FromString(u)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid user filter")
				return
			}
			filter.UserID = &userID
		}
		if rest := r.URL.Query().Get("restaurant"); rest != "" {
			restaurantID, err := uuid.FromString(rest)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid restaurant filter")
				return
			}
			filter.RestaurantID = &restaurantID
		}
	} else {
		// Customers only ever see their own orders.
		userID := identity.UserID
		filter.UserID = &userID
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	_, o, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !isStaff(identity) {
		respondWithError(w, http.StatusForbidden, "only staff may update order status")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var payload UpdateStatusRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), id, order.Status(payload.Status), payload.Note)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	identity, o, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}

	var payload CancelOrderRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	cancelled, err := h.service.Cancel(r.Context(), o.ID, payload.Reason, cancelledByFor(identity))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, cancelled)
}

func (h *OrderHandler) handleAttachReview(w http.ResponseWriter, r *http.Request) {
	identity, o, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}
	if o.UserID != identity.UserID {
		// Staff may read foreign orders but never review them.
		respondWithError(w, http.StatusForbidden, "only the order's owner may leave a review")
		return
	}

	var payload ReviewRequest
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}

	reviewed, err := h.service.AttachReview(r.Context(), o.ID, payload.Rating, payload.Comment)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, reviewed)
}

func (h *OrderHandler) handleReorder(w http.ResponseWriter, r *http.Request) {
	identity, o, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}
	if o.UserID != identity.UserID {
		respondWithError(w, http.StatusForbidden, "only the order's owner may reorder")
		return
	}

	created, err := h.service.Reorder(r.Context(), o.ID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// loadOwnedOrder resolves the path id and enforces that customers only
// touch their own orders. Staff roles pass through.
func (h *OrderHandler) loadOwnedOrder(w http.ResponseWriter, r *http.Request) (auth.Identity, *order.Order, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, nil, false
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return auth.Identity{}, nil, false
	}

	o, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return auth.Identity{}, nil, false
	}

	if !isStaff(identity) && o.UserID != identity.UserID {
		respondWithError(w, http.StatusForbidden, "order belongs to another user")
		return auth.Identity{}, nil, false
	}

	return identity, o, true
}

func (h *OrderHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, payload any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}

	if err := h.validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithValidationErrors(w, validationErrors)
		} else {
			respondWithError(w, http.StatusInternalServerError, "internal validation error")
		}
		return false
	}

	return true
}

func toCreateInput(userID uuid.UUID, payload CreateOrderRequest) (order.CreateInput, error) {
	restaurantID, err := uuid.FromString(payload.RestaurantID)
	if err != nil {
		return order.CreateInput{}, errors.New("invalid restaurant id")
	}

	items := make([]order.ItemInput, 0, len(payload.Items))
	for _, item := range payload.Items {
		menuItemID, err := uuid.FromString(item.MenuItemID)
		if err != nil {
			return order.CreateInput{}, errors.New("invalid menu item id")
		}
		customizations := make([]order.CustomizationInput, 0, len(item.Customizations))
		for _, c := range item.Customizations {
			customizations = append(customizations, order.CustomizationInput{
				Name:          c.Name,
				ChosenOptions: c.ChosenOptions,
			})
		}
		items = append(items, order.ItemInput{
			MenuItemID:     menuItemID,
			Quantity:       item.Quantity,
			Variant:        item.Variant,
			Customizations: customizations,
		})
	}

	return order.CreateInput{
		UserID:       userID,
		RestaurantID: restaurantID,
		Items:        items,
		Address: order.DeliveryAddress{
			Street:   payload.Address.Street,
			City:     payload.Address.City,
			Postcode: payload.Address.Postcode,
			Phone:    payload.Address.Phone,
			Notes:    payload.Address.Notes,
		},
		PaymentMethod: order.PaymentMethod(payload.PaymentMethod),
		CouponCode:    payload.CouponCode,
	}, nil
}

func isStaff(id auth.Identity) bool {
	return id.Role == string(user.RoleAdmin) || id.Role == string(user.RoleRestaurant)
}

func cancelledByFor(id auth.Identity) order.CancelledBy {
	switch id.Role {
	case string(user.RoleAdmin):
		return order.CancelledByAdmin
	case string(user.RoleRestaurant):
		return order.CancelledByRestaurant
	default:
		return order.CancelledByUser
	}
}
