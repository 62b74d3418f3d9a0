package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/feastline/feastline/internal/menu"
)

type MenuHandler struct {
	repo menu.Repository
}

func NewMenuHandler(repo menu.Repository) *MenuHandler {
	return &MenuHandler{repo: repo}
}

func (h *MenuHandler) RegisterRoutes(router chi.Router) {
	router.Get("/restaurants", h.handleListRestaurants)
	router.Get("/restaurants/{id}", h.handleGetRestaurant)
	router.Get("/restaurants/{id}/menu", h.handleListMenu)
}

func (h *MenuHandler) handleListRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.repo.ListRestaurants(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, restaurants)
}

func (h *MenuHandler) handleGetRestaurant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	restaurant, err := h.repo.GetRestaurantByID(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, restaurant)
}

func (h *MenuHandler) handleListMenu(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	// 404 for unknown restaurants rather than an empty menu.
	if _, err := h.repo.GetRestaurantByID(r.Context(), id); err != nil {
		respondWithDomainError(w, err)
		return
	}

	items, err := h.repo.ListMenu(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}
