package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/feastline/feastline/internal/auth"
	"github.com/feastline/feastline/internal/user"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type AuthHandler struct {
	service  user.Service
	tokens   *auth.Manager
	validate *validator.Validate
}

func NewAuthHandler(service user.Service, tokens *auth.Manager) *AuthHandler {
	return &AuthHandler{
		service:  service,
		tokens:   tokens,
		validate: validator.New(),
	}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/register", h.handleRegister)
	router.Post("/auth/login", h.handleLogin)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload RegisterRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithValidationErrors(w, validationErrors)
		} else {
			respondWithError(w, http.StatusInternalServerError, "internal validation error")
		}
		return
	}

	u, err := h.service.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, user.ErrEmailExists) {
			respondWithError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Error().Err(err).Msg("Failed to register user")
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toUserResponse(u))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload LoginRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithValidationErrors(w, validationErrors)
		} else {
			respondWithError(w, http.StatusInternalServerError, "internal validation error")
		}
		return
	}

	u, err := h.service.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	token, err := h.tokens.IssueToken(u.ID, string(u.Role))
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserResponse(u)})
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          string(u.Role),
		LoyaltyPoints: u.LoyaltyPoints,
		CreatedAt:     u.CreatedAt,
	}
}
