package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/feastline/feastline/internal/coupon"
	"github.com/feastline/feastline/internal/menu"
	"github.com/feastline/feastline/internal/order"
	"github.com/feastline/feastline/internal/pricing"
	"github.com/feastline/feastline/internal/user"
)

// ValidationErrorResponse reports field-level validation failures.
type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondWithValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:   "Validation failed",
		Details: formatValidationErrors(errs),
	})
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = "failed on the '" + fieldErr.Tag() + "' rule"
	}
	return details
}

// mapErrorToStatusCode translates domain errors into HTTP status codes.
// Business-rule rejections are 4xx; anything unrecognized is an
// infrastructure failure and stays 500.
func mapErrorToStatusCode(err error) int {
	var (
		invalidItem *order.InvalidMenuItemError
		illegalMove *order.IllegalTransitionError
		minNotMet   *coupon.MinimumOrderNotMetError
	)
	switch {
	case errors.As(err, &invalidItem),
		errors.As(err, &illegalMove),
		errors.As(err, &minNotMet),
		errors.Is(err, pricing.ErrNoItems),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, coupon.ErrCouponNotFound),
		errors.Is(err, order.ErrOrderNotDelivered),
		errors.Is(err, order.ErrInvalidRating),
		errors.Is(err, order.ErrNoAvailableItems),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, menu.ErrRestaurantNotFound):
		return http.StatusNotFound
	case errors.Is(err, user.ErrEmailExists),
		errors.Is(err, order.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError hides internal details behind a generic message
// for 5xx while passing business errors through verbatim.
func respondWithDomainError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Unhandled error in request")
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}
