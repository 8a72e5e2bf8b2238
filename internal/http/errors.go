package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	s "github.com/fjod/storefront/internal/service"
)

// errorMapping is what a failed operation turns into on the wire. An empty
// redirect means the handler's own page.
type errorMapping struct {
	status   int
	code     string
	message  string
	redirect string
}

// mapError translates service errors. Order matters: ErrItemsOutOfStock wraps
// ErrInsufficientStock and must be matched first.
func mapError(err error) errorMapping {
	var verr *s.ValidationError
	switch {
	case errors.As(err, &verr):
		msgs := verr.Messages()
		msg := "Validation failed"
		if len(msgs) > 0 {
			msg = msgs[0]
		}
		return errorMapping{http.StatusUnprocessableEntity, "validation_failed", msg, ""}
	case errors.Is(err, s.ErrPaymentDeclined):
		return errorMapping{http.StatusUnprocessableEntity, "payment_declined", "Please use test card: 4242 4242 4242 4242", "/checkout"}
	case errors.Is(err, s.ErrItemsOutOfStock):
		return errorMapping{http.StatusConflict, "out_of_stock", "Some items are out of stock", "/cart"}
	case errors.Is(err, s.ErrInsufficientStock):
		return errorMapping{http.StatusConflict, "insufficient_stock", "Insufficient stock", ""}
	case errors.Is(err, s.ErrEmptyCart):
		return errorMapping{http.StatusConflict, "empty_cart", "Your cart is empty", "/cart"}
	case errors.Is(err, s.ErrProductNotFound):
		return errorMapping{http.StatusNotFound, "product_not_found", "Product not found", "/products"}
	case errors.Is(err, s.ErrOrderNotFound):
		return errorMapping{http.StatusNotFound, "order_not_found", "Order not found", "/"}
	case errors.Is(err, s.ErrUserNotFound):
		return errorMapping{http.StatusNotFound, "user_not_found", "User not found", "/login"}
	case errors.Is(err, s.ErrEmailTaken):
		return errorMapping{http.StatusConflict, "email_taken", "Email already registered", ""}
	case errors.Is(err, s.ErrUsernameTaken):
		return errorMapping{http.StatusConflict, "username_taken", "Username already taken", ""}
	case errors.Is(err, s.ErrUnauthenticated):
		return errorMapping{http.StatusUnauthorized, "unauthenticated", "Please login to continue", "/login"}
	case errors.Is(err, s.ErrAlreadyAuthenticated):
		return errorMapping{http.StatusForbidden, "already_authenticated", "You are already logged in", "/"}
	case errors.Is(err, s.ErrForbidden):
		return errorMapping{http.StatusForbidden, "forbidden", "Access denied. Admin privileges required", "/"}
	case errors.Is(err, s.ErrInvalidCredentials):
		return errorMapping{http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", "/login"}
	case errors.Is(err, s.ErrIncorrectPassword):
		return errorMapping{http.StatusUnprocessableEntity, "incorrect_password", "Password incorrect", "/profile"}
	case errors.Is(err, s.ErrOrderCreationFailed):
		return errorMapping{http.StatusInternalServerError, "order_creation_failed", "Order creation failed", "/checkout"}
	case errors.Is(err, errInvalidBody):
		return errorMapping{http.StatusBadRequest, "invalid_request", "invalid request body", ""}
	case errors.Is(err, context.DeadlineExceeded):
		return errorMapping{http.StatusGatewayTimeout, "timeout", "request timed out", ""}
	default:
		return errorMapping{http.StatusInternalServerError, "internal_error", "internal server error", ""}
	}
}

// handleServiceError writes err as an ErrorResponse and flashes its message
// for the page named by the redirect hint.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, redirect string) {
	writeError(w, r, err, mapError(err), redirect)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, m errorMapping, redirect string) {
	if m.redirect == "" {
		m.redirect = redirect
	}
	if m.status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", getRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}

	resp := ErrorResponse{
		Error:    m.message,
		Code:     m.code,
		Redirect: m.redirect,
	}

	state := stateFrom(r)
	var verr *s.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
		resp.Details = strings.Join(verr.Messages(), "; ")
		state.Flash("errors", strings.Join(verr.Messages(), "\n"))
	} else {
		state.Flash("error", m.message)
	}

	respondJSON(w, m.status, resp)
}
