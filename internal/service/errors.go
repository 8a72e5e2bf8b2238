package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/validator"
)

var (
	ErrUnauthenticated      = auth.ErrUnauthenticated
	ErrAlreadyAuthenticated = auth.ErrAlreadyAuthenticated
	ErrForbidden            = auth.ErrForbidden

	ErrProductNotFound    = repository.ErrProductNotFound
	ErrOrderNotFound      = repository.ErrOrderNotFound
	ErrUserNotFound       = repository.ErrUserNotFound
	ErrInsufficientStock  = repository.ErrInsufficientStock
	ErrInvalidCredentials = repository.ErrInvalidCredentials

	ErrPaymentDeclined = payment.ErrDeclined

	ErrEmptyCart           = errors.New("cart is empty")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrEmailTaken          = errors.New("email already registered")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrIncorrectPassword   = errors.New("password incorrect")

	// ErrItemsOutOfStock is the checkout flavour of ErrInsufficientStock.
	ErrItemsOutOfStock = fmt.Errorf("some items are out of stock: %w", ErrInsufficientStock)
)

// ValidationError carries every failed rule, in order.
type ValidationError struct {
	Fields []validator.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), ", ")
}

func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Message
	}
	return out
}

func validationError(v *validator.Validator) error {
	return &ValidationError{Fields: v.FieldErrors()}
}
