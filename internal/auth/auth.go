// Package auth holds the access guards and password hashing.
package auth

import (
	"errors"

	"github.com/fjod/storefront/internal/session"
)

var (
	ErrUnauthenticated      = errors.New("please login to continue")
	ErrAlreadyAuthenticated = errors.New("already logged in")
	ErrForbidden            = errors.New("access denied")
)

func RequireAuthenticated(s *session.State) error {
	if s == nil || !s.IsLoggedIn() {
		return ErrUnauthenticated
	}
	return nil
}

func RequireGuest(s *session.State) error {
	if s != nil && s.IsLoggedIn() {
		return ErrAlreadyAuthenticated
	}
	return nil
}

// RequireRole compares roles case-insensitively.
func RequireRole(s *session.State, role string) error {
	if err := RequireAuthenticated(s); err != nil {
		return err
	}
	ident, ok := s.Identity()
	if !ok {
		return ErrUnauthenticated
	}
	if !ident.Role.Is(role) {
		return ErrForbidden
	}
	return nil
}
