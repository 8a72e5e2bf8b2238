package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/session"
	s "github.com/fjod/storefront/internal/service"
)

type Accounts interface {
	Register(ctx context.Context, state *session.State, in s.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, state *session.State, in s.LoginInput) (*domain.User, error)
	Logout(ctx context.Context, state *session.State)
	Profile(ctx context.Context, state *session.State) (*s.Profile, error)
	UpdateProfile(ctx context.Context, state *session.State, in s.ProfileInput) (*domain.User, error)
	ChangePassword(ctx context.Context, state *session.State, in s.PasswordInput) error
	DeleteAccount(ctx context.Context, state *session.State, password string) error
}

type UserHandler struct {
	accounts Accounts
	timeout  time.Duration
}

func NewUserHandler(accounts Accounts, timeout time.Duration) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		timeout:  timeout,
	}
}

type DeleteAccountRequestDTO struct {
	Password string `json:"password"`
}

// POST /api/v1/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req s.RegisterInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	u, err := h.accounts.Register(ctx, stateFrom(r), req)
	if err != nil {
		handleServiceError(w, r, err, "/register")
		return
	}
	respondMessage(w, r, http.StatusCreated, "success", "/login", u)
}

// POST /api/v1/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req s.LoginInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	u, err := h.accounts.Login(ctx, stateFrom(r), req)
	if err != nil {
		handleServiceError(w, r, err, "/login")
		return
	}
	respondMessage(w, r, http.StatusOK, "success", "/", u)
}

// POST /api/v1/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout(r.Context(), stateFrom(r))
	respondMessage(w, r, http.StatusOK, "info", "/", nil)
}

// GET /api/v1/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	profile, err := h.accounts.Profile(ctx, stateFrom(r))
	if err != nil {
		handleServiceError(w, r, err, "/")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// PUT /api/v1/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req s.ProfileInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	u, err := h.accounts.UpdateProfile(ctx, stateFrom(r), req)
	if err != nil {
		m := mapError(err)
		switch {
		case errors.Is(err, s.ErrEmailTaken):
			m.message = "Email already in use"
		case errors.Is(err, s.ErrUsernameTaken):
			m.message = "Username already in use"
		}
		writeError(w, r, err, m, "/profile")
		return
	}
	respondMessage(w, r, http.StatusOK, "success", "/profile", u)
}

// PUT /api/v1/profile/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req s.PasswordInput
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	if err := h.accounts.ChangePassword(ctx, stateFrom(r), req); err != nil {
		m := mapError(err)
		if errors.Is(err, s.ErrIncorrectPassword) {
			m.message = "Current password incorrect"
		}
		writeError(w, r, err, m, "/profile")
		return
	}
	respondMessage(w, r, http.StatusOK, "success", "/profile", nil)
}

// DELETE /api/v1/profile
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req DeleteAccountRequestDTO
	if err := readForm(r, &req); err != nil {
		respondInvalidBody(w)
		return
	}

	if err := h.accounts.DeleteAccount(ctx, stateFrom(r), req.Password); err != nil {
		handleServiceError(w, r, err, "/profile")
		return
	}
	respondMessage(w, r, http.StatusOK, "success", "/", nil)
}

// GET /api/v1/flash
// Returns and forgets every pending flash message.
func (h *UserHandler) Flash(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, stateFrom(r).TakeFlashes())
}
