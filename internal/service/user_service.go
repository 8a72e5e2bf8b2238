package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/mailer"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/validator"
)

type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type PasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type Profile struct {
	User   *domain.User    `json:"user"`
	Orders []*domain.Order `json:"orders"`
}

const MinPasswordLength = 6

type UserService struct {
	repos    repository.Repositories
	notifier mailer.Notifier
}

func NewUserService(repos repository.Repositories, notifier mailer.Notifier) *UserService {
	return &UserService{repos: repos, notifier: notifier}
}

// Register creates a customer account. The visitor still has to log in.
func (s *UserService) Register(ctx context.Context, state *session.State, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	v := validator.New().
		Required("username", username).
		Min("username", username, 3).
		Required("email", email).
		Email("email", email).
		Required("password", in.Password).
		Min("password", in.Password, MinPasswordLength).
		Max("password", in.Password, auth.MaxPasswordLength).
		Matches("confirm_password", in.ConfirmPassword, in.Password)
	if v.Fails() {
		return nil, validationError(v)
	}

	if err := s.checkUnique(ctx, username, email, 0); err != nil {
		return nil, err
	}

	u := &domain.User{
		Username:  username,
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      domain.RoleCustomer,
	}
	id, err := s.repos.Users().Create(ctx, u, in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, passwordTooLong("password", "Password")
	}
	if errors.Is(err, repository.ErrDuplicate) {
		// lost a race with another registration
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.ID = id

	s.notifier.SendWelcomeEmail(ctx, u.Email, u.Username)
	state.Flash("success", "Registration successful! Please login.")

	slog.InfoContext(ctx, "user registered", slog.Int64("user_id", id))
	return u, nil
}

func (s *UserService) Login(ctx context.Context, state *session.State, in LoginInput) (*domain.User, error) {
	v := validator.New().
		Required("email", in.Email).
		Email("email", strings.TrimSpace(in.Email)).
		Required("password", in.Password)
	if v.Fails() {
		return nil, validationError(v)
	}

	u, err := s.repos.Users().VerifyCredentials(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	state.Rotate()
	state.SetUser(u)
	state.Flash("success", fmt.Sprintf("Welcome back, %s!", u.Username))
	return u, nil
}

func (s *UserService) Logout(_ context.Context, state *session.State) {
	state.Destroy()
	state.Flash("info", "You have been logged out")
}

func (s *UserService) Profile(ctx context.Context, state *session.State) (*Profile, error) {
	if err := auth.RequireAuthenticated(state); err != nil {
		return nil, err
	}
	u, err := s.repos.Users().FindByID(ctx, state.UserID())
	if err != nil {
		return nil, err
	}
	orders, err := s.repos.Orders().GetByUserID(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("profile orders: %w", err)
	}
	return &Profile{User: u, Orders: nonNil(orders)}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, state *session.State, in ProfileInput) (*domain.User, error) {
	if err := auth.RequireAuthenticated(state); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	v := validator.New().
		Required("username", username).
		Min("username", username, 3).
		Required("email", email).
		Email("email", email)
	if v.Fails() {
		return nil, validationError(v)
	}

	userID := state.UserID()
	if err := s.checkUnique(ctx, username, email, userID); err != nil {
		return nil, err
	}

	u, err := s.repos.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Username = username
	u.Email = email
	u.FirstName = strings.TrimSpace(in.FirstName)
	u.LastName = strings.TrimSpace(in.LastName)

	err = s.repos.Users().Update(ctx, u)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	state.SetUser(u)
	state.Flash("success", "Profile updated")
	return u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, state *session.State, in PasswordInput) error {
	if err := auth.RequireAuthenticated(state); err != nil {
		return err
	}

	v := validator.New().
		Required("current_password", in.CurrentPassword).
		Required("new_password", in.NewPassword).
		Min("new_password", in.NewPassword, MinPasswordLength).
		Max("new_password", in.NewPassword, auth.MaxPasswordLength).
		Matches("confirm_password", in.ConfirmPassword, in.NewPassword)
	if v.Fails() {
		return validationError(v)
	}

	u, err := s.repos.Users().FindByID(ctx, state.UserID())
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
		return ErrIncorrectPassword
	}

	err = s.repos.Users().UpdatePassword(ctx, u.ID, in.NewPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return passwordTooLong("new_password", "New password")
	}
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	state.Flash("success", "Password updated successfully")
	return nil
}

// DeleteAccount removes the user and their orders, then ends the session.
func (s *UserService) DeleteAccount(ctx context.Context, state *session.State, password string) error {
	if err := auth.RequireAuthenticated(state); err != nil {
		return err
	}

	u, err := s.repos.Users().FindByID(ctx, state.UserID())
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return ErrIncorrectPassword
	}

	if err := s.repos.Users().Delete(ctx, u.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	state.Destroy()
	state.Flash("success", "Account deleted")
	slog.InfoContext(ctx, "account deleted", slog.Int64("user_id", u.ID))
	return nil
}

// passwordTooLong covers multi-byte passwords that fit the character limit
// but not bcrypt's byte limit.
func passwordTooLong(field, label string) error {
	return &ValidationError{Fields: []validator.FieldError{{
		Field:   field,
		Message: fmt.Sprintf("%s must be at most %d characters", label, auth.MaxPasswordLength),
	}}}
}

func (s *UserService) checkUnique(ctx context.Context, username, email string, exceptID int64) error {
	taken, err := s.repos.Users().EmailExists(ctx, email, exceptID)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return ErrEmailTaken
	}

	taken, err = s.repos.Users().UsernameExists(ctx, username, exceptID)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return ErrUsernameTaken
	}
	return nil
}
