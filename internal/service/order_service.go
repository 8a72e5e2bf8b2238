package service

import (
	"context"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
)

type OrderService struct {
	repos repository.Repositories
}

func NewOrderService(repos repository.Repositories) *OrderService {
	return &OrderService{repos: repos}
}

// GetForUser returns the order with its items. Another user's order is
// reported as not found.
func (s *OrderService) GetForUser(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.repos.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := s.repos.Orders().GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(orders), nil
}
