package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

type ProductCache interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Set(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache never stores anything; every Get is a miss.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*domain.Product, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, *domain.Product) error         { return nil }
func (NopCache) Delete(context.Context, int64) error                { return nil }
