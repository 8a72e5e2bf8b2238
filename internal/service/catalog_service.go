package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/validator"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	ProductsPerPage    = 12
	RelatedProducts    = 4
	QuickSearchLimit   = 10
	LowStockThreshold  = 10
	maxPrice           = 99999999.99
	maxStockQuantity   = 1000000
	cacheInvalidateTTL = time.Second
)

type ListQuery struct {
	Page     int
	Category string
	Search   string
}

type ProductPage struct {
	Products   []*domain.Product `json:"products"`
	Categories []string          `json:"categories"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
}

type ProductDetail struct {
	Product *domain.Product   `json:"product"`
	Related []*domain.Product `json:"related"`
}

type Dashboard struct {
	Products   []*domain.Product `json:"products"`
	LowStock   []*domain.Product `json:"low_stock"`
	OutOfStock []*domain.Product `json:"out_of_stock"`
}

type ProductInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         string `json:"price"`
	StockQuantity string `json:"stock_quantity"`
	Category      string `json:"category"`
	ImageURL      string `json:"image_url"`
}

// CatalogService serves product browsing and the admin product screens.
// Single-product reads go through the cache; admin writes invalidate it.
type CatalogService struct {
	repos repository.Repositories
	cache cache.ProductCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCatalogService(repos repository.Repositories, productCache cache.ProductCache) *CatalogService {
	if productCache == nil {
		productCache = cache.NopCache{}
	}
	return &CatalogService{repos: repos, cache: productCache}
}

// List pages through products. A search term wins over a category.
func (s *CatalogService) List(ctx context.Context, q ListQuery) (*ProductPage, error) {
	page := max(q.Page, 1)
	offset := (page - 1) * ProductsPerPage

	var (
		products []*domain.Product
		err      error
	)
	switch {
	case strings.TrimSpace(q.Search) != "":
		products, err = s.repos.Products().Search(ctx, strings.TrimSpace(q.Search), ProductsPerPage, offset)
	case q.Category != "":
		products, err = s.repos.Products().GetByCategory(ctx, q.Category, ProductsPerPage, offset)
	default:
		products, err = s.repos.Products().GetAll(ctx, ProductsPerPage, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	categories, err := s.repos.Products().GetAllCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return &ProductPage{
		Products:   nonNil(products),
		Categories: categories,
		Page:       page,
		PerPage:    ProductsPerPage,
	}, nil
}

func (s *CatalogService) Detail(ctx context.Context, id int64) (*ProductDetail, error) {
	p, err := s.product(ctx, id)
	if err != nil {
		return nil, err
	}

	// one extra in case the product itself comes back
	candidates, err := s.repos.Products().GetByCategory(ctx, p.Category, RelatedProducts+1, 0)
	if err != nil {
		return nil, fmt.Errorf("related products: %w", err)
	}
	related := make([]*domain.Product, 0, RelatedProducts)
	for _, c := range candidates {
		if c.ID == p.ID {
			continue
		}
		if len(related) == RelatedProducts {
			break
		}
		related = append(related, c)
	}

	return &ProductDetail{Product: p, Related: related}, nil
}

// Search backs the search-as-you-type box. A blank term returns nothing.
func (s *CatalogService) Search(ctx context.Context, term string) ([]*domain.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*domain.Product{}, nil
	}
	products, err := s.repos.Products().Search(ctx, term, QuickSearchLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return nonNil(products), nil
}

func (s *CatalogService) Dashboard(ctx context.Context) (*Dashboard, error) {
	products, err := s.repos.Products().GetAll(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("dashboard products: %w", err)
	}
	low, err := s.repos.Products().GetLowStock(ctx, LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("dashboard low stock: %w", err)
	}
	out, err := s.repos.Products().GetOutOfStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard out of stock: %w", err)
	}
	return &Dashboard{Products: nonNil(products), LowStock: nonNil(low), OutOfStock: nonNil(out)}, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	p, err := productFromInput(in)
	if err != nil {
		return nil, err
	}
	id, err := s.repos.Products().Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	p.ID = id
	return p, nil
}

func (s *CatalogService) Update(ctx context.Context, id int64, in ProductInput) (*domain.Product, error) {
	p, err := productFromInput(in)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.repos.Products().Update(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.repos.Products().Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CatalogService) UpdateStock(ctx context.Context, id int64, stock string) error {
	v := validator.New().
		Required("stock_quantity", stock).
		Numeric("stock_quantity", stock).
		Between("stock_quantity", stock, 0, maxStockQuantity)
	if v.Fails() {
		return validationError(v)
	}
	if err := s.repos.Products().UpdateStock(ctx, id, int(wholeNumber(stock))); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CatalogService) product(ctx context.Context, id int64) (*domain.Product, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "cache get error", slog.Int64("product_id", id), slog.Any("error", err))
		}

		p, err = s.repos.Products().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if errSet := s.cache.Set(ctx, p); errSet != nil {
			slog.WarnContext(ctx, "cache set error", slog.Int64("product_id", id), slog.Any("error", errSet))
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *CatalogService) invalidate(ctx context.Context, id int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheInvalidateTTL)
	defer cancel()
	if err := s.cache.Delete(ctx, id); err != nil {
		slog.WarnContext(ctx, "cache invalidate error", slog.Int64("product_id", id), slog.Any("error", err))
	}
}

func productFromInput(in ProductInput) (*domain.Product, error) {
	v := validator.New().
		Required("name", in.Name).
		Min("name", strings.TrimSpace(in.Name), 3).
		Required("price", in.Price).
		Numeric("price", in.Price).
		Between("price", in.Price, 0, maxPrice).
		Required("stock_quantity", in.StockQuantity).
		Numeric("stock_quantity", in.StockQuantity).
		Between("stock_quantity", in.StockQuantity, 0, maxStockQuantity)
	if v.Fails() {
		return nil, validationError(v)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}

	return &domain.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		Price:         price.Round(2),
		StockQuantity: int(wholeNumber(in.StockQuantity)),
		Category:      strings.TrimSpace(in.Category),
		ImageURL:      strings.TrimSpace(in.ImageURL),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
