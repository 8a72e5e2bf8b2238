package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/domain"
)

const productColumns = `id, name, description, price, stock_quantity, category, image_url, created_at, updated_at`

type ProductRepository struct {
	db dbtx
}

func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) HasStock(ctx context.Context, id int64, quantity int) (bool, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return p.HasStock(quantity), nil
}

// DecreaseStock only succeeds while enough stock remains, so two concurrent
// buyers cannot both take the last unit.
func (r *ProductRepository) DecreaseStock(ctx context.Context, id int64, quantity int) error {
	query := `UPDATE products
	          SET stock_quantity = stock_quantity - $1, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $2 AND stock_quantity >= $3`

	res, err := r.db.ExecContext(ctx, query, quantity, id, quantity)
	if err != nil {
		return fmt.Errorf("decrease stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrease stock rows affected: %w", err)
	}
	if n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *ProductRepository) GetAll(ctx context.Context, limit, offset int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}
	return r.queryProducts(ctx, query, args...)
}

func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *ProductRepository) GetByCategory(ctx context.Context, category string, limit, offset int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category = $1 ORDER BY name, id`
	args := []any{category}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	return r.queryProducts(ctx, query, args...)
}

// Search matches term against name and description, ignoring case.
func (r *ProductRepository) Search(ctx context.Context, term string, limit, offset int) ([]*domain.Product, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	query := `SELECT ` + productColumns + ` FROM products
	          WHERE LOWER(name) LIKE $1 OR LOWER(description) LIKE $2
	          ORDER BY name, id`
	args := []any{pattern, pattern}
	if limit > 0 {
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, limit, offset)
	}
	return r.queryProducts(ctx, query, args...)
}

func (r *ProductRepository) GetAllCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

// GetLowStock returns products that are in stock but at or below threshold.
func (r *ProductRepository) GetLowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
	          WHERE stock_quantity > 0 AND stock_quantity <= $1
	          ORDER BY stock_quantity, id`
	return r.queryProducts(ctx, query, threshold)
}

func (r *ProductRepository) GetOutOfStock(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE stock_quantity <= 0 ORDER BY name, id`
	return r.queryProducts(ctx, query)
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (int64, error) {
	query := `INSERT INTO products (name, description, price, stock_quantity, category, image_url)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.StockQuantity,
		p.Category,
		p.ImageURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	return id, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `UPDATE products
	          SET name = $1, description = $2, price = $3, stock_quantity = $4,
	              category = $5, image_url = $6, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $7`

	res, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.StockQuantity,
		p.Category,
		p.ImageURL,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectRow(res, ErrProductNotFound)
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectRow(res, ErrProductNotFound)
}

func (r *ProductRepository) UpdateStock(ctx context.Context, id int64, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		quantity, id)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return expectRow(res, ErrProductNotFound)
}

func (r *ProductRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.StockQuantity,
		&p.Category,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
