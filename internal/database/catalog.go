package database

import (
	"context"
	"fmt"
	"time"
)

// CatalogProduct is a tracked product.
type CatalogProduct struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogPlatform is an e-commerce platform prices are scraped from.
type CatalogPlatform struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	BaseURL       string    `json:"base_url,omitempty"`
	Currency      string    `json:"currency"`
	IsActive      bool      `json:"is_active"`
	ScrapingDelay int       `json:"scraping_delay_seconds"`
	CreatedAt     time.Time `json:"created_at"`
}

// CatalogRepository manages the product and platform catalog the
// target list is derived from.
type CatalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListProducts returns all products, active first.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]CatalogProduct, error) {
	query := `
		SELECT id, name, COALESCE(category, ''), is_active, created_at
		FROM products
		ORDER BY is_active DESC, id`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []CatalogProduct
	for rows.Next() {
		var p CatalogProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// ListPlatforms returns all platforms.
func (r *CatalogRepository) ListPlatforms(ctx context.Context) ([]CatalogPlatform, error) {
	query := `
		SELECT id, name, COALESCE(base_url, ''), currency, is_active, scraping_delay_seconds, created_at
		FROM platforms
		ORDER BY name`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	defer rows.Close()

	var platforms []CatalogPlatform
	for rows.Next() {
		var p CatalogPlatform
		if err := rows.Scan(&p.ID, &p.Name, &p.BaseURL, &p.Currency, &p.IsActive, &p.ScrapingDelay, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating platforms: %w", err)
	}

	return platforms, nil
}

// RegisterTarget links a product to a platform URL, updating the URL
// if the pairing already exists.
func (r *CatalogRepository) RegisterTarget(ctx context.Context, productID, platformID int64, productURL string) error {
	query := `
		INSERT INTO product_platforms (product_id, platform_id, product_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, platform_id) DO UPDATE SET
			product_url = EXCLUDED.product_url,
			is_active = TRUE`

	if _, err := r.db.pool.Exec(ctx, query, productID, platformID, productURL); err != nil {
		return fmt.Errorf("failed to register target: %w", err)
	}

	return nil
}

// DeactivateTarget stops a pairing from being scraped without losing
// its price history.
func (r *CatalogRepository) DeactivateTarget(ctx context.Context, productID, platformID int64) error {
	query := `
		UPDATE product_platforms
		SET is_active = FALSE
		WHERE product_id = $1 AND platform_id = $2`

	result, err := r.db.pool.Exec(ctx, query, productID, platformID)
	if err != nil {
		return fmt.Errorf("failed to deactivate target: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("target not found: product %d on platform %d", productID, platformID)
	}

	return nil
}
