package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pricescout/pricescout/internal/models"
)

// TargetRepository reads the scrape target list: every active
// (product, platform) pairing with a product URL.
type TargetRepository struct {
	db *DB
}

func NewTargetRepository(db *DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// ListScrapeTargets returns the targets matching the filter, ordered
// by product then platform so runs are deterministic. Platform name
// matching is case-insensitive.
func (r *TargetRepository) ListScrapeTargets(ctx context.Context, filter models.TargetFilter) ([]models.ScrapeTarget, error) {
	query := `
		SELECT
			p.id, p.name,
			pl.id, pl.name, pl.currency, pl.scraping_delay_seconds,
			pp.product_url
		FROM product_platforms pp
		JOIN products p ON p.id = pp.product_id
		JOIN platforms pl ON pl.id = pp.platform_id
		WHERE pp.is_active AND p.is_active AND pl.is_active`

	args := []interface{}{}
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		query += fmt.Sprintf(" AND p.id = $%d", len(args))
	}
	if filter.Platform != "" {
		args = append(args, strings.ToLower(filter.Platform))
		query += fmt.Sprintf(" AND LOWER(pl.name) = $%d", len(args))
	}
	query += " ORDER BY p.id, pl.id"

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape targets: %w", err)
	}
	defer rows.Close()

	var targets []models.ScrapeTarget
	for rows.Next() {
		var t models.ScrapeTarget
		var delaySeconds int
		if err := rows.Scan(
			&t.ProductID, &t.ProductName,
			&t.PlatformID, &t.PlatformName, &t.Currency, &delaySeconds,
			&t.ProductURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		t.ScrapeDelay = time.Duration(delaySeconds) * time.Second
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating targets: %w", err)
	}

	return targets, nil
}
