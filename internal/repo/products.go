package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-partyshop/internal/catalog"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

// Products reads the tenant catalog.
type Products struct {
	DB DBTX
}

// ListProducts implements catalog.Source.
func (r Products) ListProducts(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT id, title, category, price, image_url, in_stock FROM products
WHERE tenant_id = $1
  AND ($2::text IS NULL OR title ILIKE '%' || $2 || '%')
  AND ($3::text IS NULL OR category = $3)
  AND ($4::boolean IS NULL OR in_stock = $4)
ORDER BY title`, tid, nullable(f.Query), nullable(f.Category), f.InStock)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		var (
			id    pgtype.UUID
			price int64
			p     catalog.Product
		)
		if err := row.Scan(&id, &p.Title, &p.Category, &price, &p.ImageURL, &p.InStock); err != nil {
			return catalog.Product{}, err
		}
		p.ID = uuidString(id)
		p.Price = pricing.Money(price)
		return p, nil
	})
}

// Create inserts a catalog row for the tenant in ctx.
func (r Products) Create(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return catalog.Product{}, err
	}
	var id pgtype.UUID
	if err := r.DB.QueryRow(ctx, `INSERT INTO products (tenant_id, title, category, price, image_url, in_stock)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		tid, p.Title, p.Category, int64(p.Price), p.ImageURL, p.InStock).Scan(&id); err != nil {
		return catalog.Product{}, err
	}
	p.ID = uuidString(id)
	return p, nil
}
