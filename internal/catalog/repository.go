package catalog

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
	VariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Variant, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	query := `
		SELECT id, name, price, cost_price, is_active
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.CostPrice, &p.IsActive); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, nil
}

func (r *postgresRepository) VariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Variant, error) {
	query := `
		SELECT id, product_id, price_override, cost_price_override, is_active
		FROM product_variants
		WHERE id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query product variants: %w", err)
	}
	defer rows.Close()

	variants := make(map[uuid.UUID]Variant, len(ids))
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.PriceOverride, &v.CostPriceOverride, &v.IsActive); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product variant: %w", err)
		}
		variants[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating product variants: %w", err)
	}

	return variants, nil
}
