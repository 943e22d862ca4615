package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valyx/checkout/internal/domain/inventory"
	"github.com/valyx/checkout/internal/domain/product"
)

const productColumns = `id, title, description, price, quantity, version, status, created_at, updated_at`

const (
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	adjustStockSQL = `UPDATE products
		SET quantity = quantity + $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3 AND quantity + $2 >= 0`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ inventory.Accessor = (*ProductRepository)(nil)
)

// ProductRepository implements the product read repository and the inventory
// accessor backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs, ordered by ID.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetProduct implements inventory.Accessor.
func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return r.GetByID(ctx, id)
}

// AdjustStock applies a stock delta conditional on the row version and the
// resulting quantity staying non-negative. A zero-row update on an existing
// product means the row changed underneath the caller.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx, adjustStockSQL, id, delta, expectedVersion)
	if err != nil {
		return errors.Wrapf(asConflict(err), "adjusting stock for product %q", id)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); errors.Is(err, product.ErrNotFound) {
			return product.ErrNotFound
		}
		return inventory.ErrConflict
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Price, &p.Quantity,
		&p.Version, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
