package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	caterrors "github.com/shopfox/catalog/internal/errors"
)

// skuConstraint is the unique index on products.sku, created in migrations.
const skuConstraint = "products_sku_key"

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

const productColumns = "id, sku, name, description, quantity, images"

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := p.db.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, caterrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// FindAll retrieves all available products.
// It returns a slice of products, which may be empty if no products exist.
func (p *PgStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// SearchByNamePrefix retrieves all products whose name starts with the given
// prefix, case-insensitively. An empty prefix matches every product.
func (p *PgStore) SearchByNamePrefix(ctx context.Context, prefix string) ([]Product, error) {
	rows, err := p.db.Query(ctx,
		"SELECT "+productColumns+" FROM products WHERE name ILIKE $1 ORDER BY created_at",
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// Create adds a new product to the system.
// Returns ErrDuplicateSKU if the SKU unique constraint is violated.
func (p *PgStore) Create(ctx context.Context, product Product) (*Product, error) {
	row := p.db.QueryRow(ctx,
		`INSERT INTO products (sku, name, description, quantity, images)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+productColumns,
		product.SKU, product.Name, product.Description, product.Quantity, notNull(product.Images),
	)
	created, err := scanProduct(row)
	if err != nil {
		if isDuplicateSKU(err) {
			return nil, caterrors.ErrDuplicateSKU
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

// Update replaces the mutable fields of the product with the given ID.
// The image list is only replaced when replaceImages is set. An unknown ID is
// a silent no-op; the returned flag reports whether a row was changed.
// Returns ErrDuplicateSKU if the new SKU is already taken by another product.
func (p *PgStore) Update(ctx context.Context, id uuid.UUID, product Product, replaceImages bool) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	if replaceImages {
		tag, err = p.db.Exec(ctx,
			`UPDATE products SET sku = $2, name = $3, description = $4, quantity = $5, images = $6 WHERE id = $1`,
			id, product.SKU, product.Name, product.Description, product.Quantity, notNull(product.Images),
		)
	} else {
		tag, err = p.db.Exec(ctx,
			`UPDATE products SET sku = $2, name = $3, description = $4, quantity = $5 WHERE id = $1`,
			id, product.SKU, product.Name, product.Description, product.Quantity,
		)
	}
	if err != nil {
		if isDuplicateSKU(err) {
			return false, caterrors.ErrDuplicateSKU
		}
		return false, fmt.Errorf("failed to update product: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByID removes a product by its unique identifier. Deleting a missing
// ID is a no-op, which keeps the operation idempotent.
func (p *PgStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if _, err := p.db.Exec(ctx, "DELETE FROM products WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	return nil
}

// isDuplicateSKU reports whether err is a unique violation on the SKU
// constraint. Matching is on the structured SQLSTATE and constraint name, not
// on the error message.
func isDuplicateSKU(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == skuConstraint
}

// notNull keeps a nil image list from encoding as SQL NULL; the column is
// NOT NULL.
func notNull(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

// escapeLike neutralizes LIKE metacharacters so the prefix is matched
// literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Quantity, &p.Images); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}
	return products, nil
}
