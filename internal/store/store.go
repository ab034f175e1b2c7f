// Package store provides an interface for product storage operations.
package store

import (
	"context"

	"github.com/google/uuid"
)

// Product is a catalog record as persisted.
type Product struct {
	ID          uuid.UUID
	SKU         string
	Name        string
	Description string
	Quantity    int64
	Images      []string
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindAll returns all available products.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]Product, error)

	// SearchByNamePrefix returns all products whose name starts with the given
	// prefix, case-insensitively. An empty prefix matches every product.
	SearchByNamePrefix(ctx context.Context, prefix string) ([]Product, error)

	// Create adds a new product to the system.
	// Returns ErrDuplicateSKU if the SKU is already taken.
	Create(ctx context.Context, p Product) (*Product, error)

	// Update replaces sku, name, description and quantity of the product with
	// the given ID, and its image list when replaceImages is set.
	// An unknown ID is a silent no-op; updated reports whether a row changed.
	// Returns ErrDuplicateSKU if the new SKU is already taken.
	Update(ctx context.Context, id uuid.UUID, p Product, replaceImages bool) (updated bool, err error)

	// DeleteByID removes a product by its ID. A missing ID is not an error.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}
