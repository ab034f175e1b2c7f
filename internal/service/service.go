// Package service provides the implementation of catalog business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	caterrors "github.com/shopfox/catalog/internal/errors"
	"github.com/shopfox/catalog/internal/imagestore"
	"github.com/shopfox/catalog/internal/store"
)

// CatalogService defines the methods for managing products and their images.
// It abstracts the underlying business logic and data access.
type CatalogService interface {
	// FindAll returns all products.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error)

	// Search returns all products whose name starts with the given prefix,
	// case-insensitively. An empty prefix matches every product.
	Search(ctx context.Context, prefix string) ([]ProductDto, error)

	// Create stores the uploaded images and persists a new product
	// referencing them. Image storage happens strictly before the database
	// write; if the write fails, the staged files are deleted again.
	// Returns ErrUnsupportedImageType or ErrDuplicateSKU on the
	// corresponding violations.
	Create(ctx context.Context, fields ProductFields, uploads []imagestore.Upload) (*ProductDto, error)

	// Update full-replaces sku, name, description and quantity of an existing
	// product. When uploads are present the new images are stored first, the
	// record's image list is replaced, and the superseded files are deleted
	// only after the record write succeeded. An unknown ID is a silent no-op.
	Update(ctx context.Context, id uuid.UUID, fields ProductFields, uploads []imagestore.Upload) error

	// Delete removes the product and every image file it references.
	// Deleting an unknown ID is a no-op.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductFields carries the mutable product fields of a create or update
// request.
type ProductFields struct {
	SKU         string `validate:"required"`
	Name        string `validate:"required"`
	Description string
	Quantity    int64 `validate:"min=0"`
}

// ProductDto is the external JSON view of a product. The field names are the
// catalog's legacy wire format and must not change.
type ProductDto struct {
	ID          string   `json:"_id"`
	SKU         string   `json:"SKU"`
	Quantity    int64    `json:"quantity"`
	Name        string   `json:"productName"`
	Images      []string `json:"image"`
	Description string   `json:"productDesc"`
}

// Service implements CatalogService.
type Service struct {
	repository store.ProductStore
	images     imagestore.Store
	logger     *slog.Logger
}

// NewService creates a new CatalogService with the provided product store and image store.
func NewService(repo store.ProductStore, images imagestore.Store, logger *slog.Logger) *Service {
	return &Service{
		repository: repo,
		images:     images,
		logger:     logger.With("component", "service"),
	}
}

// FindAll retrieves all products and returns them as ProductDtos.
func (s *Service) FindAll(ctx context.Context) ([]ProductDto, error) {
	products, err := s.repository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return toDtos(products), nil
}

// FindByID retrieves a product by its ID and returns it as a ProductDto.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, err)
	}
	return toDto(product), nil
}

// Search retrieves all products whose name starts with the given prefix.
func (s *Service) Search(ctx context.Context, prefix string) ([]ProductDto, error) {
	products, err := s.repository.SearchByNamePrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return toDtos(products), nil
}

// Create stages the uploaded images and persists the new product record.
// On a persistence failure the staged files are removed again, so a failed
// create leaves no files behind.
func (s *Service) Create(ctx context.Context, fields ProductFields, uploads []imagestore.Upload) (*ProductDto, error) {
	refs, err := s.stage(ctx, uploads)
	if err != nil {
		return nil, err
	}

	created, err := s.repository.Create(ctx, store.Product{
		SKU:         fields.SKU,
		Name:        fields.Name,
		Description: strings.TrimSpace(fields.Description),
		Quantity:    fields.Quantity,
		Images:      refs,
	})
	if err != nil {
		s.discard(ctx, refs)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return toDto(created), nil
}

// Update replaces the product's fields, and its image list when new uploads
// are supplied. New images are stored before the old ones are touched; the
// superseded files are deleted only after the record write succeeded. If the
// write fails, or no record matches the ID, the freshly staged files are
// removed again.
func (s *Service) Update(ctx context.Context, id uuid.UUID, fields ProductFields, uploads []imagestore.Upload) error {
	refs, err := s.stage(ctx, uploads)
	if err != nil {
		return err
	}

	var oldRefs []string
	if len(refs) > 0 {
		existing, err := s.repository.FindByID(ctx, id)
		if err != nil && !errors.Is(err, caterrors.ErrProductNotFound) {
			s.discard(ctx, refs)
			return fmt.Errorf("failed to fetch product %s before update: %w", id, err)
		}
		if existing != nil {
			oldRefs = existing.Images
		}
	}

	updated, err := s.repository.Update(ctx, id, store.Product{
		SKU:         fields.SKU,
		Name:        fields.Name,
		Description: strings.TrimSpace(fields.Description),
		Quantity:    fields.Quantity,
		Images:      refs,
	}, len(refs) > 0)
	if err != nil {
		s.discard(ctx, refs)
		return fmt.Errorf("failed to update product %s: %w", id, err)
	}
	if !updated {
		// Unknown ID is a silent no-op on the wire; nothing references the
		// staged files, so they go away again.
		s.discard(ctx, refs)
		return nil
	}
	if len(refs) > 0 {
		s.discard(ctx, oldRefs)
	}
	return nil
}

// Delete removes the product record and then its image files. The references
// are fetched before the row is removed so the file list cannot be lost.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var refs []string
	existing, err := s.repository.FindByID(ctx, id)
	if err != nil && !errors.Is(err, caterrors.ErrProductNotFound) {
		return fmt.Errorf("failed to fetch product %s before delete: %w", id, err)
	}
	if existing != nil {
		refs = existing.Images
	}

	if err := s.repository.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}

	s.discard(ctx, refs)
	return nil
}

// stage validates every upload's declared type and only then writes the
// files, so an unsupported type rejects the whole batch before any bytes hit
// the store. If a write fails part-way, the files stored so far are removed
// again.
func (s *Service) stage(ctx context.Context, uploads []imagestore.Upload) ([]string, error) {
	for _, up := range uploads {
		if !imagestore.Allowed(up.ContentType) {
			return nil, caterrors.ErrUnsupportedImageType
		}
	}

	refs := make([]string, 0, len(uploads))
	for _, up := range uploads {
		ref, err := s.images.Save(ctx, up)
		if err != nil {
			s.discard(ctx, refs)
			return nil, fmt.Errorf("failed to store image %s: %w", up.Name, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// discard deletes image files best-effort. Cleanup failures are logged and
// swallowed; they must never fail the mutation that triggered them.
func (s *Service) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := s.images.Remove(ctx, ref); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete image file", "ref", ref, "error", err)
		}
	}
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	images := product.Images
	if images == nil {
		images = []string{}
	}
	return &ProductDto{
		ID:          product.ID.String(),
		SKU:         product.SKU,
		Quantity:    product.Quantity,
		Name:        product.Name,
		Images:      images,
		Description: product.Description,
	}
}

func toDtos(products []store.Product) []ProductDto {
	dtos := make([]ProductDto, len(products))
	for i, item := range products {
		dtos[i] = *toDto(&item)
	}
	return dtos
}
