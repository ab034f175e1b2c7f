package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	caterrors "github.com/shopfox/catalog/internal/errors"
	"github.com/shopfox/catalog/internal/imagestore"
	"github.com/shopfox/catalog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProductStore is a mock implementation of the ProductStore interface
// that records the mutations it receives.
type mockProductStore struct {
	products []store.Product
	product  *store.Product
	findErr  error
	err      error

	created       *store.Product
	updated       *store.Product
	updatedImages bool
	updateHit     bool
	deletedID     uuid.UUID
}

func (m *mockProductStore) FindByID(_ context.Context, _ uuid.UUID) (*store.Product, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.product, nil
}

func (m *mockProductStore) FindAll(_ context.Context) ([]store.Product, error) {
	return m.products, m.err
}

func (m *mockProductStore) SearchByNamePrefix(_ context.Context, _ string) ([]store.Product, error) {
	return m.products, m.err
}

func (m *mockProductStore) Create(_ context.Context, p store.Product) (*store.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &p
	out := p
	out.ID = uuid.New()
	return &out, nil
}

func (m *mockProductStore) Update(_ context.Context, _ uuid.UUID, p store.Product, replaceImages bool) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.updated = &p
	m.updatedImages = replaceImages
	return m.updateHit, nil
}

func (m *mockProductStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.deletedID = id
	return nil
}

// mockImageStore records saved and removed references.
type mockImageStore struct {
	saved   []string
	removed []string
	saveErr error
}

func (m *mockImageStore) Save(_ context.Context, up imagestore.Upload) (string, error) {
	if !imagestore.Allowed(up.ContentType) {
		return "", caterrors.ErrUnsupportedImageType
	}
	if m.saveErr != nil {
		return "", m.saveErr
	}
	ref := "/uploads/" + up.Name
	m.saved = append(m.saved, ref)
	return ref, nil
}

func (m *mockImageStore) Remove(_ context.Context, ref string) error {
	m.removed = append(m.removed, ref)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngUpload(name string) imagestore.Upload {
	return imagestore.Upload{Name: name, ContentType: "image/png", Content: strings.NewReader("png-bytes")}
}

func Test_CatalogService_Create(t *testing.T) {
	fields := ProductFields{SKU: "A1", Name: "Widget", Description: "  a widget  ", Quantity: 5}

	testCases := []struct {
		name          string
		mockStore     *mockProductStore
		uploads       []imagestore.Upload
		expectError   error
		expectRemoved []string
		expectSaved   []string
	}{
		{
			name:        "Success - product created with images",
			mockStore:   &mockProductStore{},
			uploads:     []imagestore.Upload{pngUpload("a.png"), pngUpload("b.png")},
			expectSaved: []string{"/uploads/a.png", "/uploads/b.png"},
		},
		{
			name:      "Error - unsupported image type rejects before any write",
			mockStore: &mockProductStore{},
			uploads: []imagestore.Upload{
				pngUpload("a.png"),
				{Name: "doc.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")},
			},
			expectError: caterrors.ErrUnsupportedImageType,
		},
		{
			name:          "Error - duplicate SKU rolls back staged images",
			mockStore:     &mockProductStore{err: caterrors.ErrDuplicateSKU},
			uploads:       []imagestore.Upload{pngUpload("a.png")},
			expectError:   caterrors.ErrDuplicateSKU,
			expectSaved:   []string{"/uploads/a.png"},
			expectRemoved: []string{"/uploads/a.png"},
		},
		{
			name:          "Error - storage failure rolls back staged images",
			mockStore:     &mockProductStore{err: errors.New("db down")},
			uploads:       []imagestore.Upload{pngUpload("a.png")},
			expectError:   errors.New("db down"),
			expectSaved:   []string{"/uploads/a.png"},
			expectRemoved: []string{"/uploads/a.png"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			images := &mockImageStore{}
			svc := NewService(tc.mockStore, images, testLogger())
			// when
			created, err := svc.Create(context.Background(), fields, tc.uploads)
			// then
			if tc.expectError != nil {
				require.Error(t, err)
				if errors.Is(tc.expectError, caterrors.ErrDuplicateSKU) || errors.Is(tc.expectError, caterrors.ErrUnsupportedImageType) {
					assert.ErrorIs(t, err, tc.expectError)
				}
				assert.Nil(t, created)
				assert.Nil(t, tc.mockStore.created)
				assert.Equal(t, tc.expectSaved, images.saved)
				assert.Equal(t, tc.expectRemoved, images.removed)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tc.mockStore.created)
			assert.Equal(t, "A1", tc.mockStore.created.SKU)
			assert.Equal(t, "a widget", tc.mockStore.created.Description, "description should be trimmed")
			assert.Equal(t, tc.expectSaved, tc.mockStore.created.Images, "stored refs should be persisted in order")
			assert.Empty(t, images.removed)
			assert.Equal(t, "A1", created.SKU)
		})
	}
}

func Test_CatalogService_Create_UnsupportedTypeWritesNothing(t *testing.T) {
	// given
	images := &mockImageStore{}
	mockStore := &mockProductStore{}
	svc := NewService(mockStore, images, testLogger())
	uploads := []imagestore.Upload{
		{Name: "doc.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")},
		pngUpload("a.png"),
	}
	// when
	_, err := svc.Create(context.Background(), ProductFields{SKU: "A1", Name: "Widget"}, uploads)
	// then
	assert.ErrorIs(t, err, caterrors.ErrUnsupportedImageType)
	assert.Empty(t, images.saved, "no file may be written when any declared type is unsupported")
	assert.Nil(t, mockStore.created, "no record may be persisted")
}

func Test_CatalogService_Update(t *testing.T) {
	id := uuid.New()
	existing := &store.Product{ID: id, SKU: "A1", Name: "Widget", Images: []string{"/uploads/old.png"}}
	fields := ProductFields{SKU: "A2", Name: "Widget v2", Quantity: 7}

	t.Run("Success - new images replace and delete old ones", func(t *testing.T) {
		// given
		images := &mockImageStore{}
		mockStore := &mockProductStore{product: existing, updateHit: true}
		svc := NewService(mockStore, images, testLogger())
		// when
		err := svc.Update(context.Background(), id, fields, []imagestore.Upload{pngUpload("new.png")})
		// then
		require.NoError(t, err)
		require.NotNil(t, mockStore.updated)
		assert.True(t, mockStore.updatedImages, "image list must be replaced")
		assert.Equal(t, []string{"/uploads/new.png"}, mockStore.updated.Images)
		assert.Equal(t, []string{"/uploads/old.png"}, images.removed, "old images deleted after commit")
	})

	t.Run("Success - no images leaves image list untouched", func(t *testing.T) {
		// given
		images := &mockImageStore{}
		mockStore := &mockProductStore{product: existing, updateHit: true}
		svc := NewService(mockStore, images, testLogger())
		// when
		err := svc.Update(context.Background(), id, fields, nil)
		// then
		require.NoError(t, err)
		assert.False(t, mockStore.updatedImages, "image list must not be replaced")
		assert.Empty(t, images.removed)
	})

	t.Run("Success - unknown id is a no-op and staged images are discarded", func(t *testing.T) {
		// given
		images := &mockImageStore{}
		mockStore := &mockProductStore{findErr: caterrors.ErrProductNotFound, updateHit: false}
		svc := NewService(mockStore, images, testLogger())
		// when
		err := svc.Update(context.Background(), id, fields, []imagestore.Upload{pngUpload("new.png")})
		// then
		require.NoError(t, err)
		assert.Equal(t, []string{"/uploads/new.png"}, images.removed, "orphaned staged files must be removed")
	})

	t.Run("Error - duplicate SKU rolls back staged images, old files stay", func(t *testing.T) {
		// given
		images := &mockImageStore{}
		mockStore := &mockProductStore{product: existing, err: caterrors.ErrDuplicateSKU}
		svc := NewService(mockStore, images, testLogger())
		// when
		err := svc.Update(context.Background(), id, fields, []imagestore.Upload{pngUpload("new.png")})
		// then
		assert.ErrorIs(t, err, caterrors.ErrDuplicateSKU)
		assert.Equal(t, []string{"/uploads/new.png"}, images.removed)
	})

	t.Run("Error - unsupported image type aborts before the record is touched", func(t *testing.T) {
		// given
		images := &mockImageStore{}
		mockStore := &mockProductStore{product: existing, updateHit: true}
		svc := NewService(mockStore, images, testLogger())
		// when
		err := svc.Update(context.Background(), id, fields, []imagestore.Upload{
			{Name: "doc.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")},
		})
		// then
		assert.ErrorIs(t, err, caterrors.ErrUnsupportedImageType)
		assert.Nil(t, mockStore.updated)
		assert.Empty(t, images.saved)
	})
}

func Test_CatalogService_Delete(t *testing.T) {
	id := uuid.New()

	t.Run("Success - record and files removed", func(t *testing.T) {
		// given
		images := &mockImageStore{}
		mockStore := &mockProductStore{
			product: &store.Product{ID: id, Images: []string{"/uploads/a.png", "/uploads/b.png"}},
		}
		svc := NewService(mockStore, images, testLogger())
		// when
		err := svc.Delete(context.Background(), id)
		// then
		require.NoError(t, err)
		assert.Equal(t, id, mockStore.deletedID)
		assert.Equal(t, []string{"/uploads/a.png", "/uploads/b.png"}, images.removed)
	})

	t.Run("Success - unknown id is idempotent", func(t *testing.T) {
		// given
		images := &mockImageStore{}
		mockStore := &mockProductStore{findErr: caterrors.ErrProductNotFound}
		svc := NewService(mockStore, images, testLogger())
		// when
		err := svc.Delete(context.Background(), id)
		// then
		require.NoError(t, err)
		assert.Equal(t, id, mockStore.deletedID, "row delete is still issued")
		assert.Empty(t, images.removed)
	})
}

func Test_CatalogService_FindAll(t *testing.T) {
	testCases := []struct {
		name        string
		mockStore   *mockProductStore
		expected    int
		expectError bool
	}{
		{
			name:      "Success - products found",
			mockStore: &mockProductStore{products: []store.Product{{Name: "Toy"}, {Name: "Widget"}}},
			expected:  2,
		},
		{
			name:      "Success - no products",
			mockStore: &mockProductStore{products: []store.Product{}},
			expected:  0,
		},
		{
			name:        "Error - store failure",
			mockStore:   &mockProductStore{err: errors.New("store error")},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := NewService(tc.mockStore, &mockImageStore{}, testLogger())
			// when
			list, err := svc.FindAll(context.Background())
			// then
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, list, tc.expected)
		})
	}
}

func Test_CatalogService_FindByID(t *testing.T) {
	id := uuid.New()

	t.Run("Success - product found", func(t *testing.T) {
		mockStore := &mockProductStore{product: &store.Product{ID: id, SKU: "A1", Name: "Toy"}}
		svc := NewService(mockStore, &mockImageStore{}, testLogger())

		found, err := svc.FindByID(context.Background(), id)

		require.NoError(t, err)
		assert.Equal(t, id.String(), found.ID)
		assert.Equal(t, []string{}, found.Images, "nil image list renders as empty array")
	})

	t.Run("Error - product not found", func(t *testing.T) {
		mockStore := &mockProductStore{findErr: caterrors.ErrProductNotFound}
		svc := NewService(mockStore, &mockImageStore{}, testLogger())

		found, err := svc.FindByID(context.Background(), id)

		assert.ErrorIs(t, err, caterrors.ErrProductNotFound)
		assert.Nil(t, found)
	})
}

func Test_CatalogService_Search(t *testing.T) {
	// given
	mockStore := &mockProductStore{products: []store.Product{{Name: "Widget"}}}
	svc := NewService(mockStore, &mockImageStore{}, testLogger())
	// when
	list, err := svc.Search(context.Background(), "wid")
	// then
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "Widget", list[0].Name)
}
