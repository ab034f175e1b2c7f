// Package rest provides HTTP handlers for the catalog's legacy product API.
package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	caterrors "github.com/shopfox/catalog/internal/errors"
	"github.com/shopfox/catalog/internal/imagestore"
	"github.com/shopfox/catalog/internal/service"
	"github.com/shopfox/catalog/pkg/web"
)

// Messages pinned by the legacy API contract.
const (
	msgDuplicateSKU    = "SKU id is already taken"
	msgUnsupportedType = "Image type is not supported"
	msgFailed          = "failed"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to temp storage.
const maxUploadMemory = 32 << 20

type Handler struct {
	service  service.CatalogService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new product API handler with the provided service.
func NewHandler(svc service.CatalogService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  svc,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the legacy /products routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Get("/search/*", h.Search)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Put("/", h.Update)
			r.Delete("/", h.DeleteByID)
		})
	})
}

// FindAll retrieves a list of all products.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	list, err := h.service.FindAll(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// Search retrieves all products whose name starts with the q query parameter.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	prefix := r.URL.Query().Get("q")
	list, err := h.service.Search(r.Context(), prefix)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error searching products", "prefix", prefix, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully searched products", "prefix", prefix, "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// FindByID retrieves a product by its ID. An unknown or malformed ID renders
// a null body, matching the legacy contract.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// Malformed IDs and missing records are the same failure class here.
		web.RespondJSON(w, mLogger, http.StatusOK, nullBody{})
		return
	}

	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, caterrors.ErrProductNotFound) {
			web.RespondJSON(w, mLogger, http.StatusOK, nullBody{})
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// Create handles the multipart creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	fields, uploads, closeUploads, ok := h.parseProductForm(w, r, mLogger)
	if !ok {
		return
	}
	defer closeUploads()

	created, err := h.service.Create(r.Context(), fields, uploads)
	if err != nil {
		h.respondMutationError(w, r.Context(), mLogger, err, "Error creating product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product created", "ID", created.ID, "SKU", created.SKU)
	w.WriteHeader(http.StatusOK)
}

// Update handles the multipart update of an existing product. Images are
// optional; when absent the stored image list is left untouched.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
		return
	}
	fields, uploads, closeUploads, ok := h.parseProductForm(w, r, mLogger)
	if !ok {
		return
	}
	defer closeUploads()

	if err := h.service.Update(r.Context(), id, fields, uploads); err != nil {
		h.respondMutationError(w, r.Context(), mLogger, err, "Error updating product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product updated", "ID", id)
	w.WriteHeader(http.StatusOK)
}

// DeleteByID deletes a product and its images by ID. Unknown IDs succeed,
// keeping the operation idempotent.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		mLogger.ErrorContext(r.Context(), "Error deleting product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
		return
	}
	mLogger.InfoContext(r.Context(), "Product deleted", "ID", id)
	w.WriteHeader(http.StatusOK)
}

// parseProductForm parses the multipart form shared by Create and Update and
// validates the product fields. The returned closer releases the opened
// upload streams.
func (h *Handler) parseProductForm(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger) (service.ProductFields, []imagestore.Upload, func(), bool) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		mLogger.WarnContext(r.Context(), "Error parsing multipart form", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid multipart form")
		return service.ProductFields{}, nil, noop, false
	}

	qty := int64(0)
	if qtyVal := r.FormValue("qty"); qtyVal != "" {
		parsed, err := strconv.ParseInt(qtyVal, 10, 64)
		if err != nil {
			web.RespondError(w, mLogger, http.StatusBadRequest, "qty must be a number")
			return service.ProductFields{}, nil, noop, false
		}
		qty = parsed
	}

	fields := service.ProductFields{
		SKU:         r.FormValue("sku"),
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Quantity:    qty,
	}
	if err := h.validate.Struct(fields); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fieldErr := validationErrors[0]
			msg := fmt.Sprintf("%s failed on rule: %s", strings.ToLower(fieldErr.Field()), fieldErr.Tag())
			mLogger.WarnContext(r.Context(), "Product fields failed validation", "error", msg)
			web.RespondError(w, mLogger, http.StatusBadRequest, msg)
			return service.ProductFields{}, nil, noop, false
		}
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid product fields")
		return service.ProductFields{}, nil, noop, false
	}

	uploads, closeUploads, err := openUploads(r.MultipartForm.File["images"])
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error opening uploaded files", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
		return service.ProductFields{}, nil, noop, false
	}
	return fields, uploads, closeUploads, true
}

// openUploads opens every uploaded file and pairs it with its declared
// content type. The returned closer must be called once the uploads were
// consumed.
func openUploads(headers []*multipart.FileHeader) ([]imagestore.Upload, func(), error) {
	uploads := make([]imagestore.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open uploaded file %s: %w", fh.Filename, err)
		}
		files = append(files, f)
		uploads = append(uploads, imagestore.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}

// respondMutationError maps create/update failures onto the legacy wire
// contract.
func (h *Handler) respondMutationError(w http.ResponseWriter, ctx context.Context, mLogger *slog.Logger, err error, logMsg string) {
	switch {
	case errors.Is(err, caterrors.ErrDuplicateSKU):
		mLogger.WarnContext(ctx, logMsg, "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, msgDuplicateSKU)
	case errors.Is(err, caterrors.ErrUnsupportedImageType):
		mLogger.WarnContext(ctx, logMsg, "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, msgUnsupportedType)
	default:
		mLogger.ErrorContext(ctx, logMsg, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, msgFailed)
	}
}

// nullBody marshals to a JSON null, the legacy body for missing products.
type nullBody struct{}

func (nullBody) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
