// Package errors provides custom error types for catalog operations.
package errors

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrDuplicateSKU         = errors.New("sku is already taken")
	ErrUnsupportedImageType = errors.New("image type is not supported")
)
