package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
	ErrNotFound          = errors.New("document not found")

	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
