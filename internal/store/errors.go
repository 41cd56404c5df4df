package store

import "errors"

// Sentinel errors, one per spec.md §7 CRUD error kind this package can
// raise. Callers distinguish them with errors.Is.
var (
	ErrSameIdExists      = errors.New("store: a document already exists at this id")
	ErrDocumentNotFound  = errors.New("store: document not found")
	ErrInvalidJsonObject = errors.New("store: blob is not a JSON object")
	ErrCannotWriteData   = errors.New("store: failed to write document data")
	ErrCannotDeleteData  = errors.New("store: failed to delete document data")
)
