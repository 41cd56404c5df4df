// Package validate implements the pure, I/O-free normalization and
// rejection rules for collection paths, document ids, and property names.
package validate

import "errors"

// Sentinel errors, one per spec.md §7 input-validation error kind that this
// package can raise. Callers distinguish them with errors.Is.
var (
	ErrInvalidCollectionPathCharacter = errors.New("invalid character in collection path")
	ErrInvalidCollectionPathLength    = errors.New("collection path length out of bounds")
	ErrInvalidIdCharacter             = errors.New("invalid character in document id")
	ErrInvalidIdLength                = errors.New("document id length out of bounds")
	ErrUndefinedDocumentId            = errors.New("document id is undefined")
	ErrInvalidPropertyNameInDocument  = errors.New("invalid property name in document")
	ErrInvalidWorkingDirectoryPathLength = errors.New("working directory path length out of bounds")
	ErrInvalidLocalDirCharacter       = errors.New("invalid character in local directory path")
	ErrUndefinedDatabaseName          = errors.New("database name is undefined")
	ErrInvalidDbNameCharacter         = errors.New("invalid character in database name")
)
