package filigree

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Callers branch on these with
// errors.Is; the concrete error an operation returns usually wraps one of
// them with call-site context.
var (
	// ErrUnsupportedDocumentType is returned when a document type has no
	// entry in the capability table.
	ErrUnsupportedDocumentType = errors.New("unsupported document type")

	// ErrEmptyDocument is returned when a document is empty or reduces to
	// nothing after cleaning.
	ErrEmptyDocument = errors.New("empty document")

	// ErrCollectionNotFound is returned for operations on a collection
	// that does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating a collection whose
	// name is already taken.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDimensionMismatch is returned when an embedding's dimensionality
	// does not match the collection it is written to.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEntityNotFound is returned when entity resolution finds no
	// candidate above the partial-match threshold.
	ErrEntityNotFound = errors.New("entity not found")
)

// WrapError wraps err with a context message. Returns nil if err is nil.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps err with a formatted context message. Returns nil if err
// is nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
