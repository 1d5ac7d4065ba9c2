package policy

import "errors"

var (
	// ErrUnknownTier is returned when a tier has no entry in the catalog
	ErrUnknownTier = errors.New("unknown employee tier")

	// ErrInvalidLimit is returned when a limit violates its own invariants
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidCatalog is returned when catalog data cannot be assembled
	ErrInvalidCatalog = errors.New("invalid policy catalog")
)
