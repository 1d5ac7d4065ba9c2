package screening

import "errors"

var (
	// ErrInvalidInputShape is returned when the input is neither a record
	// nor an array of records
	ErrInvalidInputShape = errors.New("input must be a record object or an array of record objects")

	// ErrInvalidJSON is returned when the payload cannot be decoded
	ErrInvalidJSON = errors.New("invalid JSON payload")
)
