package rules

import "errors"

var (
	// ErrInvalidOptions is returned when evaluator options are inconsistent
	ErrInvalidOptions = errors.New("invalid evaluator options")

	// ErrInvalidExpression is returned when a catalog rule does not compile
	// to a boolean predicate
	ErrInvalidExpression = errors.New("invalid rule expression")
)
