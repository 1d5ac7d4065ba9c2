package rules

import (
	"fmt"
	"time"
)

// AmountBasis selects which amount keyword-gated checks compare
type AmountBasis string

const (
	// AmountBasisTotal compares the record total for every check
	AmountBasisTotal AmountBasis = "total"

	// AmountBasisLineItem compares the summed totals of the line items that
	// triggered the check, falling back to the record total when those items
	// carry no totals. Business Trips always uses the record total.
	AmountBasisLineItem AmountBasis = "line_item"
)

// IsValid returns true if the basis is known
func (b AmountBasis) IsValid() bool {
	return b == AmountBasisTotal || b == AmountBasisLineItem
}

// DefaultStalenessDays is how old a bill may be before it is flagged
const DefaultStalenessDays = 30

// Options tunes an Evaluator
type Options struct {
	// Now returns the reference time for staleness; defaults to time.Now
	Now func() time.Time

	// StalenessDays is the number of whole days a bill may age
	StalenessDays int

	// AmountBasis selects total or line-item comparison
	AmountBasis AmountBasis
}

// DefaultOptions returns the options used when none are supplied
func DefaultOptions() Options {
	return Options{
		Now:           time.Now,
		StalenessDays: DefaultStalenessDays,
		AmountBasis:   AmountBasisTotal,
	}
}

func (o Options) withDefaults() (Options, error) {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.StalenessDays == 0 {
		o.StalenessDays = DefaultStalenessDays
	}
	if o.StalenessDays < 0 {
		return o, fmt.Errorf("%w: staleness days must be positive, got %d", ErrInvalidOptions, o.StalenessDays)
	}
	if o.AmountBasis == "" {
		o.AmountBasis = AmountBasisTotal
	}
	if !o.AmountBasis.IsValid() {
		return o, fmt.Errorf("%w: unknown amount basis %q", ErrInvalidOptions, o.AmountBasis)
	}
	return o, nil
}
