package policy

import (
	"fmt"
	"strconv"
)

// LimitKind tags which variant a Limit holds
type LimitKind int

const (
	LimitRange LimitKind = iota
	LimitCeiling
	LimitCoverage
)

// String returns the string representation of the limit kind
func (k LimitKind) String() string {
	switch k {
	case LimitRange:
		return "range"
	case LimitCeiling:
		return "ceiling"
	case LimitCoverage:
		return "coverage"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name
func (k LimitKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText
func (k *LimitKind) UnmarshalText(text []byte) error {
	for _, candidate := range []LimitKind{LimitRange, LimitCeiling, LimitCoverage} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: unknown limit kind %q", ErrInvalidLimit, text)
}

// Coverage is the state of a coverage-style limit
type Coverage int

const (
	CoverageNone Coverage = iota
	CoverageFull
	CoveragePartial
)

// String returns the string representation of the coverage state
func (c Coverage) String() string {
	switch c {
	case CoverageFull:
		return "fully covered"
	case CoveragePartial:
		return "partially covered"
	default:
		return "not covered"
	}
}

// MarshalText encodes the coverage state by name
func (c Coverage) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a coverage state written by MarshalText
func (c *Coverage) UnmarshalText(text []byte) error {
	for _, candidate := range []Coverage{CoverageNone, CoverageFull, CoveragePartial} {
		if candidate.String() == string(text) {
			*c = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: unknown coverage %q", ErrInvalidLimit, text)
}

// Limit is the policy constraint for a (tier, category, kind) triple.
//
// Exactly one variant is meaningful, selected by Kind:
//   - LimitRange: Min ≤ amount ≤ Max
//   - LimitCeiling: amount ≤ Max, or no bound at all when Unlimited
//   - LimitCoverage: Coverage state; CoveragePartial also carries Min/Max
//
// Period and Raw are informational ("month", "night"; the authored text).
type Limit struct {
	Kind      LimitKind `json:"kind"`
	Min       int64     `json:"min,omitempty"`
	Max       int64     `json:"max,omitempty"`
	Unlimited bool      `json:"unlimited,omitempty"`
	Coverage  Coverage  `json:"coverage,omitempty"`
	Period    string    `json:"period,omitempty"`
	Raw       string    `json:"raw,omitempty"`
}

// Range creates a Min..Max limit
func Range(min, max int64) Limit {
	return Limit{Kind: LimitRange, Min: min, Max: max}
}

// Ceiling creates an upper-bound limit
func Ceiling(max int64) Limit {
	return Limit{Kind: LimitCeiling, Max: max}
}

// UnlimitedCeiling creates a ceiling with no bound
func UnlimitedCeiling() Limit {
	return Limit{Kind: LimitCeiling, Unlimited: true}
}

// FullyCovered creates a coverage limit that reimburses everything
func FullyCovered() Limit {
	return Limit{Kind: LimitCoverage, Coverage: CoverageFull}
}

// NotCovered creates a coverage limit that reimburses nothing
func NotCovered() Limit {
	return Limit{Kind: LimitCoverage, Coverage: CoverageNone}
}

// PartiallyCovered creates a coverage limit bounded by a range
func PartiallyCovered(min, max int64) Limit {
	return Limit{Kind: LimitCoverage, Coverage: CoveragePartial, Min: min, Max: max}
}

// WithPeriod returns a copy of the limit annotated with a billing period
func (l Limit) WithPeriod(period string) Limit {
	l.Period = period
	return l
}

// Validate checks the variant invariants: non-negative bounds and Min ≤ Max
func (l Limit) Validate() error {
	switch l.Kind {
	case LimitRange:
		return validateBounds(l.Min, l.Max)
	case LimitCeiling:
		if l.Unlimited {
			return nil
		}
		if l.Max < 0 {
			return fmt.Errorf("%w: ceiling must be non-negative, got %d", ErrInvalidLimit, l.Max)
		}
		return nil
	case LimitCoverage:
		switch l.Coverage {
		case CoverageFull, CoverageNone:
			return nil
		case CoveragePartial:
			return validateBounds(l.Min, l.Max)
		default:
			return fmt.Errorf("%w: unknown coverage state %d", ErrInvalidLimit, l.Coverage)
		}
	default:
		return fmt.Errorf("%w: unknown limit kind %d", ErrInvalidLimit, l.Kind)
	}
}

func validateBounds(min, max int64) error {
	if min < 0 || max < 0 {
		return fmt.Errorf("%w: bounds must be non-negative, got %d - %d", ErrInvalidLimit, min, max)
	}
	if min > max {
		return fmt.Errorf("%w: min %d exceeds max %d", ErrInvalidLimit, min, max)
	}
	return nil
}

// Bounds returns the inclusive range an amount must fall in.
// bounded is false when any non-negative amount is admitted.
func (l Limit) Bounds() (min, max int64, bounded bool) {
	switch l.Kind {
	case LimitRange:
		return l.Min, l.Max, true
	case LimitCeiling:
		if l.Unlimited {
			return 0, 0, false
		}
		return 0, l.Max, true
	case LimitCoverage:
		switch l.Coverage {
		case CoverageFull:
			return 0, 0, false
		case CoveragePartial:
			return l.Min, l.Max, true
		default:
			return 0, 0, true
		}
	}
	return 0, 0, false
}

// UpperBound returns the ceiling an amount must not exceed
func (l Limit) UpperBound() (max int64, bounded bool) {
	_, max, bounded = l.Bounds()
	return max, bounded
}

// Admits returns true if the amount falls within the limit
func (l Limit) Admits(amount int64) bool {
	min, max, bounded := l.Bounds()
	if !bounded {
		return true
	}
	return amount >= min && amount <= max
}

// IsFullyCovered returns true only for an explicit full-coverage grant
func (l Limit) IsFullyCovered() bool {
	return l.Kind == LimitCoverage && l.Coverage == CoverageFull
}

// String renders the limit for humans, e.g. "24000–160000 per trip"
func (l Limit) String() string {
	var s string
	switch l.Kind {
	case LimitRange:
		s = formatRange(l.Min, l.Max)
	case LimitCeiling:
		if l.Unlimited {
			s = "unlimited"
		} else {
			s = "up to " + strconv.FormatInt(l.Max, 10)
		}
	case LimitCoverage:
		if l.Coverage == CoveragePartial {
			s = formatRange(l.Min, l.Max)
		} else {
			s = l.Coverage.String()
		}
	default:
		s = "unknown"
	}
	if l.Period != "" {
		s += " per " + l.Period
	}
	return s
}

func formatRange(min, max int64) string {
	return fmt.Sprintf("%d–%d", min, max)
}
