package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// "₹4,00,000 - ₹16,00,000 per month", "Up to ₹8,00,000", "₹45,000 per month"
	limitPattern = regexp.MustCompile(`^(up to\s+)?([^\s\-–]+)(?:\s*[-–]\s*([^\s]+))?(?:\s+per\s+([a-z]+))?$`)
	parenPattern = regexp.MustCompile(`\([^)]*\)`)
	spacePattern = regexp.MustCompile(`\s+`)

	// "Rs. 5,000", "INR 5000" are folded into the ₹ form
	rupeePattern = regexp.MustCompile(`\b(?:rs\.?|inr)\s*(\d)`)
)

// ParseLimit parses an authored limit string into a structured Limit.
//
// Accepted forms:
//
//	"Fully covered"                     -> FullyCovered
//	"Not covered"                       -> NotCovered
//	"Unlimited (as per requirement)"    -> UnlimitedCeiling
//	"₹24,000 - ₹1,60,000 per trip"      -> Range(24000, 160000), period "trip"
//	"Up to ₹8,00,000"                   -> Ceiling(800000)
//	"₹45,000 per month"                 -> Ceiling(45000), period "month"
func ParseLimit(raw string) (Limit, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = parenPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
	text = rupeePattern.ReplaceAllString(text, "₹${1}")

	if text == "" {
		return Limit{}, fmt.Errorf("%w: empty limit", ErrInvalidLimit)
	}

	var limit Limit
	switch {
	case text == "fully covered":
		limit = FullyCovered()
	case text == "not covered":
		limit = NotCovered()
	case strings.HasPrefix(text, "unlimited"):
		limit = UnlimitedCeiling()
	default:
		matches := limitPattern.FindStringSubmatch(text)
		if matches == nil {
			return Limit{}, fmt.Errorf("%w: unrecognized limit %q", ErrInvalidLimit, raw)
		}

		first, err := ParseAmount(matches[2])
		if err != nil {
			return Limit{}, fmt.Errorf("%w: %q: %v", ErrInvalidLimit, raw, err)
		}

		switch {
		case matches[3] != "":
			if matches[1] != "" {
				return Limit{}, fmt.Errorf("%w: %q mixes 'up to' with a range", ErrInvalidLimit, raw)
			}
			second, err := ParseAmount(matches[3])
			if err != nil {
				return Limit{}, fmt.Errorf("%w: %q: %v", ErrInvalidLimit, raw, err)
			}
			limit = Range(first, second)
		default:
			limit = Ceiling(first)
		}
		limit.Period = matches[4]
	}

	if err := limit.Validate(); err != nil {
		return Limit{}, fmt.Errorf("%q: %w", raw, err)
	}

	limit.Raw = strings.TrimSpace(raw)
	return limit, nil
}

// ParseAmount parses a currency token such as "₹1,60,000" into whole units.
// Digit grouping commas and a leading currency symbol are ignored; the value
// must be a non-negative integer.
func ParseAmount(token string) (int64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(token))
	cleaned = strings.TrimLeft(cleaned, "₹$€£")
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "rs."), "rs")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", token)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", token)
	}
	if !value.IsInteger() {
		return 0, fmt.Errorf("fractional amount %q", token)
	}
	return value.IntPart(), nil
}
