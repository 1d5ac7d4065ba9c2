package policy

import (
	"fmt"
	"sort"
)

// Table is the raw tier → category → kind → limit layout used to build a Catalog
type Table map[Tier]map[Category]map[Kind]Limit

// RuleSpec is a catalog-authored extra check expressed as a predicate.
// The predicate language is owned by the rules package.
type RuleSpec struct {
	Name    string `json:"name"`
	When    string `json:"when"`
	Message string `json:"message"`
}

// TierPolicy is the read-only limit table of a single tier
type TierPolicy struct {
	tier   Tier
	limits map[Category]map[Kind]Limit
}

// Tier returns the tier the policy belongs to
func (p TierPolicy) Tier() Tier {
	return p.tier
}

// Limit returns the limit for a category/kind; found is false when the
// catalog has no explicit entry
func (p TierPolicy) Limit(category Category, kind Kind) (Limit, bool) {
	kinds, ok := p.limits[category]
	if !ok {
		return Limit{}, false
	}
	limit, ok := kinds[kind]
	return limit, ok
}

// Entry is one explicit limit of a tier
type Entry struct {
	Category Category `json:"category"`
	Kind     Kind     `json:"kind"`
	Limit    Limit    `json:"limit"`
}

// Entries returns the tier's explicit limits in catalog order
func (p TierPolicy) Entries() []Entry {
	entries := make([]Entry, 0, len(kindOrder))
	for _, kind := range kindOrder {
		if limit, ok := p.Limit(kind.Category(), kind); ok {
			entries = append(entries, Entry{Category: kind.Category(), Kind: kind, Limit: limit})
		}
	}
	return entries
}

// Catalog is the immutable, versioned policy table
type Catalog struct {
	version string
	tiers   map[Tier]TierPolicy
	rules   []RuleSpec
}

// NewCatalog validates and freezes a policy table.
// Every tier, category and kind must be known, kinds must sit under their own
// category, and every limit must satisfy its invariants.
func NewCatalog(version string, table Table, rules []RuleSpec) (*Catalog, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: no tiers defined", ErrInvalidCatalog)
	}

	tiers := make(map[Tier]TierPolicy, len(table))
	for tier, categories := range table {
		if !tier.IsValid() {
			return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidCatalog, tier)
		}

		limits := make(map[Category]map[Kind]Limit, len(categories))
		for category, kinds := range categories {
			if !category.IsValid() {
				return nil, fmt.Errorf("%w: tier %q: unknown category %q", ErrInvalidCatalog, tier, category)
			}

			copied := make(map[Kind]Limit, len(kinds))
			for kind, limit := range kinds {
				if !kind.IsValid() {
					return nil, fmt.Errorf("%w: tier %q: unknown kind %q", ErrInvalidCatalog, tier, kind)
				}
				if kind.Category() != category {
					return nil, fmt.Errorf("%w: tier %q: kind %q belongs to %q, not %q",
						ErrInvalidCatalog, tier, kind, kind.Category(), category)
				}
				if err := limit.Validate(); err != nil {
					return nil, fmt.Errorf("%w: tier %q, %q: %v", ErrInvalidCatalog, tier, kind, err)
				}
				copied[kind] = limit
			}
			limits[category] = copied
		}
		tiers[tier] = TierPolicy{tier: tier, limits: limits}
	}

	for _, rule := range rules {
		if rule.Name == "" || rule.When == "" || rule.Message == "" {
			return nil, fmt.Errorf("%w: rule requires name, when and message", ErrInvalidCatalog)
		}
	}

	return &Catalog{
		version: version,
		tiers:   tiers,
		rules:   append([]RuleSpec(nil), rules...),
	}, nil
}

// Version returns the catalog version identifier
func (c *Catalog) Version() string {
	return c.version
}

// Rules returns the catalog-authored extra checks
func (c *Catalog) Rules() []RuleSpec {
	return append([]RuleSpec(nil), c.rules...)
}

// Tier returns the policy of a tier or ErrUnknownTier
func (c *Catalog) Tier(tier Tier) (TierPolicy, error) {
	p, ok := c.tiers[tier]
	if !ok {
		return TierPolicy{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return p, nil
}

// HasTier returns true if the catalog defines the tier
func (c *Catalog) HasTier(tier Tier) bool {
	_, ok := c.tiers[tier]
	return ok
}

// LimitFor looks up a single limit. An unknown tier is an error; a known tier
// without an entry for the kind returns found == false.
func (c *Catalog) LimitFor(tier Tier, category Category, kind Kind) (Limit, bool, error) {
	p, err := c.Tier(tier)
	if err != nil {
		return Limit{}, false, err
	}
	limit, found := p.Limit(category, kind)
	return limit, found, nil
}

// DefinedTiers returns the catalog's tiers ordered executive to staff
func (c *Catalog) DefinedTiers() []Tier {
	defined := make([]Tier, 0, len(c.tiers))
	for tier := range c.tiers {
		defined = append(defined, tier)
	}
	sort.Slice(defined, func(i, j int) bool {
		return defined[i].Rank() < defined[j].Rank()
	})
	return defined
}

// MissingTiers returns known tiers the catalog does not define
func (c *Catalog) MissingTiers() []Tier {
	var missing []Tier
	for _, tier := range tierOrder {
		if !c.HasTier(tier) {
			missing = append(missing, tier)
		}
	}
	return missing
}

// Table returns a copy of the catalog contents
func (c *Catalog) Table() Table {
	table := make(Table, len(c.tiers))
	for tier, p := range c.tiers {
		categories := make(map[Category]map[Kind]Limit, len(p.limits))
		for category, kinds := range p.limits {
			copied := make(map[Kind]Limit, len(kinds))
			for kind, limit := range kinds {
				copied[kind] = limit
			}
			categories[category] = copied
		}
		table[tier] = categories
	}
	return table
}

// MonotonicityWarnings reports places where a lower tier is granted a higher
// upper bound than the tier above it. Generosity is expected to decrease from
// executive to staff; inversions are authoring mistakes, not load errors.
func (c *Catalog) MonotonicityWarnings() []string {
	var warnings []string
	tiers := c.DefinedTiers()

	kinds := make([]Kind, 0, len(kindCategory))
	for kind := range kindCategory {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		for i := 1; i < len(tiers); i++ {
			upper, upperFound := c.tiers[tiers[i-1]].Limit(kind.Category(), kind)
			lower, lowerFound := c.tiers[tiers[i]].Limit(kind.Category(), kind)
			if !upperFound || !lowerFound {
				continue
			}

			upperMax, upperBounded := upper.UpperBound()
			lowerMax, lowerBounded := lower.UpperBound()
			switch {
			case upperBounded && !lowerBounded:
				warnings = append(warnings, fmt.Sprintf("%s: %q is unbounded but %q is capped at %d",
					kind, tiers[i], tiers[i-1], upperMax))
			case upperBounded && lowerBounded && lowerMax > upperMax:
				warnings = append(warnings, fmt.Sprintf("%s: %q allows %d, more than %q (%d)",
					kind, tiers[i], lowerMax, tiers[i-1], upperMax))
			}
		}
	}
	return warnings
}
