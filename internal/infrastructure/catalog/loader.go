// Package catalog loads the policy catalog from a YAML or JSON document.
// Documents are validated against an embedded JSON Schema before any limit
// text is parsed; the resulting catalog is immutable.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/expense-screening/internal/domain/policy"
)

//go:embed policies.yaml
var defaultPolicies []byte

//go:embed schema.json
var schemaDocument []byte

// Format is the encoding of a catalog document
type Format string

const (
	FormatAuto Format = ""
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// document mirrors the catalog file layout
type document struct {
	Version  string                                           `json:"version"`
	Currency string                                           `json:"currency"`
	Tiers    map[string]map[string]map[string]json.RawMessage `json:"tiers"`
	Rules    []policy.RuleSpec                                `json:"rules"`
}

type limitObject struct {
	Min      *int64 `json:"min"`
	Max      *int64 `json:"max"`
	Period   string `json:"period"`
	Coverage string `json:"coverage"`
}

// Loader reads catalogs and reports authoring warnings
type Loader struct {
	schema *jsonschema.Schema
	logger *zap.Logger
}

// NewLoader compiles the embedded schema
func NewLoader(logger *zap.Logger) (*Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("catalog.schema.json", bytes.NewReader(schemaDocument)); err != nil {
		return nil, fmt.Errorf("add catalog schema: %w", err)
	}
	schema, err := compiler.Compile("catalog.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	return &Loader{schema: schema, logger: logger}, nil
}

// Load reads the catalog at path, or the embedded default when path is empty
func (l *Loader) Load(path string, format Format) (*policy.Catalog, error) {
	if path == "" {
		l.logger.Info("Loading embedded policy catalog")
		return l.Parse(defaultPolicies, FormatYAML)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy catalog: %w", err)
	}
	if format == FormatAuto {
		format = formatFromPath(path)
	}

	l.logger.Info("Loading policy catalog", zap.String("path", path), zap.String("format", string(format)))
	return l.Parse(data, format)
}

// Default returns the embedded catalog
func (l *Loader) Default() (*policy.Catalog, error) {
	return l.Parse(defaultPolicies, FormatYAML)
}

// Parse decodes, validates and freezes a catalog document
func (l *Loader) Parse(data []byte, format Format) (*policy.Catalog, error) {
	raw, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	instance, err := decodeNumbers(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrInvalidCatalog, err)
	}
	if err := l.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: document does not match schema: %v", policy.ErrInvalidCatalog, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrInvalidCatalog, err)
	}

	table, err := buildTable(doc.Tiers)
	if err != nil {
		return nil, err
	}

	catalog, err := policy.NewCatalog(doc.Version, table, doc.Rules)
	if err != nil {
		return nil, err
	}

	for _, warning := range catalog.MonotonicityWarnings() {
		l.logger.Warn("Policy generosity inversion", zap.String("detail", warning))
	}
	if missing := catalog.MissingTiers(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, tier := range missing {
			names[i] = tier.String()
		}
		l.logger.Warn("Policy catalog does not define every tier", zap.Strings("missing", names))
	}

	l.logger.Info("Policy catalog loaded",
		zap.String("version", catalog.Version()),
		zap.Int("tiers", len(catalog.DefinedTiers())),
		zap.Int("rules", len(catalog.Rules())))

	return catalog, nil
}

func formatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// toJSON normalizes a YAML or JSON document into JSON bytes
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML, FormatAuto:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: invalid YAML: %v", policy.ErrInvalidCatalog, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", policy.ErrInvalidCatalog, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", policy.ErrInvalidCatalog, format)
	}
}

func decodeNumbers(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func buildTable(tiers map[string]map[string]map[string]json.RawMessage) (policy.Table, error) {
	table := make(policy.Table, len(tiers))
	for tier, categories := range tiers {
		limits := make(map[policy.Category]map[policy.Kind]policy.Limit, len(categories))
		for category, kinds := range categories {
			entries := make(map[policy.Kind]policy.Limit, len(kinds))
			for kind, raw := range kinds {
				limit, err := parseLimit(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: %s / %s / %s: %v", policy.ErrInvalidCatalog, tier, category, kind, err)
				}
				entries[policy.Kind(kind)] = limit
			}
			limits[policy.Category(category)] = entries
		}
		table[policy.Tier(tier)] = limits
	}
	return table, nil
}

// parseLimit accepts limit text, a bare integer ceiling or a limit object
func parseLimit(raw json.RawMessage) (policy.Limit, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return policy.ParseLimit(text)
	}

	var ceiling int64
	if err := json.Unmarshal(raw, &ceiling); err == nil {
		return policy.Ceiling(ceiling), nil
	}

	var obj limitObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return policy.Limit{}, fmt.Errorf("%w: %s", policy.ErrInvalidLimit, string(raw))
	}

	switch {
	case obj.Coverage == "full":
		return policy.FullyCovered(), nil
	case obj.Coverage == "none":
		return policy.NotCovered(), nil
	case obj.Max == nil:
		return policy.Limit{}, fmt.Errorf("%w: max is required", policy.ErrInvalidLimit)
	case obj.Min != nil:
		return policy.Range(*obj.Min, *obj.Max).WithPeriod(obj.Period), nil
	default:
		return policy.Ceiling(*obj.Max).WithPeriod(obj.Period), nil
	}
}
