// Package screening runs the policy engine over single records and batches.
// Duplicate invoice numbers are resolved in a sequential pre-pass; first
// occurrences are then evaluated concurrently and reassembled in input order.
package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/expense-screening/internal/domain/duplicate"
	"github.com/garyjia/expense-screening/internal/domain/extract"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/domain/rules"
)

// Defaults for Config
const (
	DefaultFlagField      = "flags"
	DefaultAcceptedMarker = "Accepted"
	DefaultWorkers        = 4
)

// Config controls how results are attached to records
type Config struct {
	FlagField      string
	AcceptedMarker string
	Workers        int
}

func (c Config) withDefaults() Config {
	if c.FlagField == "" {
		c.FlagField = DefaultFlagField
	}
	if c.AcceptedMarker == "" {
		c.AcceptedMarker = DefaultAcceptedMarker
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c
}

// Outcome is the typed result for one record of a batch
type Outcome struct {
	Index         int
	InvoiceNumber string
	Tier          policy.Tier
	TierDefaulted bool
	Amount        int64
	AmountValid   bool
	Duplicate     bool
	Violations    []rules.Violation

	// Record is the annotated copy of the input record
	Record map[string]any
}

// Accepted returns true if the record has no violations
func (o Outcome) Accepted() bool {
	return len(o.Violations) == 0
}

type evaluateFunc func(ctx context.Context, fields *extract.Fields) (rules.Result, error)

// Processor screens records against one evaluator. It is safe for concurrent
// use; every call gets its own duplicate state.
type Processor struct {
	evaluator *rules.Evaluator
	evaluate  evaluateFunc
	cfg       Config
	logger    *zap.Logger
}

// NewProcessor creates a processor
func NewProcessor(evaluator *rules.Evaluator, cfg Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		evaluator: evaluator,
		evaluate:  evaluator.Evaluate,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Config returns the effective configuration
func (p *Processor) Config() Config {
	return p.cfg
}

// Evaluator returns the underlying rule evaluator
func (p *Processor) Evaluator() *rules.Evaluator {
	return p.evaluator
}

// Flags renders an outcome the way it is attached to the record
func (p *Processor) Flags(o Outcome) []string {
	if o.Accepted() {
		return []string{p.cfg.AcceptedMarker}
	}
	return rules.Messages(o.Violations)
}

// Screen evaluates records in input order. Duplicate detection spans the
// whole call. A per-record failure never aborts its siblings; only a
// cancelled context ends the call early.
func (p *Processor) Screen(ctx context.Context, records []map[string]any) ([]Outcome, error) {
	start := time.Now()

	detector := duplicate.NewDetector()
	duplicates := make([]bool, len(records))
	for i, record := range records {
		duplicates[i] = detector.Seen(extract.InvoiceKey(record))
	}

	outcomes := make([]Outcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, record := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.screenOne(gctx, i, record, duplicates[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("screening cancelled: %w", err)
	}

	flagged, dupCount := 0, 0
	for _, o := range outcomes {
		if !o.Accepted() {
			flagged++
		}
		if o.Duplicate {
			dupCount++
		}
	}
	p.logger.Info("Screened batch",
		zap.Int("records", len(records)),
		zap.Int("flagged", flagged),
		zap.Int("duplicates", dupCount),
		zap.Duration("elapsed", time.Since(start)))

	return outcomes, nil
}

func (p *Processor) screenOne(ctx context.Context, index int, record map[string]any, isDuplicate bool) (outcome Outcome) {
	fields := extract.Normalize(record)
	outcome = Outcome{
		Index:         index,
		InvoiceNumber: fields.InvoiceNumber,
		Tier:          fields.Tier,
		TierDefaulted: fields.TierDefaulted,
		Amount:        fields.Amount,
		AmountValid:   fields.AmountValid(),
		Duplicate:     isDuplicate,
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Record evaluation panicked",
				zap.Int("index", index),
				zap.String("invoice_number", fields.InvoiceNumber),
				zap.Any("panic", r))
			outcome.Violations = []rules.Violation{{Check: rules.CheckEvaluation, Message: rules.MsgNotEvaluated}}
		}
		outcome.Record = p.annotate(record, outcome)
	}()

	if isDuplicate {
		outcome.Violations = []rules.Violation{{Check: rules.CheckDuplicate, Message: rules.MsgDuplicate}}
		return outcome
	}

	result, err := p.evaluate(ctx, &fields)
	if err != nil {
		p.logger.Error("Record evaluation failed",
			zap.Int("index", index),
			zap.String("invoice_number", fields.InvoiceNumber),
			zap.Error(err))
		outcome.Violations = []rules.Violation{{Check: rules.CheckEvaluation, Message: rules.MsgNotEvaluated}}
		return outcome
	}
	for _, exprErr := range result.ExpressionErrors {
		p.logger.Warn("Expression rule failed",
			zap.Int("index", index),
			zap.Error(exprErr))
	}

	outcome.Violations = result.Violations
	return outcome
}

// annotate returns a shallow copy of the record with the flag field set
func (p *Processor) annotate(record map[string]any, outcome Outcome) map[string]any {
	annotated := make(map[string]any, len(record)+1)
	for k, v := range record {
		annotated[k] = v
	}
	annotated[p.cfg.FlagField] = p.Flags(outcome)
	return annotated
}

// Process annotates a single record or an ordered array of records and
// returns the same shape it was given
func (p *Processor) Process(ctx context.Context, input any) (any, error) {
	records, single, err := Records(input)
	if err != nil {
		return nil, err
	}

	outcomes, err := p.Screen(ctx, records)
	if err != nil {
		return nil, err
	}
	return Output(outcomes, single), nil
}

// Output reassembles annotated records in the shape Records split them from
func Output(outcomes []Outcome, single bool) any {
	if single && len(outcomes) == 1 {
		return outcomes[0].Record
	}
	annotated := make([]any, len(outcomes))
	for i, o := range outcomes {
		annotated[i] = o.Record
	}
	return annotated
}

// ProcessJSON decodes a JSON payload and processes it
func (p *Processor) ProcessJSON(ctx context.Context, data []byte) (any, error) {
	input, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, input)
}

// Decode reads exactly one JSON value, keeping numbers as json.Number so
// large integers survive unchanged
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var input any
	if err := dec.Decode(&input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidJSON)
	}
	return input, nil
}

// Records splits input into records. single is true for a bare object.
func Records(input any) (records []map[string]any, single bool, err error) {
	switch v := input.(type) {
	case map[string]any:
		return []map[string]any{v}, true, nil
	case []map[string]any:
		return v, false, nil
	case []any:
		records = make([]map[string]any, len(v))
		for i, element := range v {
			record, ok := element.(map[string]any)
			if !ok {
				return nil, false, fmt.Errorf("%w: element %d is %s", ErrInvalidInputShape, i, describe(element))
			}
			records[i] = record
		}
		return records, false, nil
	default:
		return nil, false, fmt.Errorf("%w: got %s", ErrInvalidInputShape, describe(input))
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64, int, int64:
		return "a number"
	case []any:
		return "an array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
