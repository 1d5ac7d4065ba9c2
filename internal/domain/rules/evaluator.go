// Package rules evaluates normalized expense records against the policy
// catalog. Each record walks the evaluation lifecycle of the workflow
// package; structural problems and unknown tiers end it early, otherwise
// every check runs and violations accumulate.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/expense-screening/internal/domain/extract"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/domain/workflow"
)

// Result is the outcome of evaluating one record
type Result struct {
	Tier       policy.Tier
	Violations []Violation
	Path       []workflow.State

	// ExpressionErrors lists expression rules that failed at runtime; a
	// failing expression never produces a violation
	ExpressionErrors []error
}

// Accepted returns true if the record has no violations
func (r Result) Accepted() bool {
	return len(r.Violations) == 0
}

// Messages returns the violation messages in check order
func (r Result) Messages() []string {
	return Messages(r.Violations)
}

// Evaluator runs the fixed check table plus catalog expressions.
// It is safe for concurrent use.
type Evaluator struct {
	catalog     *policy.Catalog
	expressions []Expression
	opts        Options
}

// NewEvaluator compiles the catalog's expression rules and returns an evaluator
func NewEvaluator(catalog *policy.Catalog, opts Options) (*Evaluator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrInvalidOptions)
	}

	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	expressions, err := CompileExpressions(catalog.Rules())
	if err != nil {
		return nil, err
	}

	return &Evaluator{
		catalog:     catalog,
		expressions: expressions,
		opts:        opts,
	}, nil
}

// Catalog returns the catalog the evaluator checks against
func (e *Evaluator) Catalog() *policy.Catalog {
	return e.catalog
}

// Options returns the effective options
func (e *Evaluator) Options() Options {
	return e.opts
}

// EvaluateRecord normalizes and evaluates a raw record
func (e *Evaluator) EvaluateRecord(ctx context.Context, record map[string]any) (Result, error) {
	fields := extract.Normalize(record)
	return e.Evaluate(ctx, &fields)
}

// Evaluate runs the lifecycle for one record's fields. Record problems are
// reported as violations; an error means the lifecycle itself was broken.
func (e *Evaluator) Evaluate(ctx context.Context, fields *extract.Fields) (Result, error) {
	machine := workflow.NewEvaluation()
	result := Result{Tier: fields.Tier}

	failure, structural := fields.Structural()
	facts := &workflow.Facts{Sound: !structural}
	ctx = workflow.WithFacts(ctx, facts)

	fire := func(trigger workflow.Trigger) error {
		if err := machine.Fire(ctx, trigger); err != nil {
			return fmt.Errorf("evaluation lifecycle (permitted %v): %w", machine.PermittedTriggers(), err)
		}
		return nil
	}
	finish := func(trigger workflow.Trigger) (Result, error) {
		if err := fire(trigger); err != nil {
			return result, err
		}
		result.Path = machine.Path()
		return result, nil
	}

	// a rejected guard is a record problem, not a broken lifecycle
	if err := fire(workflow.TriggerValidate); err != nil {
		if !errors.Is(err, workflow.ErrGuardFailed) {
			return result, err
		}
		result.Violations = []Violation{structuralViolation(failure)}
		return finish(workflow.TriggerAbort)
	}
	if err := fire(workflow.TriggerExtract); err != nil {
		return result, err
	}

	tierPolicy, tierErr := e.catalog.Tier(fields.Tier)
	facts.TierKnown = tierErr == nil
	if err := fire(workflow.TriggerCheck); err != nil {
		if !errors.Is(err, workflow.ErrGuardFailed) {
			return result, err
		}
		result.Violations = []Violation{violation(CheckTier, UnknownTierMessage(fields.Tier.String()))}
		return finish(workflow.TriggerAbort)
	}

	in := input{fields: fields, policy: tierPolicy, opts: e.opts}
	for _, c := range categoryChecks {
		if v, violated := c.run(in); violated {
			result.Violations = append(result.Violations, v)
		}
	}

	for _, expr := range e.expressions {
		matched, err := expr.Matches(fields)
		if err != nil {
			result.ExpressionErrors = append(result.ExpressionErrors, err)
			continue
		}
		if matched {
			result.Violations = append(result.Violations, violation(ExpressionCheck(expr.Name), expr.Message))
		}
	}

	return finish(workflow.TriggerFinish)
}

func structuralViolation(failure extract.Failure) Violation {
	if failure == extract.FailureBillMissing {
		return violation(CheckStructure, MsgBillMissing)
	}
	return violation(CheckStructure, MsgAmountMissing)
}
