package rules

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/garyjia/expense-screening/internal/domain/extract"
	"github.com/garyjia/expense-screening/internal/domain/policy"
)

// Variables visible to catalog expressions
const (
	varAmount         = "amount"
	varAmountValid    = "amount_valid"
	varTier           = "tier"
	varVendorName     = "vendor_name"
	varVendorCategory = "vendor_category"
	varKeywords       = "keywords"
	varItems          = "items"
	varInvoiceNumber  = "invoice_number"
	varCurrency       = "currency"
)

// Expression is a compiled catalog rule. When the predicate evaluates to true
// the record receives the rule's message as a violation.
type Expression struct {
	Name    string
	When    string
	Message string
	program cel.Program
}

func newExpressionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(varAmount, cel.IntType),
		cel.Variable(varAmountValid, cel.BoolType),
		cel.Variable(varTier, cel.StringType),
		cel.Variable(varVendorName, cel.StringType),
		cel.Variable(varVendorCategory, cel.StringType),
		cel.Variable(varKeywords, cel.StringType),
		cel.Variable(varItems, cel.ListType(cel.StringType)),
		cel.Variable(varInvoiceNumber, cel.StringType),
		cel.Variable(varCurrency, cel.StringType),
	)
}

// CompileExpressions type-checks catalog rules. Every rule must compile to a
// boolean predicate over the declared variables.
func CompileExpressions(specs []policy.RuleSpec) ([]Expression, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	env, err := newExpressionEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	compiled := make([]Expression, 0, len(specs))
	for _, spec := range specs {
		ast, issues := env.Compile(spec.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidExpression, spec.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("%w: rule %q must yield bool, got %v", ErrInvalidExpression, spec.Name, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidExpression, spec.Name, err)
		}

		message := spec.Message
		if !strings.HasPrefix(message, MessagePrefix) {
			message = MessagePrefix + message
		}
		compiled = append(compiled, Expression{
			Name:    spec.Name,
			When:    spec.When,
			Message: message,
			program: program,
		})
	}
	return compiled, nil
}

// Matches evaluates the predicate against normalized fields
func (e Expression) Matches(fields *extract.Fields) (bool, error) {
	out, _, err := e.program.Eval(activation(fields))
	if err != nil {
		return false, fmt.Errorf("rule %q: %w", e.Name, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q: result %v is not a bool", e.Name, out.Value())
	}
	return matched, nil
}

func activation(fields *extract.Fields) map[string]any {
	items := make([]string, 0, len(fields.Items))
	for _, item := range fields.Items {
		items = append(items, item.Name)
	}

	return map[string]any{
		varAmount:         fields.Amount,
		varAmountValid:    fields.AmountValid(),
		varTier:           fields.Tier.String(),
		varVendorName:     fields.VendorName,
		varVendorCategory: fields.VendorCategory,
		varKeywords:       fields.Keywords,
		varItems:          items,
		varInvoiceNumber:  fields.InvoiceNumber,
		varCurrency:       fields.Currency,
	}
}
