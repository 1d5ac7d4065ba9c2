package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/domain/extract"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/domain/rules"
)

var fixedNow = time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC)

func newTestProcessor(t *testing.T, cfg Config) *Processor {
	t.Helper()
	catalog, err := policy.NewCatalog("test-1", policy.Table{
		policy.TierStaff: {
			policy.CategoryTravel: {
				policy.KindBusinessTrips: policy.Range(24000, 160000),
			},
		},
	}, nil)
	require.NoError(t, err)

	evaluator, err := rules.NewEvaluator(catalog, rules.Options{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return NewProcessor(evaluator, cfg, zap.NewNop())
}

func staffRecord(invoice string, amount int) map[string]any {
	bill := map[string]any{
		"totalAmount": map[string]any{"$numberInt": fmt.Sprint(amount)},
		"date":        map[string]any{"$date": map[string]any{"$numberLong": fmt.Sprint(fixedNow.UnixMilli())}},
	}
	if invoice != "" {
		bill["invoice_number"] = invoice
	}
	return map[string]any{
		"bill":          bill,
		"vendor":        map[string]any{"name": "Acme"},
		"employeeLevel": "Staff & Employees",
	}
}

func TestProcess_SingleRecord(t *testing.T) {
	p := newTestProcessor(t, Config{})
	record := staffRecord("INV-1", 50000)

	out, err := p.Process(context.Background(), record)
	require.NoError(t, err)

	annotated, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"Accepted"}, annotated["flags"])
	assert.Equal(t, record["bill"], annotated["bill"])
	assert.NotContains(t, record, "flags", "input must not be mutated")
}

func TestProcess_DuplicateInvoice(t *testing.T) {
	p := newTestProcessor(t, Config{})

	out, err := p.Process(context.Background(), []any{
		staffRecord("INV-1", 4000),
		staffRecord("INV-1", 4000),
		staffRecord("INV-2", 50000),
		staffRecord("INV-1", 50000),
	})
	require.NoError(t, err)

	annotated := out.([]any)
	require.Len(t, annotated, 4)
	assert.Equal(t, []string{
		"Violation: Total amount 4000 exceeds Business Trips policy limits (24000–160000).",
	}, annotated[0].(map[string]any)["flags"])
	assert.Equal(t, []string{rules.MsgDuplicate}, annotated[1].(map[string]any)["flags"])
	assert.Equal(t, []string{"Accepted"}, annotated[2].(map[string]any)["flags"])
	assert.Equal(t, []string{rules.MsgDuplicate}, annotated[3].(map[string]any)["flags"])
}

func TestScreen_DuplicatesMatchExactly(t *testing.T) {
	p := newTestProcessor(t, Config{})

	outcomes, err := p.Screen(context.Background(), []map[string]any{
		staffRecord("INV-1", 50000),
		staffRecord("inv-1", 50000),
		staffRecord(" INV-1 ", 50000),
		staffRecord("INV-1", 50000),
	})
	require.NoError(t, err)

	assert.False(t, outcomes[0].Duplicate)
	assert.False(t, outcomes[1].Duplicate)
	assert.False(t, outcomes[2].Duplicate)
	assert.True(t, outcomes[2].Accepted())
	assert.True(t, outcomes[3].Duplicate)
}

func TestScreen_EmptyInvoiceNumbersNeverCollide(t *testing.T) {
	p := newTestProcessor(t, Config{})

	outcomes, err := p.Screen(context.Background(), []map[string]any{
		staffRecord("", 50000),
		staffRecord("", 50000),
	})
	require.NoError(t, err)

	for _, o := range outcomes {
		assert.False(t, o.Duplicate)
		assert.Equal(t, []string{rules.MsgInvoiceMissing}, rules.Messages(o.Violations))
	}
}

func TestScreen_IsolatesFailures(t *testing.T) {
	p := newTestProcessor(t, Config{Workers: 2})
	p.evaluate = func(ctx context.Context, fields *extract.Fields) (rules.Result, error) {
		switch fields.InvoiceNumber {
		case "BOOM":
			panic("corrupt record")
		case "FAIL":
			return rules.Result{}, fmt.Errorf("lifecycle broken")
		}
		return p.evaluator.Evaluate(ctx, fields)
	}

	outcomes, err := p.Screen(context.Background(), []map[string]any{
		staffRecord("INV-1", 50000),
		staffRecord("BOOM", 50000),
		staffRecord("FAIL", 50000),
		{"employeeLevel": "Staff & Employees"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.True(t, outcomes[0].Accepted())
	assert.Equal(t, []string{rules.MsgNotEvaluated}, rules.Messages(outcomes[1].Violations))
	assert.Equal(t, []string{rules.MsgNotEvaluated}, outcomes[1].Record["flags"])
	assert.Equal(t, []string{rules.MsgNotEvaluated}, rules.Messages(outcomes[2].Violations))
	assert.Equal(t, []string{rules.MsgBillMissing}, rules.Messages(outcomes[3].Violations))
}

func TestScreen_PreservesOrder(t *testing.T) {
	p := newTestProcessor(t, Config{Workers: 8})

	records := make([]map[string]any, 200)
	for i := range records {
		amount := 50000
		if i%3 == 0 {
			amount = 10
		}
		records[i] = staffRecord(fmt.Sprintf("INV-%d", i), amount)
	}

	outcomes, err := p.Screen(context.Background(), records)
	require.NoError(t, err)

	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, fmt.Sprintf("INV-%d", i), o.InvoiceNumber)
		assert.Equal(t, i%3 != 0, o.Accepted(), "record %d", i)
	}
}

func TestScreen_CancelledContext(t *testing.T) {
	p := newTestProcessor(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Screen(ctx, []map[string]any{staffRecord("INV-1", 50000)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_InvalidShapes(t *testing.T) {
	p := newTestProcessor(t, Config{})

	for name, input := range map[string]any{
		"string":         "INV-1",
		"number":         json.Number("12"),
		"null":           nil,
		"mixed array":    []any{staffRecord("INV-1", 50000), "oops"},
		"nested array":   []any{[]any{}},
		"boolean":        true,
		"typed non-json": 42,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Process(context.Background(), input)
			assert.ErrorIs(t, err, ErrInvalidInputShape)
		})
	}
}

func TestProcess_EmptyArray(t *testing.T) {
	p := newTestProcessor(t, Config{})

	out, err := p.Process(context.Background(), []any{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, out)
}

func TestProcessJSON(t *testing.T) {
	p := newTestProcessor(t, Config{FlagField: "policy_flags", AcceptedMarker: "OK"})

	out, err := p.ProcessJSON(context.Background(), []byte(`{
		"bill": {
			"invoice_number": "INV-9",
			"totalAmount": 9007199254740993,
			"date": {"$date": {"$numberLong": "1721433600000"}}
		},
		"vendor": {"name": "Acme"}
	}`))
	require.NoError(t, err)

	annotated := out.(map[string]any)
	assert.Equal(t, json.Number("9007199254740993"), annotated["bill"].(map[string]any)["totalAmount"])
	assert.Len(t, annotated["policy_flags"], 1)
	assert.NotContains(t, annotated, "flags")

	out, err = p.ProcessJSON(context.Background(), []byte(`{
		"bill": {"invoice_number": "INV-8", "totalAmount": 50000, "date": "2024-07-19"},
		"vendor": {"name": "Acme"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"OK"}, out.(map[string]any)["policy_flags"])
}

func TestProcessJSON_InvalidPayload(t *testing.T) {
	p := newTestProcessor(t, Config{})

	for _, payload := range []string{``, `{`, `{"bill": {}} {"bill": {}}`, `[1,]`} {
		_, err := p.ProcessJSON(context.Background(), []byte(payload))
		assert.ErrorIs(t, err, ErrInvalidJSON, payload)
	}

	_, err := p.ProcessJSON(context.Background(), []byte(`"just text"`))
	assert.ErrorIs(t, err, ErrInvalidInputShape)
}

func TestProcess_Idempotent(t *testing.T) {
	p := newTestProcessor(t, Config{})
	record := staffRecord("INV-1", 4000)

	first, err := p.Process(context.Background(), record)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), first)
	require.NoError(t, err)

	assert.Equal(t, first.(map[string]any)["flags"], second.(map[string]any)["flags"])
}
