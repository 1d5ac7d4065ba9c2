// Package extract normalizes loosely-typed expense records into the canonical
// fields the policy rules consume. Extraction never fails: every problem is
// reported as a Failure on the returned Fields.
//
// Defaults for absent data:
//   - employee level: policy.DefaultTier ("Staff & Employees")
//   - vendor name and category: ""
//   - items: empty, so keyword-gated checks never trigger
//   - invoice number and currency: ""
package extract

import (
	"strings"
	"time"

	"github.com/garyjia/expense-screening/internal/domain/policy"
)

// Record field names as produced by the ingestion collaborator
const (
	FieldBill          = "bill"
	FieldVendor        = "vendor"
	FieldItems         = "items"
	FieldEmployeeLevel = "employeeLevel"

	FieldTotalAmount   = "totalAmount"
	FieldDate          = "date"
	FieldInvoiceNumber = "invoice_number"
	FieldCurrency      = "currency"
	FieldName          = "name"
	FieldCategory      = "category"
	FieldTotal         = "total"
)

// Failure identifies a problem found while extracting a record
type Failure string

const (
	FailureBillMissing     Failure = "BILL_MISSING"
	FailureAmountMissing   Failure = "AMOUNT_MISSING"
	FailureAmountMalformed Failure = "AMOUNT_MALFORMED"
	FailureDateMissing     Failure = "DATE_MISSING"
	FailureDateMalformed   Failure = "DATE_MALFORMED"
)

// IsStructural returns true for failures that stop evaluation of the record
func (f Failure) IsStructural() bool {
	return f == FailureBillMissing || f == FailureAmountMissing
}

// Item is a normalized line item
type Item struct {
	Name     string // lower-cased
	Total    int64
	HasTotal bool
}

// Fields are the canonical values the rules need
type Fields struct {
	Amount         int64
	BillDate       time.Time
	VendorName     string
	VendorCategory string
	Items          []Item
	Keywords       string // lower-cased item names joined by a space
	Tier           policy.Tier
	TierDefaulted  bool
	InvoiceNumber  string
	Currency       string
	Failures       []Failure
}

// Has returns true if extraction recorded the failure
func (f *Fields) Has(failure Failure) bool {
	for _, got := range f.Failures {
		if got == failure {
			return true
		}
	}
	return false
}

// Structural returns the first failure that prevents evaluation, if any
func (f *Fields) Structural() (Failure, bool) {
	for _, got := range f.Failures {
		if got.IsStructural() {
			return got, true
		}
	}
	return "", false
}

// AmountValid returns true if Amount can be compared against limits
func (f *Fields) AmountValid() bool {
	return !f.Has(FailureAmountMissing) && !f.Has(FailureAmountMalformed) && !f.Has(FailureBillMissing)
}

// DateValid returns true if BillDate holds a real date
func (f *Fields) DateValid() bool {
	return !f.Has(FailureDateMissing) && !f.Has(FailureDateMalformed) && !f.Has(FailureBillMissing)
}

// ContainsKeyword reports whether any item name contains the lower-cased keyword
func (f *Fields) ContainsKeyword(keyword string) bool {
	if f.Keywords == "" {
		return false
	}
	return strings.Contains(f.Keywords, strings.ToLower(keyword))
}

// KeywordTotal sums the totals of items whose names contain the keyword.
// ok is false when no matching item carries a usable total.
func (f *Fields) KeywordTotal(keyword string) (total int64, ok bool) {
	keyword = strings.ToLower(keyword)
	for _, item := range f.Items {
		if item.HasTotal && strings.Contains(item.Name, keyword) {
			total += item.Total
			ok = true
		}
	}
	return total, ok
}

// Normalize extracts canonical fields from a record. The record is not modified.
func Normalize(record map[string]any) Fields {
	var fields Fields
	fields.Tier, fields.TierDefaulted = employeeTier(record)
	fields.VendorName, fields.VendorCategory = vendor(record)
	fields.Items, fields.Keywords = items(record)

	bill, ok := record[FieldBill].(map[string]any)
	if !ok {
		fields.Failures = append(fields.Failures, FailureBillMissing)
		return fields
	}

	fields.InvoiceNumber = InvoiceNumber(record)
	fields.Currency = Text(bill[FieldCurrency])

	if raw, ok := bill[FieldTotalAmount]; !ok || raw == nil {
		fields.Failures = append(fields.Failures, FailureAmountMissing)
	} else if amount, err := NonNegativeInteger(raw); err != nil {
		fields.Failures = append(fields.Failures, FailureAmountMalformed)
	} else {
		fields.Amount = amount
	}

	if raw, ok := bill[FieldDate]; !ok || raw == nil {
		fields.Failures = append(fields.Failures, FailureDateMissing)
	} else if date, err := Timestamp(raw); err != nil {
		fields.Failures = append(fields.Failures, FailureDateMalformed)
	} else {
		fields.BillDate = date
	}

	return fields
}

// InvoiceNumber returns the trimmed invoice number of a record, or "".
// Both "invoice_number" and "invoiceNumber" spellings are read.
func InvoiceNumber(record map[string]any) string {
	bill := Object(record[FieldBill])
	if bill == nil {
		return ""
	}
	if number := Text(bill[FieldInvoiceNumber]); number != "" {
		return number
	}
	return Text(bill["invoiceNumber"])
}

// InvoiceKey returns the invoice number exactly as submitted, for duplicate
// detection. Numbers that are blank once trimmed yield "" so they never
// collide; " INV-1 " and "INV-1" are different keys.
func InvoiceKey(record map[string]any) string {
	bill := Object(record[FieldBill])
	if bill == nil {
		return ""
	}
	raw, ok := bill[FieldInvoiceNumber]
	if !ok || Text(raw) == "" {
		raw = bill["invoiceNumber"]
	}
	if Text(raw) == "" {
		return ""
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return Text(raw)
}

func employeeTier(record map[string]any) (policy.Tier, bool) {
	level := Text(record[FieldEmployeeLevel])
	if level == "" {
		return policy.DefaultTier, true
	}
	return policy.Tier(level), false
}

func vendor(record map[string]any) (name, category string) {
	v := Object(record[FieldVendor])
	if v == nil {
		return "", ""
	}
	return Text(v[FieldName]), Text(v[FieldCategory])
}

func items(record map[string]any) ([]Item, string) {
	raw := Array(record[FieldItems])
	if len(raw) == 0 {
		return nil, ""
	}

	normalized := make([]Item, 0, len(raw))
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		obj := Object(entry)
		if obj == nil {
			continue
		}

		item := Item{Name: strings.ToLower(Text(obj[FieldName]))}
		if total, err := NonNegativeInteger(obj[FieldTotal]); err == nil {
			item.Total = total
			item.HasTotal = true
		}
		normalized = append(normalized, item)
		if item.Name != "" {
			names = append(names, item.Name)
		}
	}
	return normalized, strings.Join(names, " ")
}
