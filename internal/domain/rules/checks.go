package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-screening/internal/domain/extract"
	"github.com/garyjia/expense-screening/internal/domain/policy"
)

// input is what a single check sees
type input struct {
	fields *extract.Fields
	policy policy.TierPolicy
	opts   Options
}

// check is one independent rule. run returns false when the record passes.
type check struct {
	name Check
	run  func(in input) (Violation, bool)
}

// categoryChecks run in order once a known tier is resolved
var categoryChecks = []check{
	{CheckInvoiceNumber, invoicePresent},
	{CheckVendorName, vendorPresent},
	{CheckAmountFormat, amountWellFormed},
	{CheckStaleness, notStale},
	{CheckBillDate, datePresent},
	{CheckBusinessTrips, businessTrips},
	rangeCheck(CheckLocalTransport, policy.KindLocalTransportation, "transport", "Local transportation expense"),
	ceilingCheck(CheckMileage, policy.KindMileageReimbursement, "mileage", "Mileage reimbursement"),
	coverageCheck(CheckParkingTolls, policy.KindParkingTolls, parkingApplies, MsgParkingTolls),
	rangeCheck(CheckHotelStays, policy.KindHotelStays, "hotel", "Hotel stay expense"),
	rangeCheck(CheckRentalAllowance, policy.KindRentalAllowance, "rental", "Rental allowance"),
	rangeCheck(CheckMealsDuringTravel, policy.KindMealsDuringTravel, "meals", "Meals during travel expense"),
	ceilingCheck(CheckWorkTools, policy.KindWorkTools, "tools", "Work tools expense"),
	ceilingCheck(CheckHomeOfficeSetup, policy.KindHomeOfficeSetup, "home office", "Home office setup expense"),
	coverageCheck(CheckMobileInternet, policy.KindMobileInternet, mobileApplies, MsgMobileInternet),
	ceilingCheck(CheckClientMeetings, policy.KindClientMeetings, "client meeting", "Client meeting expense"),
	ceilingCheck(CheckTeamOutings, policy.KindTeamOutings, "team outing", "Team outing expense"),
	rangeCheck(CheckDailyMealAllowance, policy.KindDailyMealAllowance, "meal", "Daily meal allowance"),
}

func invoicePresent(in input) (Violation, bool) {
	if in.fields.InvoiceNumber != "" {
		return Violation{}, false
	}
	return violation(CheckInvoiceNumber, MsgInvoiceMissing), true
}

func vendorPresent(in input) (Violation, bool) {
	if in.fields.VendorName != "" {
		return Violation{}, false
	}
	return violation(CheckVendorName, MsgVendorMissing), true
}

func amountWellFormed(in input) (Violation, bool) {
	if !in.fields.Has(extract.FailureAmountMalformed) {
		return Violation{}, false
	}
	return violation(CheckAmountFormat, MsgAmountMalformed), true
}

// notStale flags bills older than StalenessDays, measured to the instant
func notStale(in input) (Violation, bool) {
	if !in.fields.DateValid() {
		return Violation{}, false
	}
	window := time.Duration(in.opts.StalenessDays) * 24 * time.Hour
	if in.opts.Now().Sub(in.fields.BillDate) <= window {
		return Violation{}, false
	}
	date := in.fields.BillDate.UTC().Format("2006-01-02")
	return violation(CheckStaleness, StaleMessage(date, in.opts.StalenessDays)), true
}

func datePresent(in input) (Violation, bool) {
	if in.fields.DateValid() {
		return Violation{}, false
	}
	return violation(CheckBillDate, MsgDateMalformed), true
}

// businessTrips always runs against the record total, whatever the items say
func businessTrips(in input) (Violation, bool) {
	if !in.fields.AmountValid() {
		return Violation{}, false
	}
	limit, found := in.policy.Limit(policy.CategoryTravel, policy.KindBusinessTrips)
	if !found || limit.Admits(in.fields.Amount) {
		return Violation{}, false
	}
	min, max, _ := limit.Bounds()
	return violation(CheckBusinessTrips, fmt.Sprintf(
		MessagePrefix+"Total amount %d exceeds Business Trips policy limits (%d–%d).",
		in.fields.Amount, min, max)), true
}

func rangeCheck(name Check, kind policy.Kind, keyword, label string) check {
	return check{name: name, run: func(in input) (Violation, bool) {
		if !in.fields.AmountValid() || !in.fields.ContainsKeyword(keyword) {
			return Violation{}, false
		}
		limit, found := in.policy.Limit(kind.Category(), kind)
		if !found {
			return Violation{}, false
		}

		amount := in.amountFor(keyword)
		min, max, bounded := limit.Bounds()
		if !bounded || (amount >= min && amount <= max) {
			return Violation{}, false
		}
		return violation(name, fmt.Sprintf(
			MessagePrefix+"%s %d exceeds policy limits (%d–%d).", label, amount, min, max)), true
	}}
}

func ceilingCheck(name Check, kind policy.Kind, keyword, label string) check {
	return check{name: name, run: func(in input) (Violation, bool) {
		if !in.fields.AmountValid() || !in.fields.ContainsKeyword(keyword) {
			return Violation{}, false
		}
		limit, found := in.policy.Limit(kind.Category(), kind)
		if !found {
			return Violation{}, false
		}

		amount := in.amountFor(keyword)
		max, bounded := limit.UpperBound()
		if !bounded || amount <= max {
			return Violation{}, false
		}
		ceiling := fmt.Sprintf("%d", max)
		if limit.Period != "" {
			ceiling += " per " + limit.Period
		}
		return violation(name, fmt.Sprintf(
			MessagePrefix+"%s %d exceeds policy limit of %s.", label, amount, ceiling)), true
	}}
}

// coverageCheck flags any triggering record unless the tier grants full
// coverage. An absent entry counts as not covered.
func coverageCheck(name Check, kind policy.Kind, applies func(f *extract.Fields) bool, message string) check {
	return check{name: name, run: func(in input) (Violation, bool) {
		if !applies(in.fields) {
			return Violation{}, false
		}
		limit, found := in.policy.Limit(kind.Category(), kind)
		if found && limit.IsFullyCovered() {
			return Violation{}, false
		}
		return violation(name, message), true
	}}
}

func parkingApplies(f *extract.Fields) bool {
	return strings.EqualFold(f.VendorCategory, "parking") ||
		strings.Contains(strings.ToLower(f.VendorName), "parking") ||
		f.ContainsKeyword("tolls")
}

func mobileApplies(f *extract.Fields) bool {
	return f.ContainsKeyword("mobile") || f.ContainsKeyword("internet")
}

// amountFor picks the amount a keyword-gated check compares
func (in input) amountFor(keyword string) int64 {
	if in.opts.AmountBasis != AmountBasisLineItem {
		return in.fields.Amount
	}
	if total, ok := in.fields.KeywordTotal(keyword); ok {
		return total
	}
	return in.fields.Amount
}
