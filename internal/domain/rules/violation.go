package rules

import "fmt"

// Check names the rule that produced a violation
type Check string

const (
	CheckStructure          Check = "structure"
	CheckTier               Check = "tier"
	CheckInvoiceNumber      Check = "invoice_number"
	CheckVendorName         Check = "vendor_name"
	CheckAmountFormat       Check = "amount_format"
	CheckStaleness          Check = "staleness"
	CheckBillDate           Check = "bill_date"
	CheckBusinessTrips      Check = "business_trips"
	CheckLocalTransport     Check = "local_transportation"
	CheckMileage            Check = "mileage_reimbursement"
	CheckParkingTolls       Check = "parking_tolls"
	CheckHotelStays         Check = "hotel_stays"
	CheckRentalAllowance    Check = "rental_allowance"
	CheckMealsDuringTravel  Check = "meals_during_travel"
	CheckWorkTools          Check = "work_tools"
	CheckHomeOfficeSetup    Check = "home_office_setup"
	CheckMobileInternet     Check = "mobile_internet"
	CheckClientMeetings     Check = "client_meetings"
	CheckTeamOutings        Check = "team_outings"
	CheckDailyMealAllowance Check = "daily_meal_allowance"
	CheckDuplicate          Check = "duplicate"
	CheckEvaluation         Check = "evaluation"
)

// String returns the string representation of the check
func (c Check) String() string {
	return string(c)
}

// ExpressionCheck names the check of a catalog-authored expression rule
func ExpressionCheck(name string) Check {
	return Check("expression:" + name)
}

// Violation is one human-readable finding against a record
type Violation struct {
	Check   Check  `json:"check"`
	Message string `json:"message"`
}

// MessagePrefix starts every violation message
const MessagePrefix = "Violation: "

// Fixed violation messages
const (
	MsgBillMissing     = MessagePrefix + "Missing 'bill' key in receipt data."
	MsgAmountMissing   = MessagePrefix + "Missing 'totalAmount' in bill data."
	MsgAmountMalformed = MessagePrefix + "Total amount in bill data is not a non-negative integer."
	MsgDateMalformed   = MessagePrefix + "Missing or malformed 'date' in bill data."
	MsgInvoiceMissing  = MessagePrefix + "Invoice number is missing."
	MsgVendorMissing   = MessagePrefix + "Vendor name is missing."
	MsgParkingTolls    = MessagePrefix + "Parking fees or tolls are not fully covered under policy."
	MsgMobileInternet  = MessagePrefix + "Mobile/Internet bills are not fully covered under policy."
	MsgDuplicate       = MessagePrefix + "Duplicate invoice number detected."
	MsgNotEvaluated    = MessagePrefix + "Record could not be evaluated."
)

// UnknownTierMessage reports an employee level absent from the catalog
func UnknownTierMessage(tier string) string {
	return fmt.Sprintf(MessagePrefix+"Employee level '%s' not found in expense policies.", tier)
}

// StaleMessage reports a bill older than the staleness window
func StaleMessage(date string, days int) string {
	return fmt.Sprintf(MessagePrefix+"Bill date %s is older than %d days.", date, days)
}

func violation(check Check, message string) Violation {
	return Violation{Check: check, Message: message}
}

// Messages renders violations as their message strings
func Messages(violations []Violation) []string {
	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = v.Message
	}
	return messages
}
