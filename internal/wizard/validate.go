package wizard

import (
	"strings"

	"finmgr/internal/core"
)

// User-facing validation messages.
const (
	MsgClientName     = "Client Name is required."
	MsgClientLocation = "Client Location is required."
	MsgClientAddress  = "Client Address is required."
	MsgClientTIN      = "Client TIN is required."
	MsgClientEmail    = "Client Email is required."
	MsgDate           = "Date is required."
	MsgBillType       = "Bill Type is required."
	MsgTitle          = "Invoice Title is required."
	MsgSignature      = "Please select a signature."
	MsgItems          = "At least one item with a description is required."
	MsgQuantity       = "All items must have a valid quantity greater than 0."
	MsgUnitPrice      = "All items must have a valid rate (non-negative)."
	MsgDays           = `All items must have a valid number of days greater than 0 when "Include Days" is checked.`
	MsgVatRate        = "VAT Rate must be a non-negative number."
	MsgAgentFee       = `Agent Fee must be a non-negative number when "Include Agent Fee" is checked.`
)

// ValidationError is returned when a step gate rejects the draft.
type ValidationError struct {
	Step    Step
	Message string
}

func (e *ValidationError) Error() string {
	return e.Step.Title() + ": " + e.Message
}

type validator func(d core.InvoiceDraft) string

var validators = map[Step]validator{
	StepClientInfo:     validateClientInfo,
	StepInvoiceDetails: validateInvoiceDetails,
	StepItems:          validateItems,
	StepOptions:        validateOptions,
}

// Validate runs the gate for step s and returns the first failure, or "".
func Validate(s Step, d core.InvoiceDraft) string {
	v, ok := validators[s]
	if !ok {
		return ""
	}
	return v(d)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func validateClientInfo(d core.InvoiceDraft) string {
	switch {
	case blank(d.ClientName):
		return MsgClientName
	case blank(d.ClientLocation):
		return MsgClientLocation
	case blank(d.ClientAddress):
		return MsgClientAddress
	case blank(d.ClientTIN):
		return MsgClientTIN
	case blank(d.ClientEmail):
		return MsgClientEmail
	}
	return ""
}

func validateInvoiceDetails(d core.InvoiceDraft) string {
	switch {
	case blank(d.Date):
		return MsgDate
	case blank(d.BillType):
		return MsgBillType
	case blank(d.Title):
		return MsgTitle
	case blank(d.Signature):
		return MsgSignature
	}
	return ""
}

func validateItems(d core.InvoiceDraft) string {
	if len(d.Items) == 0 {
		return MsgItems
	}
	for _, it := range d.Items {
		if blank(it.Description) {
			return MsgItems
		}
	}
	for _, it := range d.Items {
		if n, ok := positiveInt(it.Quantity); !ok || n <= 0 {
			return MsgQuantity
		}
	}
	for _, it := range d.Items {
		if _, err := core.ParseNonNegative(it.UnitPrice); err != nil {
			return MsgUnitPrice
		}
	}
	if d.IncludeDays {
		for _, it := range d.Items {
			if n, ok := positiveInt(it.Days); !ok || n <= 0 {
				return MsgDays
			}
		}
	}
	return ""
}

func validateOptions(d core.InvoiceDraft) string {
	if _, err := core.ParseNonNegative(d.VatRate); err != nil {
		return MsgVatRate
	}
	if d.IncludeAgentFee {
		if _, err := core.ParseNonNegative(d.AgentFee); err != nil {
			return MsgAgentFee
		}
	}
	return ""
}

// positiveInt parses a quantity or days field the same way the payload does.
func positiveInt(s string) (int, bool) {
	n, err := core.ParseCount(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
