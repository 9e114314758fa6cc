package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultVatRate is applied when VAT is switched on.
const DefaultVatRate = "18"

// LineItem keeps the values exactly as typed so forms re-render unchanged.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Days        string `json:"days"`
}

// InvoiceDraft is an invoice being assembled by the wizard.
type InvoiceDraft struct {
	ClientName     string `json:"client_name"`
	ClientLocation string `json:"client_location"`
	ClientAddress  string `json:"client_address"`
	ClientTIN      string `json:"client_tin"`
	ClientEmail    string `json:"client_email"`

	Date      string `json:"date"`
	BillType  string `json:"bill_type"`
	Title     string `json:"title"`
	Signature string `json:"signature"`

	Items []LineItem `json:"items"`

	IncludeDays     bool   `json:"include_days"`
	IncludeAgentFee bool   `json:"include_agent_fee"`
	IncludeVat      bool   `json:"include_vat"`
	AgentFee        string `json:"agent_fee"`
	VatRate         string `json:"vat_rate"`
}

// Totals is the breakdown shown on the review step.
type Totals struct {
	Subtotal       decimal.Decimal
	AgentFee       decimal.Decimal
	TotalBeforeVat decimal.Decimal
	VatRate        decimal.Decimal
	VatAmount      decimal.Decimal
	GrandTotal     decimal.Decimal
}

// PayloadItem is a line item as the invoices endpoint expects it.
type PayloadItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Days        *int            `json:"days,omitempty"`
}

// InvoicePayload is the body of POST invoices/.
type InvoicePayload struct {
	ClientName      string          `json:"client_name"`
	ClientLocation  string          `json:"client_location"`
	ClientAddress   string          `json:"client_address"`
	ClientTIN       string          `json:"client_tin"`
	ClientEmail     string          `json:"client_email"`
	Date            string          `json:"date"`
	Heading         string          `json:"heading"`
	Subtitle        string          `json:"subtitle"`
	Items           []PayloadItem   `json:"items"`
	VatRate         decimal.Decimal `json:"vat_rate"`
	IncludeDays     bool            `json:"include_days"`
	IncludeAgentFee bool            `json:"include_agent_fee"`
	AgentFee        decimal.Decimal `json:"agent_fee"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	SignatureChoice string          `json:"signature_choice"`
}

// NewInvoiceDraft returns an empty draft with a single blank item.
func NewInvoiceDraft() InvoiceDraft {
	return InvoiceDraft{
		Items:   []LineItem{{}},
		VatRate: "0",
	}
}

// Clone returns a deep copy of the draft.
func (d InvoiceDraft) Clone() InvoiceDraft {
	c := d
	c.Items = append([]LineItem(nil), d.Items...)
	return c
}

// Client returns the client block of the draft.
func (d InvoiceDraft) Client() ClientDetails {
	return ClientDetails{
		Name:     d.ClientName,
		Location: d.ClientLocation,
		Address:  d.ClientAddress,
		TIN:      d.ClientTIN,
		Email:    d.ClientEmail,
	}
}

// SetClient overwrites the client block.
func (d *InvoiceDraft) SetClient(c ClientDetails) {
	d.ClientName = c.Name
	d.ClientLocation = c.Location
	d.ClientAddress = c.Address
	d.ClientTIN = c.TIN
	d.ClientEmail = c.Email
}

// QuantityValue is the integer quantity of an item, 0 when not a number.
func (it LineItem) QuantityValue() int { return intOrZero(it.Quantity) }

// UnitPriceValue is the unit price of an item, 0 when not a number.
func (it LineItem) UnitPriceValue() decimal.Decimal { return decimalOrZero(it.UnitPrice) }

// DaysValue is the day multiplier; blank, zero or invalid input counts as 1.
func (it LineItem) DaysValue() int {
	if n := intOrZero(it.Days); n > 0 {
		return n
	}
	return 1
}

// LineTotal is quantity x price, times days when days are included.
func (it LineItem) LineTotal(includeDays bool) decimal.Decimal {
	total := decimal.NewFromInt(int64(it.QuantityValue())).Mul(it.UnitPriceValue())
	if includeDays {
		total = total.Mul(decimal.NewFromInt(int64(it.DaysValue())))
	}
	return total
}

// CalculateTotals computes the invoice totals from the draft as it stands.
// Values that do not parse count as zero. The draft is not modified.
func CalculateTotals(d InvoiceDraft) Totals {
	var t Totals
	for _, it := range d.Items {
		t.Subtotal = t.Subtotal.Add(it.LineTotal(d.IncludeDays))
	}
	if d.IncludeAgentFee {
		t.AgentFee = decimalOrZero(d.AgentFee)
	}
	t.TotalBeforeVat = t.Subtotal.Add(t.AgentFee)
	t.VatRate = decimalOrZero(d.VatRate)
	t.VatAmount = t.TotalBeforeVat.Mul(t.VatRate).Div(hundred)
	t.GrandTotal = t.TotalBeforeVat.Add(t.VatAmount)
	return t
}

// Payload converts the draft into the body of POST invoices/.
func (d InvoiceDraft) Payload() InvoicePayload {
	totals := CalculateTotals(d)
	p := InvoicePayload{
		ClientName:      strings.TrimSpace(d.ClientName),
		ClientLocation:  strings.TrimSpace(d.ClientLocation),
		ClientAddress:   strings.TrimSpace(d.ClientAddress),
		ClientTIN:       strings.TrimSpace(d.ClientTIN),
		ClientEmail:     strings.TrimSpace(d.ClientEmail),
		Date:            d.Date,
		Heading:         d.BillType,
		Subtitle:        strings.TrimSpace(d.Title),
		Items:           make([]PayloadItem, 0, len(d.Items)),
		VatRate:         totals.VatRate,
		IncludeDays:     d.IncludeDays,
		IncludeAgentFee: d.IncludeAgentFee,
		AgentFee:        totals.AgentFee,
		TotalAmount:     totals.GrandTotal.Round(2),
		SignatureChoice: d.Signature,
	}
	for _, it := range d.Items {
		item := PayloadItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.QuantityValue(),
			UnitPrice:   it.UnitPriceValue(),
		}
		if d.IncludeDays {
			days := it.DaysValue()
			item.Days = &days
		}
		p.Items = append(p.Items, item)
	}
	return p
}
