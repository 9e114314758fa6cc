// Package pdf renders a local preview of an invoice draft. The invoice PDF
// a client receives is still the one generated by the backend.
package pdf

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"finmgr/internal/core"
)

const (
	pageMargin = 15.0
	lineHeight = 7.0
)

// RenderDraft writes an A4 preview of d to w.
func RenderDraft(w io.Writer, d core.InvoiceDraft, now time.Time) error {
	totals := core.CalculateTotals(d)

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetTitle(previewTitle(d), true)
	doc.SetCreationDate(now)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Arial", "B", 16)
	heading := d.BillType
	if heading == "" {
		heading = "Invoice"
	}
	doc.CellFormat(0, 10, tr(heading), "", 1, "L", false, 0, "")
	doc.SetFont("Arial", "", 11)
	if d.Title != "" {
		doc.CellFormat(0, lineHeight, tr(d.Title), "", 1, "L", false, 0, "")
	}
	doc.CellFormat(0, lineHeight, "Date: "+tr(d.Date), "", 1, "L", false, 0, "")
	doc.SetTextColor(160, 0, 0)
	doc.CellFormat(0, lineHeight, "DRAFT - not issued", "", 1, "L", false, 0, "")
	doc.SetTextColor(0, 0, 0)
	doc.Ln(4)

	doc.SetFont("Arial", "B", 11)
	doc.CellFormat(0, lineHeight, "Bill to", "", 1, "L", false, 0, "")
	doc.SetFont("Arial", "", 11)
	for _, line := range []string{d.ClientName, d.ClientLocation, d.ClientAddress, tinLine(d.ClientTIN), d.ClientEmail} {
		if line != "" {
			doc.CellFormat(0, lineHeight-1, tr(line), "", 1, "L", false, 0, "")
		}
	}
	doc.Ln(4)

	itemTable(doc, tr, d)
	doc.Ln(4)
	totalsBlock(doc, d, totals)

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render draft pdf: %w", err)
	}
	return nil
}

func previewTitle(d core.InvoiceDraft) string {
	if d.ClientName == "" {
		return "Invoice draft"
	}
	return "Invoice draft for " + d.ClientName
}

func tinLine(tin string) string {
	if tin == "" {
		return ""
	}
	return "TIN: " + tin
}

// itemTable prints the line items. The Days column only appears when days
// are part of the calculation.
func itemTable(doc *gofpdf.Fpdf, tr func(string) string, d core.InvoiceDraft) {
	type col struct {
		title string
		width float64
		align string
	}
	cols := []col{{"Description", 80, "L"}, {"Qty", 20, "R"}}
	if d.IncludeDays {
		cols = append(cols, col{"Days", 20, "R"})
	} else {
		cols[0].width += 20
	}
	cols = append(cols, col{"Rate", 30, "R"}, col{"Amount", 30, "R"})

	doc.SetFont("Arial", "B", 10)
	doc.SetFillColor(235, 235, 235)
	for _, c := range cols {
		doc.CellFormat(c.width, lineHeight, c.title, "1", 0, c.align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Arial", "", 10)
	for _, it := range d.Items {
		values := []string{tr(it.Description), strconv.Itoa(it.QuantityValue())}
		if d.IncludeDays {
			values = append(values, strconv.Itoa(it.DaysValue()))
		}
		values = append(values,
			core.FormatAmount(it.UnitPriceValue()),
			core.FormatAmount(it.LineTotal(d.IncludeDays)))
		for i, c := range cols {
			doc.CellFormat(c.width, lineHeight, values[i], "1", 0, c.align, false, 0, "")
		}
		doc.Ln(-1)
	}
}

func totalsBlock(doc *gofpdf.Fpdf, d core.InvoiceDraft, t core.Totals) {
	row := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		doc.SetFont("Arial", style, 10)
		doc.CellFormat(130, lineHeight, label, "", 0, "R", false, 0, "")
		doc.CellFormat(50, lineHeight, value, "", 1, "R", false, 0, "")
	}

	row("Subtotal", core.FormatAmount(t.Subtotal), false)
	if d.IncludeAgentFee {
		row("Agent fee", core.FormatAmount(t.AgentFee), false)
	}
	if t.VatRate.IsPositive() {
		row("Total before VAT", core.FormatAmount(t.TotalBeforeVat), false)
		row(fmt.Sprintf("VAT (%s%%)", t.VatRate.String()), core.FormatAmount(t.VatAmount), false)
	}
	row("Grand total", core.FormatAmount(t.GrandTotal), true)
}
