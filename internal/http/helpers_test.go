package http

import (
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"finmgr/internal/wizard"
)

func TestFormatMoney(t *testing.T) {
	tests := map[string]string{
		"0":        "0.00",
		"12.5":     "12.50",
		"1234.5":   "1,234.50",
		"-1234.5":  "-1,234.50",
		"1000000":  "1,000,000.00",
		"999.999":  "1,000.00",
		"123456.7": "123,456.70",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatMoney(decimal.RequireFromString(in)), in)
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "Acme", sanitizeInput("  Acme \x00"))
	assert.Equal(t, "line1\nline2", sanitizeInput("line1\nline2\x07"))
}

func TestBindDraftKeepsAbsentFields(t *testing.T) {
	wiz := wizard.New()
	bindDraft(wiz, url.Values{"client_name": {"Acme"}, "client_email": {"a@acme.test"}})
	bindDraft(wiz, url.Values{"client_location": {"Dar"}})

	d := wiz.Draft()
	assert.Equal(t, "Acme", d.ClientName)
	assert.Equal(t, "a@acme.test", d.ClientEmail)
	assert.Equal(t, "Dar", d.ClientLocation)
	assert.Len(t, d.Items, 1)
}

func TestBindDraftReplacesItems(t *testing.T) {
	wiz := wizard.New()
	bindDraft(wiz, url.Values{
		"item_description": {"Design", "Build"},
		"item_quantity":    {"1", "3"},
		"item_unit_price":  {"500", "120.5"},
	})

	items := wiz.Draft().Items
	assert.Len(t, items, 2)
	assert.Equal(t, "Build", items[1].Description)
	assert.Equal(t, "120.5", items[1].UnitPrice)
	assert.Empty(t, items[1].Days)
}
