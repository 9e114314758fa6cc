package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finmgr/internal/core"
)

// Ledger columns, A to G.
var ledgerHeader = []string{"Invoice ID", "Invoice Number", "Date", "Client", "Bill Type", "Total", "Recorded At"}

const ledgerColumns = "A:G"

func entryRow(e core.LedgerEntry) []any {
	return []any{
		e.InvoiceID,
		e.InvoiceNumber,
		e.Date,
		e.ClientName,
		e.BillType,
		e.Total.StringFixed(2),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// parseEntry converts one sheet row back into a ledger entry. Header and
// malformed rows report ok=false.
func parseEntry(row []any) (core.LedgerEntry, bool) {
	cols := toStrings(row)
	if len(cols) < 6 {
		return core.LedgerEntry{}, false
	}
	id, err := strconv.ParseInt(cols[0], 10, 64)
	if err != nil || id <= 0 {
		return core.LedgerEntry{}, false
	}
	total, err := decimal.NewFromString(strings.ReplaceAll(cols[5], ",", ""))
	if err != nil {
		return core.LedgerEntry{}, false
	}
	e := core.LedgerEntry{
		InvoiceID:     id,
		InvoiceNumber: cols[1],
		Date:          cols[2],
		ClientName:    cols[3],
		BillType:      cols[4],
		Total:         total,
	}
	if len(cols) > 6 {
		if t, err := time.Parse(time.RFC3339, cols[6]); err == nil {
			e.CreatedAt = t
		}
	}
	return e, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
