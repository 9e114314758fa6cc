package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RecentTransactions is how many transactions the dashboard lists.
const RecentTransactions = 5

// TransactionSummary aggregates the transaction list for the dashboard.
type TransactionSummary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Net          decimal.Decimal // income minus expense
	Balance      decimal.Decimal // as reported by the backend
	TopCategory  string
	TopExpense   decimal.Decimal
	Recent       []Transaction
}

// BudgetTotals sums allocated and spent across budgets.
type BudgetTotals struct {
	Allocated decimal.Decimal
	Spent     decimal.Decimal
	Remaining decimal.Decimal
	Over      int // budgets spent beyond allocation
}

// SortByDateDesc sorts newest first; ties keep the backend order.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date.Time)
	})
}

// Summarize computes dashboard totals. The input slice is not reordered.
func Summarize(balance decimal.Decimal, txs []Transaction) TransactionSummary {
	s := TransactionSummary{Balance: balance, TopCategory: "N/A"}
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
			if t.Amount.GreaterThan(s.TopExpense) {
				s.TopExpense = t.Amount
				s.TopCategory = t.Category
			}
		}
	}
	s.Net = s.TotalIncome.Sub(s.TotalExpense)

	sorted := append([]Transaction(nil), txs...)
	SortByDateDesc(sorted)
	if len(sorted) > RecentTransactions {
		sorted = sorted[:RecentTransactions]
	}
	s.Recent = sorted
	return s
}

// SumBudgets totals a budget list.
func SumBudgets(budgets []Budget) BudgetTotals {
	var t BudgetTotals
	for _, b := range budgets {
		t.Allocated = t.Allocated.Add(b.Allocated)
		t.Spent = t.Spent.Add(b.Spent)
		if b.Status() == BudgetOver {
			t.Over++
		}
	}
	t.Remaining = t.Allocated.Sub(t.Spent)
	return t
}
