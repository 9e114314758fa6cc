package http

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"finmgr/internal/apiclient"
	"finmgr/internal/core"
	"finmgr/internal/log"
)

const dashboardTimeout = 10 * time.Second

type dashboardView struct {
	Summary      core.TransactionSummary
	BudgetTotals core.BudgetTotals
	Budgets      []core.Budget
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.dashboardPage(w, r, "")
}

// dashboardPage loads budgets and transactions in parallel and renders
// the totals, the most recent transactions and the budget overview.
func (s *Server) dashboardPage(w http.ResponseWriter, r *http.Request, errMsg string) {
	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	api := s.backend(r)
	var (
		budgets []core.Budget
		txs     apiclient.TransactionList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = s.listBudgets(gctx, api)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = api.ListTransactions(gctx)
		return err
	})
	err := g.Wait()
	if err != nil && errMsg == "" {
		s.fail(w, r, err, "Failed to load financial data.", func(w http.ResponseWriter, r *http.Request, msg string) {
			s.render(w, r, "dashboard.html", page{Title: "Dashboard", Nav: "dashboard", Error: msg, Data: dashboardView{}})
		})
		return
	}
	if err != nil {
		s.render(w, r, "dashboard.html", page{Title: "Dashboard", Nav: "dashboard", Error: errMsg, Data: dashboardView{}})
		return
	}

	view := dashboardView{
		Summary:      core.Summarize(txs.Balance, txs.Transactions),
		BudgetTotals: core.SumBudgets(budgets),
		Budgets:      budgets,
	}
	log.FromContext(ctx).DebugContext(ctx, "Dashboard loaded",
		"budgets", len(budgets),
		"transactions", len(txs.Transactions))
	s.render(w, r, "dashboard.html", page{Title: "Dashboard", Nav: "dashboard", Error: errMsg, Data: view})
}
