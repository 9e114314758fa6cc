package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"finmgr/internal/apiclient"
	"finmgr/internal/core"
)

const transactionsPath = "/financial-manager/transactions"

type transactionsView struct {
	Transactions []core.Transaction
	Summary      core.TransactionSummary
	Budgets      []core.Budget
	Today        string
}

func (s *Server) transactionsView(r *http.Request) (transactionsView, error) {
	api := s.backend(r)
	var (
		list    apiclient.TransactionList
		budgets []core.Budget
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		list, err = api.ListTransactions(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = s.listBudgets(ctx, api)
		return err
	})
	if err := g.Wait(); err != nil {
		return transactionsView{Today: s.now().Format("2006-01-02")}, err
	}
	core.SortByDateDesc(list.Transactions)
	return transactionsView{
		Transactions: list.Transactions,
		Summary:      core.Summarize(list.Balance, list.Transactions),
		Budgets:      budgets,
		Today:        s.now().Format("2006-01-02"),
	}, nil
}

func (s *Server) transactionsPage(w http.ResponseWriter, r *http.Request, errMsg string) {
	view, err := s.transactionsView(r)
	if err != nil && errMsg == "" {
		s.fail(w, r, err, "Failed to load transactions.", func(w http.ResponseWriter, r *http.Request, msg string) {
			s.render(w, r, "transactions.html", page{Title: "Transactions", Nav: "transactions", Error: msg, Data: view})
		})
		return
	}
	s.render(w, r, "transactions.html", page{Title: "Transactions", Nav: "transactions", Error: errMsg, Data: view})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.transactionsPage(w, r, "")
}

func (s *Server) transactionList(w http.ResponseWriter, r *http.Request, notice string) {
	if !isHTMX(r) {
		http.Redirect(w, r, transactionsPath, http.StatusSeeOther)
		return
	}
	view, err := s.transactionsView(r)
	if err != nil {
		s.fail(w, r, err, "Failed to load transactions.", nil)
		return
	}
	resp := NewHTMXResponse().
		TriggerChanged("transactions").
		TriggerFormReset().
		TriggerSuccessNotification(notice)
	s.renderPartial(w, r, resp, "transaction_list", view)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}
	t := core.NewTransaction{
		Type:     core.TransactionType(FormValue(r.Form, "type")),
		Category: FormValue(r.Form, "category"),
	}
	if t.Type != core.Income && t.Type != core.Expense {
		s.showError(w, r, http.StatusUnprocessableEntity, "Please select a valid transaction type (Income or Expense).", s.transactionsPage)
		return
	}
	var err error
	if t.Date, err = ParseDateOrToday(r.Form, "date", s.now()); err != nil {
		s.showError(w, r, http.StatusUnprocessableEntity, "Date must be in YYYY-MM-DD format.", s.transactionsPage)
		return
	}
	if t.Amount, err = core.ParseAmount(r.Form.Get("amount")); err != nil || !t.Amount.IsPositive() {
		s.showError(w, r, http.StatusUnprocessableEntity, "Amount must be a number greater than 0.", s.transactionsPage)
		return
	}
	if t.Type == core.Expense {
		if raw := r.Form.Get("budget"); raw != "" {
			if t.BudgetID, err = parseID(raw); err != nil {
				s.showError(w, r, http.StatusUnprocessableEntity, "Invalid budget.", s.transactionsPage)
				return
			}
		}
	}
	if err := t.Validate(); err != nil {
		s.showError(w, r, http.StatusUnprocessableEntity, "Error adding transaction. Please check the form data.", s.transactionsPage)
		return
	}

	if err := s.backend(r).CreateTransaction(r.Context(), t); err != nil {
		s.fail(w, r, err, "Error adding transaction. Please check the form data.", s.transactionsPage)
		return
	}
	// Expenses change the spent amount of their budget.
	s.invalidateBudgets(r.Context())
	s.transactionList(w, r, string(t.Type)+" recorded")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseIDParam(r, "id")
	if err != nil {
		s.showError(w, r, http.StatusBadRequest, "Invalid transaction.", s.transactionsPage)
		return
	}
	if err := s.backend(r).DeleteTransaction(r.Context(), id); err != nil {
		s.fail(w, r, err, "Error deleting transaction.", s.transactionsPage)
		return
	}
	s.invalidateBudgets(r.Context())
	s.transactionList(w, r, "Transaction deleted")
}
